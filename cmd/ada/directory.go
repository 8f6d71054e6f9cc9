package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"

	"ada/internal/domain"
)

func runUsers(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usagef("usage: ada users list|create|delete")
	}
	fs := flag.NewFlagSet("users "+args[0], flag.ContinueOnError)
	o := outputFlag(fs)
	switch args[0] {
	case "list":
		if err := fs.Parse(args[1:]); err != nil {
			return usageError(err.Error())
		}
		users, err := a.repo.ListUsers(ctx)
		if err != nil {
			return err
		}
		return render(out, *o, users, func() table { return userTable(users) })
	case "create":
		name := fs.String("name", "", "display name")
		email := fs.String("email", "", "email address")
		lastfm := fs.String("lastfm", "", "Last.fm username")
		if err := fs.Parse(args[1:]); err != nil {
			return usageError(err.Error())
		}
		u := domain.User{Name: *name, Email: *email, LastFMUsername: *lastfm}
		if err := u.Validate(); err != nil {
			return err
		}
		created, err := a.repo.CreateUser(ctx, u)
		if err != nil {
			return err
		}
		return render(out, *o, created, func() table { return userTable([]domain.User{created}) })
	case "delete":
		id, err := idArg(args[1:])
		if err != nil {
			return err
		}
		if err := a.repo.DeleteUser(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted user %d\n", id)
		return nil
	}
	return usagef("unknown users command %q", args[0])
}

func userTable(users []domain.User) table {
	t := table{header: []string{"ID", "NAME", "EMAIL", "LAST.FM"}}
	for _, u := range users {
		t.add(strconv.FormatInt(u.ID, 10), u.Name, u.Email, u.LastFMUsername)
	}
	return t
}

func runLocations(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usagef("usage: ada locations list|create|delete")
	}
	fs := flag.NewFlagSet("locations "+args[0], flag.ContinueOnError)
	o := outputFlag(fs)
	switch args[0] {
	case "list":
		if err := fs.Parse(args[1:]); err != nil {
			return usageError(err.Error())
		}
		locs, err := a.repo.ListLocations(ctx)
		if err != nil {
			return err
		}
		return render(out, *o, locs, func() table { return locationTable(locs) })
	case "create":
		name := fs.String("name", "", "location name")
		lat := fs.Float64("lat", 0, "latitude")
		lng := fs.Float64("lng", 0, "longitude")
		if err := fs.Parse(args[1:]); err != nil {
			return usageError(err.Error())
		}
		l := domain.Location{Name: *name, Lat: *lat, Lng: *lng}
		if err := l.Validate(); err != nil {
			return err
		}
		created, err := a.repo.CreateLocation(ctx, l)
		if err != nil {
			return err
		}
		return render(out, *o, created, func() table { return locationTable([]domain.Location{created}) })
	case "delete":
		id, err := idArg(args[1:])
		if err != nil {
			return err
		}
		if err := a.repo.DeleteLocation(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted location %d\n", id)
		return nil
	}
	return usagef("unknown locations command %q", args[0])
}

func locationTable(locs []domain.Location) table {
	t := table{header: []string{"ID", "NAME", "LAT", "LNG"}}
	for _, l := range locs {
		t.add(strconv.FormatInt(l.ID, 10), l.Name,
			strconv.FormatFloat(l.Lat, 'f', 4, 64), strconv.FormatFloat(l.Lng, 'f', 4, 64))
	}
	return t
}

func idArg(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, usagef("expected exactly one id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, usagef("invalid id %q", args[0])
	}
	return id, nil
}
