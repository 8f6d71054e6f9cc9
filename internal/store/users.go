package store

import (
	"context"
	"fmt"

	"ada/internal/domain"
)

func (r *sqliteRepo) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO users (name,email,last_fm_username) VALUES (?,?,?)`,
		u.Name, u.Email, u.LastFMUsername)
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (r *sqliteRepo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, `SELECT id,name,email,last_fm_username FROM users WHERE id=?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.LastFMUsername)
	if err != nil {
		return domain.User{}, notFound(err, "user", id)
	}
	return u, nil
}

func (r *sqliteRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id,name,email,last_fm_username FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.LastFMUsername); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *sqliteRepo) DeleteUser(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, "users", id)
}

func (r *sqliteRepo) CreateLocation(ctx context.Context, l domain.Location) (domain.Location, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO locations (name,lat,lng) VALUES (?,?,?)`, l.Name, l.Lat, l.Lng)
	if err != nil {
		return domain.Location{}, fmt.Errorf("insert location: %w", err)
	}
	if l.ID, err = res.LastInsertId(); err != nil {
		return domain.Location{}, err
	}
	return l, nil
}

func (r *sqliteRepo) GetLocation(ctx context.Context, id int64) (domain.Location, error) {
	var l domain.Location
	err := r.db.QueryRowContext(ctx, `SELECT id,name,lat,lng FROM locations WHERE id=?`, id).
		Scan(&l.ID, &l.Name, &l.Lat, &l.Lng)
	if err != nil {
		return domain.Location{}, notFound(err, "location", id)
	}
	return l, nil
}

func (r *sqliteRepo) ListLocations(ctx context.Context) ([]domain.Location, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id,name,lat,lng FROM locations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []domain.Location
	for rows.Next() {
		var l domain.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Lat, &l.Lng); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

func (r *sqliteRepo) DeleteLocation(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, "locations", id)
}
