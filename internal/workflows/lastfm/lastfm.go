// Package lastfm implements send_last_fm_report: the user's most played
// artists and tracks over the last day or week.
package lastfm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"ada/internal/clock"
	"ada/internal/domain"
	"ada/internal/email"
	"ada/internal/httpclient"
	"ada/internal/quickchart"
	"ada/internal/workflow"
)

const (
	Name           = "send_last_fm_report"
	DefaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

	pageLimit = 200
	topN      = 5
)

var intervals = map[string]time.Duration{
	"day":  24 * time.Hour,
	"week": 7 * 24 * time.Hour,
}

type Users interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
}

type Config struct {
	APIKey  string
	BaseURL string
}

type Play struct {
	Artist   string    `json:"artist" yaml:"artist"`
	Track    string    `json:"track" yaml:"track"`
	PlayedAt time.Time `json:"played_at" yaml:"played_at"`
}

// Data is the raw result of Fetch.
type Data struct {
	User     domain.User `json:"user" yaml:"user"`
	Interval string      `json:"interval" yaml:"interval"`
	From     time.Time   `json:"from" yaml:"from"`
	To       time.Time   `json:"to" yaml:"to"`
	Plays    []Play      `json:"plays" yaml:"plays"`
}

type Workflow struct {
	cfg    Config
	users  Users
	client *httpclient.Client
	clock  clock.Clock
}

func New(cfg Config, users Users, client *httpclient.Client, clk clock.Clock) *Workflow {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Workflow{cfg: cfg, users: users, client: client, clock: clk}
}

func (w *Workflow) Name() string      { return Name }
func (w *Workflow) HumanName() string { return "Send Last.fm report" }

func (w *Workflow) Requirements() workflow.Requirements {
	return workflow.Requirements{"user_id": workflow.TypeInteger, "interval": workflow.TypeString}
}

func (w *Workflow) Transports() []domain.Transport {
	return []domain.Transport{domain.TransportEmail}
}

type recentTracksResponse struct {
	RecentTracks struct {
		Track []struct {
			Name   string `json:"name"`
			Artist struct {
				Text string `json:"#text"`
			} `json:"artist"`
			Date *struct {
				UTS string `json:"uts"`
			} `json:"date"`
		} `json:"track"`
	} `json:"recenttracks"`
}

func (w *Workflow) Fetch(ctx context.Context, p workflow.TypedParams) (workflow.RawData, error) {
	interval := p.String("interval")
	span, ok := intervals[interval]
	if !ok {
		return nil, fmt.Errorf("interval must be day or week (got %q)", interval)
	}
	user, err := w.users.GetUser(ctx, p.Int("user_id"))
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.LastFMUsername == "" {
		return nil, errors.New("user has no last.fm username")
	}

	to := w.clock.Now()
	from := to.Add(-span)

	q := url.Values{}
	q.Set("method", "user.getrecenttracks")
	q.Set("user", user.LastFMUsername)
	q.Set("api_key", w.cfg.APIKey)
	q.Set("format", "json")
	q.Set("from", strconv.FormatInt(from.Unix(), 10))
	q.Set("to", strconv.FormatInt(to.Unix(), 10))
	q.Set("limit", strconv.Itoa(pageLimit))

	var resp recentTracksResponse
	if err := w.client.GetJSON(ctx, w.cfg.BaseURL, q, &resp); err != nil {
		return nil, fmt.Errorf("last.fm recent tracks: %w", err)
	}

	data := Data{User: user, Interval: interval, From: from, To: to, Plays: []Play{}}
	for _, t := range resp.RecentTracks.Track {
		// The track being played right now has no date.
		if t.Date == nil {
			continue
		}
		uts, err := strconv.ParseInt(t.Date.UTS, 10, 64)
		if err != nil {
			continue
		}
		data.Plays = append(data.Plays, Play{Artist: t.Artist.Text, Track: t.Name, PlayedAt: time.Unix(uts, 0).UTC()})
	}
	return data, nil
}

type ranked struct {
	Name  string
	Count int
}

// top returns the n most frequent keys, ties broken alphabetically.
func top(counts map[string]int, n int) []ranked {
	out := make([]ranked, 0, len(counts))
	for k, c := range counts {
		out = append(out, ranked{Name: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

type report struct {
	Data
	Total    int
	Artists  []ranked
	Tracks   []ranked
	ChartURL string
}

func buildReport(d Data) report {
	artists, tracks := map[string]int{}, map[string]int{}
	for _, p := range d.Plays {
		artists[p.Artist]++
		tracks[p.Artist+" - "+p.Track]++
	}
	r := report{Data: d, Total: len(d.Plays), Artists: top(artists, topN), Tracks: top(tracks, topN)}
	if len(r.Artists) > 0 {
		chart := quickchart.New("bar")
		counts := make([]float64, len(r.Artists))
		for i, a := range r.Artists {
			chart = chart.AddLabels(a.Name)
			counts[i] = float64(a.Count)
		}
		r.ChartURL = chart.AddDataset("Plays", counts).URL()
	}
	return r
}

var tpl = email.MustTemplate("lastfm",
	`<h1>Your {{.Interval}} on Last.fm</h1>
<p>{{.Total}} tracks played since {{.From.Format "Mon 2 Jan 15:04"}}.</p>
{{- if .Artists}}
<h2>Top artists</h2>
<ol>{{range .Artists}}<li>{{.Name}} ({{.Count}})</li>{{end}}</ol>
<img src="{{.ChartURL}}" alt="Top artists chart">
<h2>Top tracks</h2>
<ol>{{range .Tracks}}<li>{{.Name}} ({{.Count}})</li>{{end}}</ol>
{{- end}}
`,
	`Your {{.Interval}} on Last.fm

{{.Total}} tracks played since {{.From.Format "Mon 2 Jan 15:04"}}.
{{if .Artists}}
Top artists:
{{range .Artists}}- {{.Name}} ({{.Count}})
{{end}}
Top tracks:
{{range .Tracks}}- {{.Name}} ({{.Count}})
{{end}}{{end}}`)

func (w *Workflow) Format(raw workflow.RawData, transport domain.Transport) (workflow.Payload, error) {
	data, ok := raw.(Data)
	if !ok {
		return nil, fmt.Errorf("unexpected raw data %T", raw)
	}
	if transport != domain.TransportEmail {
		return nil, workflow.ErrUnsupportedTransport
	}
	r := buildReport(data)
	e := email.Email{
		To:      []string{data.User.Email},
		Subject: fmt.Sprintf("Your Last.fm %s: %d plays", data.Interval, r.Total),
	}
	out, err := tpl.Render(e, r)
	if err != nil {
		return nil, err
	}
	return out, nil
}
