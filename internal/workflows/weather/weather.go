// Package weather implements send_weather_forecast: the hourly forecast for
// one of the user's locations, with a temperature chart.
package weather

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"ada/internal/domain"
	"ada/internal/email"
	"ada/internal/httpclient"
	"ada/internal/quickchart"
	"ada/internal/workflow"
)

const (
	Name           = "send_weather_forecast"
	DefaultBaseURL = "https://api.open-meteo.com"

	hourLayout = "2006-01-02T15:04"
)

type Directory interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetLocation(ctx context.Context, id int64) (domain.Location, error)
}

type Config struct {
	BaseURL string
}

type Hour struct {
	Time          time.Time `json:"time" yaml:"time"`
	TemperatureC  float64   `json:"temperature_c" yaml:"temperature_c"`
	Precipitation float64   `json:"precipitation_probability" yaml:"precipitation_probability"`
}

// Data is the raw result of Fetch.
type Data struct {
	User     domain.User     `json:"user" yaml:"user"`
	Location domain.Location `json:"location" yaml:"location"`
	Timezone string          `json:"timezone" yaml:"timezone"`
	Hours    []Hour          `json:"hours" yaml:"hours"`
}

type Workflow struct {
	cfg    Config
	dir    Directory
	client *httpclient.Client
}

func New(cfg Config, dir Directory, client *httpclient.Client) *Workflow {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Workflow{cfg: cfg, dir: dir, client: client}
}

func (w *Workflow) Name() string      { return Name }
func (w *Workflow) HumanName() string { return "Send weather forecast" }

func (w *Workflow) Requirements() workflow.Requirements {
	return workflow.Requirements{"user_id": workflow.TypeInteger, "location_id": workflow.TypeInteger}
}

func (w *Workflow) Transports() []domain.Transport {
	return []domain.Transport{domain.TransportEmail}
}

type forecastResponse struct {
	Timezone string `json:"timezone"`
	Hourly   struct {
		Time          []string  `json:"time"`
		Temperature   []float64 `json:"temperature_2m"`
		Precipitation []float64 `json:"precipitation_probability"`
	} `json:"hourly"`
}

func (w *Workflow) Fetch(ctx context.Context, p workflow.TypedParams) (workflow.RawData, error) {
	user, err := w.dir.GetUser(ctx, p.Int("user_id"))
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	loc, err := w.dir.GetLocation(ctx, p.Int("location_id"))
	if err != nil {
		return nil, fmt.Errorf("load location: %w", err)
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(loc.Lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Lng, 'f', 4, 64))
	q.Set("hourly", "temperature_2m,precipitation_probability")
	q.Set("forecast_days", "1")
	q.Set("timezone", "auto")

	var resp forecastResponse
	if err := w.client.GetJSON(ctx, w.cfg.BaseURL+"/v1/forecast", q, &resp); err != nil {
		return nil, fmt.Errorf("open-meteo forecast: %w", err)
	}
	hours, err := resp.hours()
	if err != nil {
		return nil, err
	}
	return Data{User: user, Location: loc, Timezone: resp.Timezone, Hours: hours}, nil
}

func (r forecastResponse) hours() ([]Hour, error) {
	h := r.Hourly
	if len(h.Temperature) != len(h.Time) || len(h.Precipitation) != len(h.Time) {
		return nil, fmt.Errorf("open-meteo forecast: mismatched series lengths")
	}
	tz, err := time.LoadLocation(r.Timezone)
	if err != nil {
		tz = time.UTC
	}
	out := make([]Hour, 0, len(h.Time))
	for i, s := range h.Time {
		t, err := time.ParseInLocation(hourLayout, s, tz)
		if err != nil {
			return nil, fmt.Errorf("open-meteo forecast: time %q: %w", s, err)
		}
		out = append(out, Hour{Time: t, TemperatureC: h.Temperature[i], Precipitation: h.Precipitation[i]})
	}
	return out, nil
}

type summary struct {
	Data
	Min, Max    float64
	MaxRain     float64
	RainyHour   string
	ChartURL    string
	HasForecast bool
}

func summarize(d Data) summary {
	s := summary{Data: d, HasForecast: len(d.Hours) > 0, Min: math.Inf(1), Max: math.Inf(-1)}
	chart := quickchart.New("line").SetDimensions(516, 240)
	labels := make([]string, 0, len(d.Hours))
	temps := make([]float64, 0, len(d.Hours))
	for _, h := range d.Hours {
		s.Min = math.Min(s.Min, h.TemperatureC)
		s.Max = math.Max(s.Max, h.TemperatureC)
		if h.Precipitation > s.MaxRain {
			s.MaxRain = h.Precipitation
			s.RainyHour = h.Time.Format("15:04")
		}
		labels = append(labels, h.Time.Format("15:04"))
		temps = append(temps, h.TemperatureC)
	}
	if !s.HasForecast {
		s.Min, s.Max = 0, 0
	}
	s.ChartURL = chart.AddLabels(labels...).AddDataset("Temperature (°C)", temps).URL()
	return s
}

var tpl = email.MustTemplate("weather",
	`<h1>Weather for {{.Location.Name}}</h1>
{{- if .HasForecast}}
<p>Between {{printf "%.1f" .Min}}°C and {{printf "%.1f" .Max}}°C.
{{- if .RainyHour}} Chance of rain up to {{printf "%.0f" .MaxRain}}% around {{.RainyHour}}.{{else}} No rain expected.{{end}}</p>
<img src="{{.ChartURL}}" alt="Temperature chart" width="516" height="240">
{{- else}}
<p>No forecast available.</p>
{{- end}}
`,
	`Weather for {{.Location.Name}}
{{if .HasForecast}}
Between {{printf "%.1f" .Min}}°C and {{printf "%.1f" .Max}}°C.
{{if .RainyHour}}Chance of rain up to {{printf "%.0f" .MaxRain}}% around {{.RainyHour}}.{{else}}No rain expected.{{end}}
{{else}}
No forecast available.
{{end}}`)

func (w *Workflow) Format(raw workflow.RawData, transport domain.Transport) (workflow.Payload, error) {
	data, ok := raw.(Data)
	if !ok {
		return nil, fmt.Errorf("unexpected raw data %T", raw)
	}
	if transport != domain.TransportEmail {
		return nil, workflow.ErrUnsupportedTransport
	}
	s := summarize(data)
	subject := fmt.Sprintf("Weather for %s", data.Location.Name)
	if s.HasForecast {
		subject = fmt.Sprintf("Weather for %s: %.0f°C to %.0f°C", data.Location.Name, s.Min, s.Max)
	}
	out, err := tpl.Render(email.Email{To: []string{data.User.Email}, Subject: subject}, s)
	if err != nil {
		return nil, err
	}
	return out, nil
}
