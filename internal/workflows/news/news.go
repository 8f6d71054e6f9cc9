// Package news implements send_news_by_tag: the latest Guardian articles for
// a tag, emailed to a user.
package news

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"ada/internal/clock"
	"ada/internal/domain"
	"ada/internal/email"
	"ada/internal/httpclient"
	"ada/internal/workflow"
)

const (
	Name           = "send_news_by_tag"
	DefaultBaseURL = "https://content.guardianapis.com"

	lookback = 24 * time.Hour
	pageSize = 20
)

type Users interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
}

type Config struct {
	APIKey  string
	BaseURL string
}

type Article struct {
	Title       string    `json:"title" yaml:"title"`
	URL         string    `json:"url" yaml:"url"`
	Section     string    `json:"section" yaml:"section"`
	TrailText   string    `json:"trail_text" yaml:"trail_text"`
	PublishedAt time.Time `json:"published_at" yaml:"published_at"`
}

// Data is the raw result of Fetch.
type Data struct {
	User     domain.User `json:"user" yaml:"user"`
	Tag      string      `json:"tag" yaml:"tag"`
	Since    time.Time   `json:"since" yaml:"since"`
	Articles []Article   `json:"articles" yaml:"articles"`
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
func (w *Workflow) HumanName() string { return "Send news by tag" }

func (w *Workflow) Requirements() workflow.Requirements {
	return workflow.Requirements{"user_id": workflow.TypeInteger, "tag": workflow.TypeString}
}

func (w *Workflow) Transports() []domain.Transport {
	return []domain.Transport{domain.TransportEmail}
}

type searchResponse struct {
	Response struct {
		Status  string `json:"status"`
		Results []struct {
			WebTitle           string    `json:"webTitle"`
			WebURL             string    `json:"webUrl"`
			SectionName        string    `json:"sectionName"`
			WebPublicationDate time.Time `json:"webPublicationDate"`
			Fields             struct {
				TrailText string `json:"trailText"`
			} `json:"fields"`
		} `json:"results"`
	} `json:"response"`
}

func (w *Workflow) Fetch(ctx context.Context, p workflow.TypedParams) (workflow.RawData, error) {
	user, err := w.users.GetUser(ctx, p.Int("user_id"))
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	since := w.clock.Now().Add(-lookback)
	tag := p.String("tag")

	q := url.Values{}
	q.Set("tag", tag)
	q.Set("from-date", since.UTC().Format("2006-01-02"))
	q.Set("order-by", "newest")
	q.Set("show-fields", "trailText")
	q.Set("page-size", fmt.Sprint(pageSize))
	q.Set("api-key", w.cfg.APIKey)

	var resp searchResponse
	if err := w.client.GetJSON(ctx, w.cfg.BaseURL+"/search", q, &resp); err != nil {
		return nil, fmt.Errorf("guardian search: %w", err)
	}
	if resp.Response.Status != "ok" {
		return nil, fmt.Errorf("guardian search: status %q", resp.Response.Status)
	}

	data := Data{User: user, Tag: tag, Since: since, Articles: []Article{}}
	for _, r := range resp.Response.Results {
		if r.WebPublicationDate.Before(since) {
			continue
		}
		data.Articles = append(data.Articles, Article{
			Title:       r.WebTitle,
			URL:         r.WebURL,
			Section:     r.SectionName,
			TrailText:   r.Fields.TrailText,
			PublishedAt: r.WebPublicationDate,
		})
	}
	return data, nil
}

var tpl = email.MustTemplate("news",
	`<h1>News for {{.Tag}}</h1>
{{- if not .Articles}}
<p>Nothing new since {{.Since.Format "Mon 2 Jan 15:04"}}.</p>
{{- else}}
<ul>
{{- range .Articles}}
  <li><a href="{{.URL}}">{{.Title}}</a> <small>{{.Section}}</small><br>{{.TrailText}}</li>
{{- end}}
</ul>
{{- end}}
`,
	`News for {{.Tag}}
{{if not .Articles}}
Nothing new since {{.Since.Format "Mon 2 Jan 15:04"}}.
{{else}}{{range .Articles}}
- {{.Title}}
  {{.URL}}
{{end}}{{end}}`)

func (w *Workflow) Format(raw workflow.RawData, transport domain.Transport) (workflow.Payload, error) {
	data, ok := raw.(Data)
	if !ok {
		return nil, fmt.Errorf("unexpected raw data %T", raw)
	}
	if transport != domain.TransportEmail {
		return nil, workflow.ErrUnsupportedTransport
	}
	e := email.Email{
		To:      []string{data.User.Email},
		Subject: fmt.Sprintf("News for %s (%d)", data.Tag, len(data.Articles)),
	}
	out, err := tpl.Render(e, data)
	if err != nil {
		return nil, err
	}
	return out, nil
}
