// Package quickchart builds image chart URLs served by https://quickchart.io.
// Only the subset of options the email workflows need is supported.
package quickchart

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

const (
	BaseURL = "https://quickchart.io/chart"

	DefaultType   = "bar"
	DefaultWidth  = 516
	DefaultHeight = 300
)

// Fields are declared in alphabetical order so the encoded config is stable.
type Dataset struct {
	Data  []float64 `json:"data"`
	Label string    `json:"label"`
}

type Data struct {
	Datasets []Dataset `json:"datasets"`
	Labels   []string  `json:"labels"`
}

type Chart struct {
	Data   Data   `json:"data"`
	Type   string `json:"type"`
	Width  int    `json:"-"`
	Height int    `json:"-"`
}

// New returns an empty chart of the given type ("bar" when empty).
func New(chartType string) Chart {
	if chartType == "" {
		chartType = DefaultType
	}
	return Chart{
		Data:   Data{Datasets: []Dataset{}, Labels: []string{}},
		Type:   chartType,
		Width:  DefaultWidth,
		Height: DefaultHeight,
	}
}

func (c Chart) AddLabels(labels ...string) Chart {
	c.Data.Labels = append(append([]string{}, c.Data.Labels...), labels...)
	return c
}

func (c Chart) AddDataset(label string, data []float64) Chart {
	c.Data.Datasets = append(append([]Dataset{}, c.Data.Datasets...), Dataset{Label: label, Data: data})
	return c
}

func (c Chart) SetDimensions(width, height int) Chart {
	c.Width, c.Height = width, height
	return c
}

// URL encodes the chart config with single quotes, which quickchart accepts
// and keeps the URL shorter once escaped.
func (c Chart) URL() string {
	cfg, _ := json.Marshal(c)
	v := url.Values{}
	v.Set("c", strings.ReplaceAll(string(cfg), `"`, `'`))
	v.Set("width", strconv.Itoa(c.Width))
	v.Set("height", strconv.Itoa(c.Height))
	return BaseURL + "?" + v.Encode()
}
