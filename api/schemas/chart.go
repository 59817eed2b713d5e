package schemas

// -- Chart Configuration --
//
// These types mirror the subset of the chart library's data/options schema
// that the graph data endpoint produces and the chart merger manipulates.

// ChartConfig is the payload of the graph data endpoint.
type ChartConfig struct {
	Data    ChartData    `json:"data"`
	Options ChartOptions `json:"options"`
}

// ChartData holds the x-axis labels and the plotted series.
type ChartData struct {
	Labels   []*string      `json:"labels,omitempty"`
	Datasets []ChartDataset `json:"datasets"`
}

// ChartDataset is one plotted series.
type ChartDataset struct {
	Type  string    `json:"type"`
	Label string    `json:"label"`
	Data  []*string `json:"data"`
}

// Len returns the number of points in the series.
func (d ChartDataset) Len() int { return len(d.Data) }

// ChartOptions are the renderer options.
type ChartOptions struct {
	Scales              map[string]ChartScale `json:"scales,omitempty"`
	Animation           *ChartAnimation       `json:"animation,omitempty"`
	MaintainAspectRatio *bool                 `json:"maintainAspectRatio,omitempty"`
	Plugins             *ChartPlugins         `json:"plugins,omitempty"`
}

type ChartScale struct {
	Title *ChartScaleTitle `json:"title,omitempty"`
}

type ChartScaleTitle struct {
	Display bool   `json:"display"`
	Text    string `json:"text"`
}

// ChartAnimation duration is in milliseconds.
type ChartAnimation struct {
	Duration int `json:"duration"`
}

type ChartPlugins struct {
	Legend  *ChartLegend  `json:"legend,omitempty"`
	Tooltip *ChartTooltip `json:"tooltip,omitempty"`
}

type ChartLegend struct {
	Display bool `json:"display"`
}

type ChartTooltip struct {
	Enabled bool `json:"enabled"`
}
