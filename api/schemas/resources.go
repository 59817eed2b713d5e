package schemas

import (
	"fmt"
	"strings"
)

// -- Plot Types --

// PlotType is how a dataset is drawn on its graph.
type PlotType string

const (
	PlotNone      PlotType = "none"
	PlotLine      PlotType = "line"
	PlotBar       PlotType = "bar"
	PlotPie       PlotType = "pie"
	PlotDoughnut  PlotType = "doughnut"
	PlotPolarArea PlotType = "polar_area"
	PlotRadar     PlotType = "radar"
	PlotScatter   PlotType = "scatter"
)

// PlotTypes lists every supported plot type in display order.
var PlotTypes = []PlotType{
	PlotNone, PlotLine, PlotBar, PlotPie, PlotDoughnut, PlotPolarArea, PlotRadar, PlotScatter,
}

func (p PlotType) String() string { return string(p) }

// Valid reports whether p is one of the supported plot types.
func (p PlotType) Valid() bool {
	for _, known := range PlotTypes {
		if p == known {
			return true
		}
	}
	return false
}

// ChartType is the renderer's name for the plot type. Only polar area differs.
func (p PlotType) ChartType() string {
	if p == PlotPolarArea {
		return "polarArea"
	}
	return string(p)
}

// ParsePlotType converts user input into a PlotType.
func ParsePlotType(s string) (PlotType, error) {
	p := PlotType(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unsupported plot type %q", s)
	}
	return p, nil
}

// -- Sources --

// Source is a CSV feed registered with the server.
type Source struct {
	ID        int    `json:"id,omitempty"`
	Name      string `json:"name"`
	Location  string `json:"location"`
	HasHeader bool   `json:"has_header"`
}

// SourceColumn is one column of a source's parsed CSV data. Cells that could
// not be read are null.
type SourceColumn struct {
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	Transform string    `json:"transform"`
	Data      []*string `json:"data"`
}

// -- Graphs --

// Graph is a named chart definition.
type Graph struct {
	ID          int    `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Dataset is a single series of a graph, bound to one column of a source.
type Dataset struct {
	ID         int      `json:"id,omitempty"`
	Label      string   `json:"label"`
	PlotType   PlotType `json:"plot_type"`
	IsAxis     bool     `json:"is_axis"`
	SourceID   int      `json:"source_id"`
	ColumnID   int      `json:"column_id"`
	SourceName string   `json:"source_name,omitempty"`
}
