// Package chart merges graph data into a live chart and keeps charts fresh
// by polling the graph data endpoint.
package chart

import (
	"github.com/xkilldash9x/csvmapper-cli/api/schemas"
)

const (
	// AnimationDuration is the transition length of an animated merge, in ms.
	AnimationDuration = 1000
	// TooltipPointLimit is the largest first series that keeps tooltips on.
	TooltipPointLimit = 2500
)

// DatasetMeta is the renderer's per-series state that survives a merge.
type DatasetMeta struct {
	Hidden bool
}

// Renderer is the surface of a chart instance that Merge drives.
type Renderer interface {
	Data() schemas.ChartData
	SetData(schemas.ChartData)
	SetOptions(schemas.ChartOptions)
	// DatasetMeta returns the mutable state of series i, or nil when the
	// series does not exist.
	DatasetMeta(i int) *DatasetMeta
	Update()
}

// visibilityRenderer is implemented by renderers whose series visibility is
// also changed from other goroutines. Merge then goes through these methods
// instead of writing the DatasetMeta fields.
type visibilityRenderer interface {
	IsHidden(i int) (hidden, ok bool)
	SetHidden(i int, hidden bool) bool
}

// Merge replaces the data and options of r with cfg while keeping the
// visibility the user chose for each series position. It returns false
// without touching r when either argument is nil.
func Merge(r Renderer, cfg *schemas.ChartConfig, animate bool) bool {
	if r == nil || cfg == nil {
		return false
	}

	previous := len(r.Data().Datasets)
	hidden := make([]bool, previous)
	for i := range hidden {
		hidden[i] = hiddenAt(r, i)
	}

	r.SetData(cfg.Data)
	for i := range cfg.Data.Datasets {
		if i >= previous {
			break
		}
		setHiddenAt(r, i, hidden[i])
	}

	r.SetOptions(mergedOptions(cfg, animate))
	r.Update()
	return true
}

func hiddenAt(r Renderer, i int) bool {
	if v, ok := r.(visibilityRenderer); ok {
		hidden, _ := v.IsHidden(i)
		return hidden
	}
	if meta := r.DatasetMeta(i); meta != nil {
		return meta.Hidden
	}
	return false
}

func setHiddenAt(r Renderer, i int, hidden bool) {
	if v, ok := r.(visibilityRenderer); ok {
		v.SetHidden(i, hidden)
		return
	}
	if meta := r.DatasetMeta(i); meta != nil {
		meta.Hidden = hidden
	}
}

// mergedOptions copies cfg.Options and overrides the presentation settings.
// cfg itself is left untouched.
func mergedOptions(cfg *schemas.ChartConfig, animate bool) schemas.ChartOptions {
	opts := cfg.Options
	if cfg.Options.Scales != nil {
		opts.Scales = make(map[string]schemas.ChartScale, len(cfg.Options.Scales))
		for k, v := range cfg.Options.Scales {
			opts.Scales[k] = v
		}
	}

	duration := 0
	if animate {
		duration = AnimationDuration
	}
	opts.Animation = &schemas.ChartAnimation{Duration: duration}

	keepAspect := false
	opts.MaintainAspectRatio = &keepAspect

	datasets := cfg.Data.Datasets
	plugins := schemas.ChartPlugins{}
	if cfg.Options.Plugins != nil {
		plugins = *cfg.Options.Plugins
	}
	plugins.Legend = &schemas.ChartLegend{Display: len(datasets) > 1}
	plugins.Tooltip = &schemas.ChartTooltip{Enabled: len(datasets) > 0 && datasets[0].Len() <= TooltipPointLimit}
	opts.Plugins = &plugins

	return opts
}
