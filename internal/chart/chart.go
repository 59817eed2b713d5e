package chart

import (
	"sync"

	"github.com/xkilldash9x/csvmapper-cli/api/schemas"
)

// Snapshot is a copy of a Chart's state after an update.
type Snapshot struct {
	Data     schemas.ChartData    `json:"data"`
	Options  schemas.ChartOptions `json:"options"`
	Hidden   []bool               `json:"hidden"`
	Revision int                  `json:"revision"`
}

// Visible returns the indexes of the series that are shown.
func (s Snapshot) Visible() []int {
	var out []int
	for i, h := range s.Hidden {
		if !h {
			out = append(out, i)
		}
	}
	return out
}

// Chart is an in-memory Renderer. Like the browser chart library, replacing
// the data resets the per-series metadata.
type Chart struct {
	mu       sync.Mutex
	data     schemas.ChartData
	options  schemas.ChartOptions
	metas    []*DatasetMeta
	revision int
	last     Snapshot

	// OnUpdate, when set, receives a snapshot after every Update.
	OnUpdate func(Snapshot)
}

var (
	_ Renderer           = (*Chart)(nil)
	_ visibilityRenderer = (*Chart)(nil)
)

// New returns an empty chart.
func New() *Chart { return &Chart{} }

func (c *Chart) Data() schemas.ChartData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data
}

func (c *Chart) SetData(d schemas.ChartData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = d
	c.metas = make([]*DatasetMeta, len(d.Datasets))
	for i := range c.metas {
		c.metas[i] = &DatasetMeta{}
	}
}

func (c *Chart) SetOptions(o schemas.ChartOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options = o
}

// DatasetMeta returns the metadata of series i. Writes through it are not
// synchronized; code sharing the chart between goroutines uses Hide, Show
// and SetHidden instead.
func (c *Chart) DatasetMeta(i int) *DatasetMeta {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.metas) {
		return nil
	}
	return c.metas[i]
}

// Update commits the pending state and notifies OnUpdate.
func (c *Chart) Update() {
	c.mu.Lock()
	c.revision++
	snap := c.snapshotLocked()
	c.last = snap
	hook := c.OnUpdate
	c.mu.Unlock()

	if hook != nil {
		hook(snap)
	}
}

// Hide marks series i hidden. It reports whether the series exists.
func (c *Chart) Hide(i int) bool { return c.SetHidden(i, true) }

// Show marks series i visible. It reports whether the series exists.
func (c *Chart) Show(i int) bool { return c.SetHidden(i, false) }

// IsHidden reports the visibility of series i and whether it exists.
func (c *Chart) IsHidden(i int) (hidden, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.metas) {
		return false, false
	}
	return c.metas[i].Hidden, true
}

// SetHidden sets the visibility of series i. It reports whether the series
// exists.
func (c *Chart) SetHidden(i int, hidden bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.metas) {
		return false
	}
	c.metas[i].Hidden = hidden
	return true
}

// Snapshot returns the state as of the last Update, so a merge running on
// another goroutine is never observed half done.
func (c *Chart) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.last
	snap.Hidden = append([]bool(nil), c.last.Hidden...)
	return snap
}

func (c *Chart) snapshotLocked() Snapshot {
	hidden := make([]bool, len(c.metas))
	for i, m := range c.metas {
		hidden[i] = m.Hidden
	}
	return Snapshot{Data: c.data, Options: c.options, Hidden: hidden, Revision: c.revision}
}
