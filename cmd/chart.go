// File: cmd/chart.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/csvmapper-cli/api/schemas"
	"github.com/xkilldash9x/csvmapper-cli/internal/browser/page"
	"github.com/xkilldash9x/csvmapper-cli/internal/chart"
)

type chartOptions struct {
	watch    bool
	hide     []int
	fromURL  string
	interval time.Duration
}

func newGraphChartCmd(c *cli) *cobra.Command {
	var opts chartOptions

	cmd := &cobra.Command{
		Use:   "chart [graph-id...]",
		Short: "Render the chart of one or more graphs, optionally refreshing it",
		Long: `Fetches the chart data of each graph and merges it into a chart.
Without --watch the merged chart is printed once. With --watch every graph
is polled until interrupted, keeping series hidden with --hide hidden.`,
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			ids, err := chartGraphIDs(args, opts.fromURL)
			if err != nil {
				return err
			}
			interval := opts.interval
			if interval <= 0 {
				interval = c.cfg.Chart().RefreshInterval
			}
			return c.runCharts(cmd, a, ids, interval, opts)
		}),
	}

	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "keep refreshing until interrupted")
	cmd.Flags().IntSliceVar(&opts.hide, "hide", nil, "series indexes to hide after the first load")
	cmd.Flags().StringVar(&opts.fromURL, "from-url", "", "dashboard URL whose graph query parameter names the graph")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "refresh interval (default chart.refresh_interval)")
	return cmd
}

// chartGraphIDs merges positional ids with the one named by a dashboard URL.
func chartGraphIDs(args []string, fromURL string) ([]int, error) {
	var ids []int
	for _, arg := range args {
		id, err := parseID("graph id", arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if fromURL != "" {
		p := page.QueryParam(fromURL, "graph")
		if !p.Present || p.Bare {
			return nil, fmt.Errorf("%s does not name a graph (expected ?graph=<id>)", fromURL)
		}
		id, err := parseID("graph id", p.Value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.New("no graph given: pass a graph id or --from-url")
	}
	return ids, nil
}

type graphChart struct {
	id        int
	chart     *chart.Chart
	refresher *chart.Refresher
}

func (c *cli) runCharts(cmd *cobra.Command, a *app, ids []int, interval time.Duration, opts chartOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	charts := make([]*graphChart, 0, len(ids))
	for _, id := range ids {
		gc := &graphChart{id: id, chart: chart.New()}
		fetch := func(ctx context.Context) (*schemas.ChartConfig, error) {
			return a.client.GraphChart(ctx, id)
		}
		gc.refresher = chart.NewRefresher(fetch, gc.chart, interval, a.logger.With(zap.Int("graph_id", id)))
		if err := gc.refresher.Refresh(ctx, true); err != nil {
			return err
		}
		for _, i := range opts.hide {
			if !gc.chart.Hide(i) {
				a.logger.Warn("Cannot hide a series the chart does not have", zap.Int("graph_id", id), zap.Int("series", i))
			}
		}
		gc.chart.Update()
		charts = append(charts, gc)
	}

	if err := c.printCharts(out, charts); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}

	var mu sync.Mutex
	refreshers := make([]*chart.Refresher, len(charts))
	for i, gc := range charts {
		id := gc.id
		gc.chart.OnUpdate = func(s chart.Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			c.printUpdate(out, id, s)
		}
		refreshers[i] = gc.refresher
	}
	err := chart.RunDashboard(ctx, refreshers...)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *cli) printCharts(out io.Writer, charts []*graphChart) error {
	if c.output == "json" {
		snaps := make(map[string]chart.Snapshot, len(charts))
		for _, gc := range charts {
			snaps[itoa(gc.id)] = gc.chart.Snapshot()
		}
		return writeJSON(out, snaps)
	}
	for _, gc := range charts {
		snap := gc.chart.Snapshot()
		if _, err := fmt.Fprintf(out, "Graph %d (%s)\n", gc.id, describeLabels(snap.Data)); err != nil {
			return err
		}
		table := tablewriter.NewWriter(out)
		if err := appendSeries(table, snap.Data, snap.Hidden); err != nil {
			return err
		}
		if err := table.Render(); err != nil {
			return err
		}
	}
	return nil
}

// printUpdate writes one line per refresh in watch mode.
func (c *cli) printUpdate(out io.Writer, id int, s chart.Snapshot) {
	if c.output == "json" {
		_ = writeJSON(out, map[string]any{"graph": id, "snapshot": s})
		return
	}
	visible := make([]string, 0, len(s.Hidden))
	for _, i := range s.Visible() {
		visible = append(visible, itoa(i))
	}
	fmt.Fprintf(out, "%s graph %d revision %d: %d series, visible [%s]\n",
		time.Now().Format(time.TimeOnly), id, s.Revision, len(s.Data.Datasets), strings.Join(visible, ","))
}

func describeLabels(d schemas.ChartData) string {
	if len(d.Labels) == 0 {
		return "no labels"
	}
	return fmt.Sprintf("%d labels, %s .. %s", len(d.Labels), cell(d.Labels[0]), cell(d.Labels[len(d.Labels)-1]))
}
