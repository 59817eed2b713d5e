// File: cmd/graph.go
package cmd

import (
	"encoding/json"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/csvmapper-cli/api/schemas"
	"github.com/xkilldash9x/csvmapper-cli/internal/apiclient"
)

func newGraphCmd(c *cli) *cobra.Command {
	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Manage graphs",
	}

	var in apiclient.GraphInput
	addInputFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&in.Name, "name", "", "graph name")
		cmd.Flags().StringVar(&in.Description, "description", "", "graph description")
	}

	withGraphID := func(run func(cmd *cobra.Command, a *app, id int) error) func(*cobra.Command, []string) error {
		return c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := parseID("graph id", args[0])
			if err != nil {
				return err
			}
			return run(cmd, a, id)
		})
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List graphs",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			return c.printEnvelope(cmd, a.client.ListGraphs(cmd.Context()), renderGraphs)
		}),
	}

	getCmd := &cobra.Command{
		Use:   "get <graph-id>",
		Short: "Show a graph",
		Args:  cobra.ExactArgs(1),
		RunE: withGraphID(func(cmd *cobra.Command, a *app, id int) error {
			return c.printEnvelope(cmd, a.client.GetGraph(cmd.Context(), id), renderGraph)
		}),
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a graph",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			return c.printEnvelope(cmd, a.client.CreateGraph(cmd.Context(), in), nil)
		}),
	}
	addInputFlags(createCmd)

	updateCmd := &cobra.Command{
		Use:   "update <graph-id>",
		Short: "Replace the fields of a graph",
		Args:  cobra.ExactArgs(1),
		RunE: withGraphID(func(cmd *cobra.Command, a *app, id int) error {
			return c.printEnvelope(cmd, a.client.UpdateGraph(cmd.Context(), id, in), nil)
		}),
	}
	addInputFlags(updateCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete <graph-id>",
		Short: "Delete a graph and its datasets",
		Args:  cobra.ExactArgs(1),
		RunE: withGraphID(func(cmd *cobra.Command, a *app, id int) error {
			return c.printEnvelope(cmd, a.client.DeleteGraph(cmd.Context(), id), nil)
		}),
	}

	dataCmd := &cobra.Command{
		Use:   "data <graph-id>",
		Short: "Show the chart configuration the server builds for a graph",
		Args:  cobra.ExactArgs(1),
		RunE: withGraphID(func(cmd *cobra.Command, a *app, id int) error {
			return c.printEnvelope(cmd, a.client.GetGraphData(cmd.Context(), id), renderChartConfig)
		}),
	}

	graphCmd.AddCommand(listCmd, getCmd, createCmd, updateCmd, deleteCmd, dataCmd, newGraphChartCmd(c))
	return graphCmd
}

func renderGraphs(table *tablewriter.Table, data json.RawMessage) error {
	graphs, err := decodeInto[[]schemas.Graph](data)
	if err != nil {
		return err
	}
	table.Header("ID", "Name", "Description")
	for _, g := range graphs {
		if err := table.Append(itoa(g.ID), g.Name, g.Description); err != nil {
			return err
		}
	}
	return nil
}

func renderGraph(table *tablewriter.Table, data json.RawMessage) error {
	g, err := decodeInto[schemas.Graph](data)
	if err != nil {
		return err
	}
	table.Header("Field", "Value")
	if err := table.Append("Name", g.Name); err != nil {
		return err
	}
	return table.Append("Description", g.Description)
}

func renderChartConfig(table *tablewriter.Table, data json.RawMessage) error {
	cfg, err := decodeInto[schemas.ChartConfig](data)
	if err != nil {
		return err
	}
	return appendSeries(table, cfg.Data, nil)
}

// appendSeries writes one row per series. hidden may be shorter than the
// series list.
func appendSeries(table *tablewriter.Table, data schemas.ChartData, hidden []bool) error {
	table.Header("#", "Label", "Type", "Points", "Visible")
	for i, ds := range data.Datasets {
		visible := i >= len(hidden) || !hidden[i]
		if err := table.Append(itoa(i), ds.Label, ds.Type, itoa(ds.Len()), yesNo(visible)); err != nil {
			return err
		}
	}
	return nil
}
