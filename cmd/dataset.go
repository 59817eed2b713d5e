// File: cmd/dataset.go
package cmd

import (
	"encoding/json"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/csvmapper-cli/api/schemas"
	"github.com/xkilldash9x/csvmapper-cli/internal/apiclient"
)

func newDatasetCmd(c *cli) *cobra.Command {
	datasetCmd := &cobra.Command{
		Use:   "dataset",
		Short: "Manage the datasets of a graph",
	}

	var (
		in       apiclient.DatasetInput
		plotType string
	)
	addInputFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&in.Label, "label", "", "series label")
		cmd.Flags().StringVar(&plotType, "plot-type", string(schemas.PlotLine), "one of none, line, bar, pie, doughnut, polar_area, radar, scatter")
		cmd.Flags().BoolVar(&in.IsAxis, "axis", false, "use the column as the x axis labels")
		cmd.Flags().IntVar(&in.SourceID, "source", 0, "source id")
		cmd.Flags().IntVar(&in.ColumnID, "column", 0, "zero-based column index in the source")
	}
	input := func() apiclient.DatasetInput {
		in.PlotType = schemas.PlotType(plotType)
		return in
	}

	// ids parses the graph id and, when want is 2, the dataset id.
	ids := func(args []string, want int) (graphID, datasetID int, err error) {
		if graphID, err = parseID("graph id", args[0]); err != nil {
			return 0, 0, err
		}
		if want == 2 {
			datasetID, err = parseID("dataset id", args[1])
		}
		return graphID, datasetID, err
	}

	listCmd := &cobra.Command{
		Use:   "list <graph-id>",
		Short: "List the datasets of a graph",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			graphID, _, err := ids(args, 1)
			if err != nil {
				return err
			}
			return c.printEnvelope(cmd, a.client.ListGraphDatasets(cmd.Context(), graphID), renderDatasets)
		}),
	}

	getCmd := &cobra.Command{
		Use:   "get <graph-id> <dataset-id>",
		Short: "Show a dataset",
		Args:  cobra.ExactArgs(2),
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			graphID, datasetID, err := ids(args, 2)
			if err != nil {
				return err
			}
			return c.printEnvelope(cmd, a.client.GetGraphDataset(cmd.Context(), graphID, datasetID), renderDataset)
		}),
	}

	createCmd := &cobra.Command{
		Use:   "create <graph-id>",
		Short: "Add a dataset to a graph",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			graphID, _, err := ids(args, 1)
			if err != nil {
				return err
			}
			return c.printEnvelope(cmd, a.client.CreateGraphDataset(cmd.Context(), graphID, input()), nil)
		}),
	}
	addInputFlags(createCmd)

	updateCmd := &cobra.Command{
		Use:   "update <graph-id> <dataset-id>",
		Short: "Replace the fields of a dataset",
		Args:  cobra.ExactArgs(2),
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			graphID, datasetID, err := ids(args, 2)
			if err != nil {
				return err
			}
			return c.printEnvelope(cmd, a.client.UpdateGraphDataset(cmd.Context(), graphID, datasetID, input()), nil)
		}),
	}
	addInputFlags(updateCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete <graph-id> <dataset-id>",
		Short: "Remove a dataset from a graph",
		Args:  cobra.ExactArgs(2),
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			graphID, datasetID, err := ids(args, 2)
			if err != nil {
				return err
			}
			return c.printEnvelope(cmd, a.client.DeleteGraphDataset(cmd.Context(), graphID, datasetID), nil)
		}),
	}

	datasetCmd.AddCommand(listCmd, getCmd, createCmd, updateCmd, deleteCmd)
	return datasetCmd
}

func renderDatasets(table *tablewriter.Table, data json.RawMessage) error {
	sets, err := decodeInto[[]schemas.Dataset](data)
	if err != nil {
		return err
	}
	table.Header("ID", "Label", "Plot", "Axis", "Source", "Column")
	for _, d := range sets {
		source := d.SourceName
		if source == "" {
			source = itoa(d.SourceID)
		}
		if err := table.Append(itoa(d.ID), d.Label, d.PlotType.String(), yesNo(d.IsAxis), source, itoa(d.ColumnID)); err != nil {
			return err
		}
	}
	return nil
}

func renderDataset(table *tablewriter.Table, data json.RawMessage) error {
	d, err := decodeInto[schemas.Dataset](data)
	if err != nil {
		return err
	}
	table.Header("Field", "Value")
	for _, row := range [][]string{
		{"Label", d.Label},
		{"Plot", d.PlotType.String()},
		{"Axis", yesNo(d.IsAxis)},
		{"Source", itoa(d.SourceID)},
		{"Column", itoa(d.ColumnID)},
	} {
		if err := table.Append(row[0], row[1]); err != nil {
			return err
		}
	}
	return nil
}
