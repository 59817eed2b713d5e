// File: cmd/source.go
package cmd

import (
	"encoding/json"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/csvmapper-cli/api/schemas"
	"github.com/xkilldash9x/csvmapper-cli/internal/apiclient"
)

func newSourceCmd(c *cli) *cobra.Command {
	sourceCmd := &cobra.Command{
		Use:   "source",
		Short: "Manage CSV sources",
	}

	var in apiclient.SourceInput
	addInputFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&in.Name, "name", "", "source name")
		cmd.Flags().StringVar(&in.Location, "location", "", "URL or path of the CSV file")
		cmd.Flags().BoolVar(&in.HasHeader, "has-header", false, "the first row holds column names")
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List sources",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			return c.printEnvelope(cmd, a.client.ListSources(cmd.Context()), renderSources)
		}),
	}

	getCmd := &cobra.Command{
		Use:   "get <source-id>",
		Short: "Show a source",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := parseID("source id", args[0])
			if err != nil {
				return err
			}
			return c.printEnvelope(cmd, a.client.GetSource(cmd.Context(), id), renderSource)
		}),
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new source",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			return c.printEnvelope(cmd, a.client.CreateSource(cmd.Context(), in), nil)
		}),
	}
	addInputFlags(createCmd)

	updateCmd := &cobra.Command{
		Use:   "update <source-id>",
		Short: "Replace the fields of a source",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := parseID("source id", args[0])
			if err != nil {
				return err
			}
			return c.printEnvelope(cmd, a.client.UpdateSource(cmd.Context(), id, in), nil)
		}),
	}
	addInputFlags(updateCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete <source-id>",
		Short: "Delete a source",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := parseID("source id", args[0])
			if err != nil {
				return err
			}
			return c.printEnvelope(cmd, a.client.DeleteSource(cmd.Context(), id), nil)
		}),
	}

	dataCmd := &cobra.Command{
		Use:   "data <source-id>",
		Short: "Show the parsed columns of a source",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := parseID("source id", args[0])
			if err != nil {
				return err
			}
			return c.printEnvelope(cmd, a.client.GetSourceData(cmd.Context(), id), renderColumns)
		}),
	}

	sourceCmd.AddCommand(listCmd, getCmd, createCmd, updateCmd, deleteCmd, dataCmd)
	return sourceCmd
}

func renderSources(table *tablewriter.Table, data json.RawMessage) error {
	sources, err := decodeInto[[]schemas.Source](data)
	if err != nil {
		return err
	}
	table.Header("ID", "Name", "Location", "Header")
	for _, s := range sources {
		if err := table.Append(itoa(s.ID), s.Name, s.Location, yesNo(s.HasHeader)); err != nil {
			return err
		}
	}
	return nil
}

func renderSource(table *tablewriter.Table, data json.RawMessage) error {
	s, err := decodeInto[schemas.Source](data)
	if err != nil {
		return err
	}
	table.Header("Field", "Value")
	for _, row := range [][]string{
		{"Name", s.Name},
		{"Location", s.Location},
		{"Header", yesNo(s.HasHeader)},
	} {
		if err := table.Append(row[0], row[1]); err != nil {
			return err
		}
	}
	return nil
}

// renderColumns lays the columns out side by side, one CSV row per line.
func renderColumns(table *tablewriter.Table, data json.RawMessage) error {
	cols, err := decodeInto[[]schemas.SourceColumn](data)
	if err != nil {
		return err
	}
	header := make([]any, len(cols))
	rows := 0
	for i, col := range cols {
		name := col.Name
		if col.Unit != "" {
			name += " (" + col.Unit + ")"
		}
		header[i] = name
		rows = max(rows, len(col.Data))
	}
	table.Header(header...)
	for r := 0; r < rows; r++ {
		line := make([]any, len(cols))
		for i, col := range cols {
			if r < len(col.Data) {
				line[i] = cell(col.Data[r])
			} else {
				line[i] = ""
			}
		}
		if err := table.Append(line...); err != nil {
			return err
		}
	}
	return nil
}
