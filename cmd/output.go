// File: cmd/output.go
package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/csvmapper-cli/api/schemas"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// tableFunc renders the payload of a success envelope.
type tableFunc func(table *tablewriter.Table, data json.RawMessage) error

// printEnvelope writes env in the selected format. Error envelopes become the
// command's error so the process exits non-zero.
func (c *cli) printEnvelope(cmd *cobra.Command, env schemas.Envelope, render tableFunc) error {
	if err := env.Err(); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if c.output == "json" {
		return writeJSON(out, env)
	}

	if env.Message != "" {
		if _, err := fmt.Fprintln(out, env.Message); err != nil {
			return err
		}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}

	var text string
	if jsonAPI.Unmarshal(env.Data, &text) == nil {
		_, err := fmt.Fprintln(out, text)
		return err
	}
	if render == nil {
		return writeJSON(out, env.Data)
	}
	table := tablewriter.NewWriter(out)
	if err := render(table, env.Data); err != nil {
		return err
	}
	return table.Render()
}

// writeJSON indents the compact encoding of v as a whole, so raw payloads
// nested in an envelope come out in the same layout as the envelope.
func writeJSON(w io.Writer, v any) error {
	b, err := jsonAPI.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, b, "", "  "); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	buf.WriteByte('\n')
	_, err = buf.WriteTo(w)
	return err
}

// decodeInto is the table-side counterpart of schemas.Decode.
func decodeInto[T any](data json.RawMessage) (T, error) {
	var out T
	if err := jsonAPI.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("unexpected response payload: %w", err)
	}
	return out, nil
}

func cell(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func itoa(i int) string { return strconv.Itoa(i) }

// parseID reads a positional id. Range checks are left to the API client so
// that the messages stay the same for every caller.
func parseID(name, arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: expected an integer", name, arg)
	}
	return id, nil
}
