// File: cmd/form.go
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/csvmapper-cli/internal/browser/form"
	"github.com/xkilldash9x/csvmapper-cli/internal/browser/page"
)

func newFormCmd(c *cli) *cobra.Command {
	formCmd := &cobra.Command{
		Use:   "form",
		Short: "Inspect HTML forms",
	}

	var selector string
	readCmd := &cobra.Command{
		Use:   "read <url-or-file>",
		Short: "Print the name/value mapping of a form",
		Long: `Reads the controls of a form the way the dashboard submits them:
checkboxes and radios as booleans, everything else as its raw value.
A URL is loaded through a logged-in session; anything else is read as a local
HTML file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := c.loadDocument(cmd, args[0])
			if err != nil {
				return err
			}
			node, err := form.Find(doc, selector)
			if err != nil {
				return err
			}
			return c.printForm(cmd, form.Read(node))
		},
	}
	readCmd.Flags().StringVarP(&selector, "selector", "s", "", `form to read: XPath, "#id" or "form[name=...]" (default: first form)`)

	formCmd.AddCommand(readCmd)
	return formCmd
}

func (c *cli) loadDocument(cmd *cobra.Command, target string) (*html.Node, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		a, err := c.connect(cmd.Context())
		if err != nil {
			return nil, err
		}
		defer a.Close()
		if err := a.session.Navigate(cmd.Context(), target); err != nil {
			return nil, err
		}
		return a.session.Document(cmd.Context())
	}

	f, err := os.Open(target)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", target, err)
	}
	defer f.Close()
	abs, _ := filepath.Abs(target)
	p, err := page.Parse("file://"+filepath.ToSlash(abs), f)
	if err != nil {
		return nil, err
	}
	return p.Document(cmd.Context())
}

func (c *cli) printForm(cmd *cobra.Command, values form.Values) error {
	out := cmd.OutOrStdout()
	if c.output == "json" {
		return writeJSON(out, values)
	}
	table := tablewriter.NewWriter(out)
	table.Header("Name", "Value")
	for _, name := range values.Names() {
		if err := table.Append(name, fmt.Sprint(values[name])); err != nil {
			return err
		}
	}
	return table.Render()
}
