// File: cmd/login.go
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check that the configured credentials can log in",
		Long: `Logs in with server.username and server.password (or CSVMAPPER_SERVER_PASSWORD)
and opens the dashboard. Nothing is stored: every command logs in again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			username := c.cfg.Server().Username
			if username == "" {
				return errors.New("no username configured (set server.username or pass --username)")
			}
			a, err := c.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s at %s\n", username, a.session.CurrentURL())
			return err
		},
	}
}
