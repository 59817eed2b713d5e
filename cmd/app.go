// File: cmd/app.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/csvmapper-cli/api/schemas"
	"github.com/xkilldash9x/csvmapper-cli/internal/apiclient"
	"github.com/xkilldash9x/csvmapper-cli/internal/browser/session"
	"github.com/xkilldash9x/csvmapper-cli/internal/transport"
)

// connectBackOff bounds the retries of the first page load. Tests shorten it.
var connectBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 10 * time.Second
	return backoff.WithMaxRetries(b, 3)
}

// app holds the connected components a server command works with.
type app struct {
	session   *session.Session
	transport *transport.Transport
	client    *apiclient.Client
	logger    *zap.Logger
}

// connect logs in when credentials are configured, then loads the dashboard
// so that API calls have a page to take the CSRF token from.
func (c *cli) connect(ctx context.Context) (*app, error) {
	server := c.cfg.Server()
	sess := session.New(c.cfg, c.logger)

	cred := schemas.Credential{Username: server.Username, Password: server.Password}
	if !cred.Empty() {
		err := retryTransient(ctx, func() error { return sess.Login(ctx, cred) })
		if err != nil {
			sess.Close()
			return nil, fmt.Errorf("login as %q failed: %w", cred.Username, err)
		}
	}

	err := retryTransient(ctx, func() error { return sess.Navigate(ctx, server.DashboardPath) })
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to open the dashboard: %w", err)
	}

	tr := transport.NewFromConfig(sess, sess.HTTPClient(), c.cfg, c.logger)
	return &app{
		session:   sess,
		transport: tr,
		client:    apiclient.New(tr, apiclient.WithLogger(c.logger)),
		logger:    c.logger,
	}, nil
}

func (a *app) Close() {
	a.session.Close()
}

// withApp connects before run and disconnects after it.
func (c *cli) withApp(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := c.connect(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a, args)
	}
}

// retryTransient retries op on network errors and 5xx pages. Anything else,
// a rejected login included, fails at once.
func retryTransient(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		var navErr *session.NavigationError
		if errors.As(err, &navErr) && (navErr.Err != nil || navErr.Status >= http.StatusInternalServerError) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(connectBackOff(), ctx))
}
