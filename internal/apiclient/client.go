// Package apiclient is the typed front end of the csv mapper REST API. Every
// method validates its arguments, builds the request and hands it to a
// Sender, returning the resulting envelope unchanged.
package apiclient

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/csvmapper-cli/api/schemas"
	"github.com/xkilldash9x/csvmapper-cli/internal/transport"
)

// Sender performs a single API request. *transport.Transport implements it.
type Sender interface {
	Send(ctx context.Context, endpoint string, method transport.Method, body any) schemas.Envelope
}

var _ Sender = (*transport.Transport)(nil)

// Client exposes one method per API operation.
type Client struct {
	sender Sender
	logger *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the logger used to report rejected arguments.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client on top of sender.
func New(sender Sender, opts ...Option) *Client {
	c := &Client{sender: sender, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("apiclient")
	return c
}

// ParamError reports an argument that failed validation.
type ParamError struct {
	Param  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("Invalid `%s` parameter: %s.", e.Param, e.Reason)
}

func positiveInt(name string, v int) error {
	if v <= 0 {
		return &ParamError{Param: name, Reason: "expected a positive integer"}
	}
	return nil
}

func nonNegativeInt(name string, v int) error {
	if v < 0 {
		return &ParamError{Param: name, Reason: "expected a non-negative integer"}
	}
	return nil
}

func nonEmptyString(name, v string) error {
	if strings.TrimSpace(v) == "" {
		return &ParamError{Param: name, Reason: "expected a non-empty string"}
	}
	return nil
}

func supportedPlotType(name string, p schemas.PlotType) error {
	if !p.Valid() {
		return &ParamError{Param: name, Reason: fmt.Sprintf("%q is not a supported plot type", string(p))}
	}
	return nil
}

// first returns the first failed check.
func first(checks ...error) error {
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

// call validates, then sends. No request is made when a check fails.
func (c *Client) call(ctx context.Context, op string, checks []error, endpoint string, method transport.Method, body any) schemas.Envelope {
	if err := first(checks...); err != nil {
		c.logger.Debug("Rejected API call", zap.String("operation", op), zap.Error(err))
		return schemas.Failure(err.Error())
	}
	return c.sender.Send(ctx, endpoint, method, body)
}

func checks(errs ...error) []error { return errs }
