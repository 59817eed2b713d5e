// Package transport sends CSRF-protected JSON requests to the csv mapper API
// and turns every outcome into a schemas.Envelope.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/csvmapper-cli/api/schemas"
	"github.com/xkilldash9x/csvmapper-cli/internal/browser/page"
	"github.com/xkilldash9x/csvmapper-cli/internal/config"
)

// Generic failure messages. The underlying error is logged, never returned.
const (
	MsgNoCSRFToken   = "No CSRF token found."
	MsgQueryFailed   = "Failed to query the API."
	MsgDecodeFailed  = "Failed to decode the API response."
	DefaultCSRFField = "csrfmiddlewaretoken"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Method is an HTTP verb accepted by Send.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
	MethodPatch  Method = "PATCH"
	MethodOption Method = "OPTION"
	MethodHead   Method = "HEAD"
	MethodTrace  Method = "TRACE"
)

// Methods lists the accepted verbs.
var Methods = []Method{
	MethodGet, MethodPost, MethodPut, MethodDelete,
	MethodPatch, MethodOption, MethodHead, MethodTrace,
}

// Valid reports whether m is one of the accepted verbs.
func (m Method) Valid() bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

// wire is the verb as sent over HTTP. OPTION names the OPTIONS request.
func (m Method) wire() string {
	if m == MethodOption {
		return http.MethodOptions
	}
	return string(m)
}

// Transport issues API requests on behalf of the page it is attached to.
type Transport struct {
	page      page.Accessor
	client    *resty.Client
	logger    *zap.Logger
	csrfField string
	limiter   *rate.Limiter
}

// Option customizes a Transport.
type Option func(*Transport)

// WithCSRFField changes the name of the hidden input carrying the token.
func WithCSRFField(name string) Option {
	return func(t *Transport) {
		if name != "" {
			t.csrfField = name
		}
	}
}

// WithRateLimiter throttles requests client-side. A nil limiter disables it.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(t *Transport) { t.limiter = l }
}

// New attaches a transport to accessor. Requests go out through httpClient,
// so cookies and compression are shared with page navigation.
func New(accessor page.Accessor, httpClient *http.Client, logger *zap.Logger, opts ...Option) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	// resty installs its own redirect policy on the client it wraps, so it
	// gets a shallow copy sharing the jar and round tripper.
	hc := *httpClient
	logger = logger.Named("transport")

	t := &Transport{
		page:      accessor,
		client:    resty.NewWithClient(&hc).SetLogger(logger.Sugar()),
		logger:    logger,
		csrfField: DefaultCSRFField,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewFromConfig builds a transport with the CSRF field and throttle from cfg.
func NewFromConfig(accessor page.Accessor, httpClient *http.Client, cfg config.Interface, logger *zap.Logger) *Transport {
	return New(accessor, httpClient, logger,
		WithCSRFField(cfg.Server().CSRFField),
		WithRateLimiter(NewLimiter(cfg.Network())),
	)
}

// NewLimiter converts the hourly request budget into a token bucket. It
// returns nil when throttling is disabled.
func NewLimiter(cfg config.NetworkConfig) *rate.Limiter {
	if cfg.RateLimitPerHour <= 0 {
		return nil
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(cfg.RateLimitPerHour)/3600), burst)
}

// Send performs one API request. It never returns a Go error: validation,
// CSRF, network and decoding failures all come back as error envelopes.
func (t *Transport) Send(ctx context.Context, endpoint string, method Method, body any) schemas.Envelope {
	if strings.TrimSpace(endpoint) == "" {
		return schemas.Failure("Invalid `endpoint` parameter: expected a non-empty string.")
	}
	if method == "" {
		method = MethodGet
	}
	if !method.Valid() {
		return schemas.Failuref("Invalid `method` parameter: %q is not a supported HTTP method.", string(method))
	}

	token, ok := t.csrfToken(ctx)
	if !ok {
		return schemas.Failure(MsgNoCSRFToken)
	}

	payload, err := encodeBody(body)
	if err != nil {
		t.logger.Warn("Failed to encode request body",
			zap.String("endpoint", endpoint), zap.String("method", string(method)), zap.Error(err))
		return schemas.Failuref("Failed to encode the request body: %v", err)
	}

	target, err := t.resolve(endpoint)
	if err != nil {
		return t.queryFailed(endpoint, method, err)
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return t.queryFailed(endpoint, method, fmt.Errorf("rate limiter: %w", err))
		}
	}

	req := t.client.R().
		SetContext(ctx).
		SetHeader("X-CSRFToken", token).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("X-Requested-With", "XMLHttpRequest").
		SetHeader("Referer", t.page.CurrentURL())
	if payload != nil {
		req.SetBody(payload)
	}

	t.logger.Debug("Sending API request", zap.String("method", string(method)), zap.String("url", target))
	resp, err := req.Execute(method.wire(), target)
	if err != nil {
		return t.queryFailed(endpoint, method, err)
	}

	env, err := decodeResponse(resp.StatusCode(), resp.Body())
	if err != nil {
		t.logger.Warn("Failed to decode API response",
			zap.String("endpoint", endpoint),
			zap.String("method", string(method)),
			zap.Int("status", resp.StatusCode()),
			zap.Error(err))
		env = schemas.Failure(MsgDecodeFailed)
		env.Status = resp.StatusCode()
	}
	return env
}

func (t *Transport) queryFailed(endpoint string, method Method, err error) schemas.Envelope {
	t.logger.Error("API request failed",
		zap.String("endpoint", endpoint), zap.String("method", string(method)), zap.Error(err))
	return schemas.Failure(MsgQueryFailed)
}

// csrfToken reads the token from the current document on every call, so a
// token rotated by a later page load is picked up.
func (t *Transport) csrfToken(ctx context.Context) (string, bool) {
	doc, err := t.page.Document(ctx)
	if err != nil {
		t.logger.Debug("No document to read the CSRF token from", zap.Error(err))
		return "", false
	}
	tokens := page.FieldValues(doc, t.csrfField)
	switch len(tokens) {
	case 0:
		return "", false
	case 1:
	default:
		t.logger.Warn("Page carries more than one CSRF field, using the first",
			zap.String("field", t.csrfField), zap.Int("count", len(tokens)))
	}
	return tokens[0], true
}

func (t *Transport) resolve(endpoint string) (string, error) {
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base, err := url.Parse(t.page.CurrentURL())
	if err != nil || !base.IsAbs() {
		return "", fmt.Errorf("cannot resolve endpoint %q without a page URL", endpoint)
	}
	return base.ResolveReference(ref).String(), nil
}

// encodeBody returns nil for an absent body. Pre-encoded bodies pass through.
func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(b), nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	}
	return jsonAPI.Marshal(body)
}

// decodeResponse maps a response body onto an envelope. Bodies that already
// are envelopes are kept; other JSON is wrapped according to the status.
func decodeResponse(status int, body []byte) (schemas.Envelope, error) {
	var decoded any
	if err := jsonAPI.Unmarshal(body, &decoded); err != nil {
		return schemas.Envelope{}, err
	}

	obj, isObject := decoded.(map[string]any)
	if _, tagged := obj["result"]; isObject && tagged {
		var env schemas.Envelope
		if err := jsonAPI.Unmarshal(body, &env); err != nil {
			return schemas.Envelope{}, err
		}
		if env.Result != schemas.OutcomeSuccess && env.Result != schemas.OutcomeError {
			return schemas.Envelope{}, fmt.Errorf("unknown result %q", env.Result)
		}
		env.Status = status
		return env, nil
	}

	var env schemas.Envelope
	if status < http.StatusBadRequest {
		env = schemas.Success(append(json.RawMessage(nil), body...))
	} else if detail, ok := obj["detail"].(string); ok && detail != "" {
		env = schemas.Failure(detail)
	} else {
		env = schemas.Failuref("Request failed with status %d.", status)
	}
	env.Status = status
	return env, nil
}
