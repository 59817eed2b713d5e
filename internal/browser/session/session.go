package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/csvmapper-cli/api/schemas"
	"github.com/xkilldash9x/csvmapper-cli/internal/browser/form"
	"github.com/xkilldash9x/csvmapper-cli/internal/browser/network"
	"github.com/xkilldash9x/csvmapper-cli/internal/browser/page"
	"github.com/xkilldash9x/csvmapper-cli/internal/config"
)

const maxRedirects = 10

// loginFormXPath matches the authentication form by its password field.
const loginFormXPath = "//form[.//input[@name='password']]"

var (
	// ErrNoPage is returned when the session has not loaded a page yet.
	ErrNoPage = page.ErrNoDocument
	// ErrLoginFailed is returned when the server re-renders the login page.
	ErrLoginFailed = errors.New("login failed")
)

// NavigationError describes a page load that failed at the HTTP level.
type NavigationError struct {
	URL    string
	Status int
	Err    error
}

func (e *NavigationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("navigation to %s failed with status %d", e.URL, e.Status)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// Session is a cookie-backed, browser-like view of the web application. It
// keeps the most recently loaded page so that API calls can read the CSRF
// token from it, the way the dashboard's scripts read it from the DOM.
type Session struct {
	id      string
	logger  *zap.Logger
	server  config.ServerConfig
	persona schemas.Persona
	headers map[string]string
	client  *http.Client

	mu         sync.RWMutex
	currentURL *url.URL
	currentDOM *html.Node

	closeOnce sync.Once
}

var _ page.Accessor = (*Session)(nil)

// Option customizes a Session.
type Option func(*Session)

// WithHTTPClient replaces the client built from the network configuration.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.client = c }
}

// WithPersona overrides the identity presented in request headers.
func WithPersona(p schemas.Persona) Option {
	return func(s *Session) { s.persona = p }
}

// New creates a session against the configured server.
func New(cfg config.Interface, logger *zap.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New().String()
	s := &Session{
		id:      id,
		logger:  logger.Named("session").With(zap.String("session_id", id)),
		server:  cfg.Server(),
		persona: schemas.DefaultPersona,
		headers: cfg.Network().Headers,
	}
	if ua := cfg.Network().UserAgent; ua != "" {
		s.persona.UserAgent = ua
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = network.NewClient(network.NewClientConfigFromNetwork(cfg.Network(), s.logger))
	}
	return s
}

func (s *Session) ID() string { return s.id }

// HTTPClient is the client holding the session's cookies.
func (s *Session) HTTPClient() *http.Client { return s.client }

// Close releases idle connections. The session must not be used afterwards.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.client.CloseIdleConnections()
		s.logger.Debug("Session closed")
	})
}

// -- page.Accessor --

// CurrentURL returns the URL of the loaded page.
func (s *Session) CurrentURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentURL == nil {
		return ""
	}
	return s.currentURL.String()
}

// Document returns the DOM of the loaded page.
func (s *Session) Document(context.Context) (*html.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentDOM == nil {
		return nil, ErrNoPage
	}
	return s.currentDOM, nil
}

// QueryParam reads a query parameter of the loaded page's URL.
func (s *Session) QueryParam(name string) page.Param {
	return page.QueryParam(s.CurrentURL(), name)
}

// -- Navigation --

// Navigate loads target, following redirects, and makes it the current page.
// Relative targets resolve against the current page, or the server base URL
// before any page is loaded.
func (s *Session) Navigate(ctx context.Context, target string) error {
	resolved, err := s.resolveURL(target)
	if err != nil {
		return fmt.Errorf("failed to resolve URL '%s': %w", target, err)
	}
	s.logger.Info("Navigating", zap.String("url", resolved.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request for '%s': %w", resolved, err)
	}
	s.prepareRequestHeaders(req)
	return s.executeRequest(ctx, req)
}

// Submit serializes formNode, applies overrides, and sends it as the browser
// would. The response becomes the current page.
func (s *Session) Submit(ctx context.Context, formNode *html.Node, overrides map[string]string) error {
	if formNode == nil {
		return form.ErrNotFound
	}
	method := strings.ToUpper(htmlquery.SelectAttr(formNode, "method"))
	if method != http.MethodPost {
		method = http.MethodGet
	}
	target, err := s.resolveURL(htmlquery.SelectAttr(formNode, "action"))
	if err != nil {
		return fmt.Errorf("failed to determine form submission URL: %w", err)
	}

	s.mu.RLock()
	values := form.Read(formNode).Encode()
	for k, v := range form.Hidden(formNode) {
		if !values.Has(k) {
			values.Set(k, v)
		}
	}
	s.mu.RUnlock()
	for k, v := range overrides {
		values.Set(k, v)
	}

	var req *http.Request
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, target.String(), strings.NewReader(values.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		withQuery := *target
		withQuery.RawQuery = values.Encode()
		req, err = http.NewRequestWithContext(ctx, method, withQuery.String(), nil)
		if err != nil {
			return err
		}
	}

	s.prepareRequestHeaders(req)
	// Django's CSRF check compares the Referer's origin over HTTPS.
	req.Header.Set("Referer", s.CurrentURL())
	s.logger.Debug("Submitting form", zap.String("method", method), zap.String("action", target.String()))
	return s.executeRequest(ctx, req)
}

// Login authenticates against the login form. The server redirects away
// from the login page on success and re-renders it on failure.
func (s *Session) Login(ctx context.Context, cred schemas.Credential) error {
	if cred.Empty() {
		return fmt.Errorf("%w: no username supplied", ErrLoginFailed)
	}
	if err := s.Navigate(ctx, s.server.LoginPath); err != nil {
		return fmt.Errorf("failed to load login page: %w", err)
	}

	doc, err := s.Document(ctx)
	if err != nil {
		return err
	}
	loginForm, err := form.Find(doc, loginFormXPath)
	if err != nil {
		return fmt.Errorf("login page has no login form: %w", err)
	}

	if err := s.Submit(ctx, loginForm, map[string]string{
		"username": cred.Username,
		"password": cred.Password,
	}); err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}

	if s.onLoginPage() {
		if reason := s.formErrors(); reason != "" {
			return fmt.Errorf("%w: %s", ErrLoginFailed, reason)
		}
		return ErrLoginFailed
	}
	s.logger.Info("Logged in", zap.String("username", cred.Username), zap.String("landed_on", s.CurrentURL()))
	return nil
}

func (s *Session) onLoginPage() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentURL == nil {
		return false
	}
	loginPath := s.server.LoginPath
	if ref, err := url.Parse(loginPath); err == nil {
		loginPath = ref.Path
	}
	return strings.TrimSuffix(s.currentURL.Path, "/") == strings.TrimSuffix(loginPath, "/")
}

// formErrors collects the validation messages Django renders into the page.
func (s *Session) formErrors() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentDOM == nil {
		return ""
	}
	var msgs []string
	for _, n := range htmlquery.Find(s.currentDOM, "//*[contains(@class,'errorlist') or contains(@class,'alert')]") {
		if text := strings.Join(strings.Fields(htmlquery.InnerText(n)), " "); text != "" {
			msgs = append(msgs, text)
		}
	}
	return strings.Join(msgs, "; ")
}

// executeRequest sends req, following redirects manually so the final URL
// becomes the current page.
func (s *Session) executeRequest(ctx context.Context, req *http.Request) error {
	current := req
	for i := 0; i < maxRedirects; i++ {
		s.logger.Debug("Executing request", zap.String("method", current.Method), zap.String("url", current.URL.String()))

		resp, err := s.client.Do(current)
		if err != nil {
			return &NavigationError{URL: current.URL.String(), Err: err}
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 && resp.Header.Get("Location") != "" {
			next, err := s.handleRedirect(ctx, resp, current)
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("failed to handle redirect: %w", err)
			}
			current = next
			continue
		}
		return s.processResponse(resp)
	}
	return fmt.Errorf("maximum number of redirects (%d) exceeded", maxRedirects)
}

func (s *Session) handleRedirect(ctx context.Context, resp *http.Response, prev *http.Request) (*http.Request, error) {
	location := resp.Header.Get("Location")
	next, err := prev.URL.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redirect Location '%s': %w", location, err)
	}

	method := prev.Method
	var body io.ReadCloser
	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther:
		if method != http.MethodHead {
			method = http.MethodGet
		}
	default:
		if prev.GetBody != nil {
			if body, err = prev.GetBody(); err != nil {
				return nil, fmt.Errorf("failed to get body for redirect reuse: %w", err)
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, next.String(), body)
	if err != nil {
		return nil, err
	}
	s.prepareRequestHeaders(req)
	req.Header.Set("Referer", prev.URL.String())
	if body != nil {
		req.Header.Set("Content-Type", prev.Header.Get("Content-Type"))
	}
	return req, nil
}

// processResponse parses HTML bodies and records the new page.
func (s *Session) processResponse(resp *http.Response) error {
	defer resp.Body.Close()
	finalURL := resp.Request.URL

	var doc *html.Node
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(contentType, "text/html") || contentType == "" {
		parsed, err := htmlquery.Parse(resp.Body)
		if err != nil {
			s.updateState(finalURL, nil)
			return fmt.Errorf("failed to parse HTML response from '%s': %w", finalURL, err)
		}
		doc = parsed
	} else {
		s.logger.Debug("Response is not HTML, skipping DOM parsing.", zap.String("content_type", contentType))
	}
	s.updateState(finalURL, doc)

	if resp.StatusCode >= 400 {
		s.logger.Warn("Page load returned an error status", zap.Int("status", resp.StatusCode), zap.String("url", finalURL.String()))
		return &NavigationError{URL: finalURL.String(), Status: resp.StatusCode}
	}
	return nil
}

func (s *Session) updateState(u *url.URL, doc *html.Node) {
	s.mu.Lock()
	s.currentURL = u
	s.currentDOM = doc
	s.mu.Unlock()

	title := ""
	if doc != nil {
		if n := htmlquery.FindOne(doc, "//title"); n != nil {
			title = strings.TrimSpace(htmlquery.InnerText(n))
		}
	}
	s.logger.Debug("Session state updated", zap.String("url", u.String()), zap.String("title", title))
}

// resolveURL resolves target against the current page or the server base URL.
func (s *Session) resolveURL(target string) (*url.URL, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	if ref.IsAbs() {
		return ref, nil
	}

	s.mu.RLock()
	base := s.currentURL
	s.mu.RUnlock()
	if base == nil {
		if base, err = url.Parse(s.server.BaseURL); err != nil || !base.IsAbs() {
			return nil, fmt.Errorf("cannot resolve relative URL '%s' without a base URL", target)
		}
	}
	return base.ResolveReference(ref), nil
}

func (s *Session) prepareRequestHeaders(req *http.Request) {
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", s.persona.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if len(s.persona.Languages) > 0 {
		req.Header.Set("Accept-Language", strings.Join(s.persona.Languages, ","))
	}
	if current := s.CurrentURL(); current != "" && req.Header.Get("Referer") == "" {
		req.Header.Set("Referer", current)
	}
}
