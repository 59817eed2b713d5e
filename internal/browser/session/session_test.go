package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/csvmapper-cli/api/schemas"
	"github.com/xkilldash9x/csvmapper-cli/internal/browser/form"
	"github.com/xkilldash9x/csvmapper-cli/internal/browser/page"
	"github.com/xkilldash9x/csvmapper-cli/internal/config"
	"github.com/xkilldash9x/csvmapper-cli/internal/testing/fakeserver"
)

const testTimeout = 10 * time.Second

func newTestSession(t *testing.T, srv *fakeserver.Server, opts ...Option) *Session {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.SetServerBaseURL(srv.URL)
	s := New(cfg, zaptest.NewLogger(t), opts...)
	t.Cleanup(s.Close)
	return s
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

func TestSession_Navigate(t *testing.T) {
	t.Run("should load a page and expose it as the current document", func(t *testing.T) {
		srv := fakeserver.New(t)
		srv.OpenAccess = true
		s := newTestSession(t, srv)
		ctx := testContext(t)

		require.NoError(t, s.Navigate(ctx, "/graphs?graph=7"))

		assert.Equal(t, srv.URL+"/graphs?graph=7", s.CurrentURL())
		doc, err := s.Document(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{fakeserver.Token}, page.FieldValues(doc, "csrfmiddlewaretoken"))
		assert.Equal(t, page.Param{Value: "7", Present: true}, s.QueryParam("graph"))
	})

	t.Run("should follow redirects to the final page", func(t *testing.T) {
		srv := fakeserver.New(t)
		s := newTestSession(t, srv)

		require.NoError(t, s.Navigate(testContext(t), "/"))

		assert.Equal(t, srv.URL+"/account/login/?next=/", s.CurrentURL())
		assert.True(t, s.onLoginPage())
	})

	t.Run("should report an error status but keep the page", func(t *testing.T) {
		srv := fakeserver.New(t)
		s := newTestSession(t, srv)

		err := s.Navigate(testContext(t), "/missing")

		var navErr *NavigationError
		require.ErrorAs(t, err, &navErr)
		assert.Equal(t, http.StatusNotFound, navErr.Status)
		assert.Equal(t, srv.URL+"/missing", s.CurrentURL())
	})

	t.Run("should stop after too many redirects", func(t *testing.T) {
		srv := fakeserver.New(t)
		srv.Handle("/loop", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/loop", http.StatusFound)
		})
		s := newTestSession(t, srv)

		err := s.Navigate(testContext(t), "/loop")
		assert.ErrorContains(t, err, "maximum number of redirects")
	})

	t.Run("should not parse non-HTML responses", func(t *testing.T) {
		srv := fakeserver.New(t)
		srv.Handle("/data.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"ok":true}`)
		})
		s := newTestSession(t, srv)
		ctx := testContext(t)

		require.NoError(t, s.Navigate(ctx, "/data.json"))
		_, err := s.Document(ctx)
		assert.ErrorIs(t, err, ErrNoPage)
	})

	t.Run("should send the persona and custom headers", func(t *testing.T) {
		srv := fakeserver.New(t)
		srv.OpenAccess = true
		cfg := config.NewDefaultConfig()
		cfg.SetServerBaseURL(srv.URL)
		cfg.NetworkCfg.Headers = map[string]string{"X-Team": "analytics"}
		s := New(cfg, zaptest.NewLogger(t), WithPersona(schemas.Persona{UserAgent: "csvmapper-test", Languages: []string{"de"}}))
		t.Cleanup(s.Close)

		require.NoError(t, s.Navigate(testContext(t), "/sources"))

		reqs := srv.Requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, "csvmapper-test", reqs[0].Header.Get("User-Agent"))
		assert.Equal(t, "de", reqs[0].Header.Get("Accept-Language"))
		assert.Equal(t, "analytics", reqs[0].Header.Get("X-Team"))
	})
}

func TestSession_NoPage(t *testing.T) {
	s := New(config.NewDefaultConfig(), nil, WithHTTPClient(http.DefaultClient))

	assert.Empty(t, s.CurrentURL())
	_, err := s.Document(context.Background())
	assert.ErrorIs(t, err, ErrNoPage)
	assert.Equal(t, page.Param{}, s.QueryParam("graph"))
	assert.NotEmpty(t, s.ID())
	assert.Same(t, http.DefaultClient, s.HTTPClient())
}

func TestSession_Login(t *testing.T) {
	t.Run("should log in and land on the dashboard", func(t *testing.T) {
		srv := fakeserver.New(t)
		s := newTestSession(t, srv)
		ctx := testContext(t)

		err := s.Login(ctx, schemas.Credential{Username: srv.Username, Password: srv.Password})
		require.NoError(t, err)

		assert.Equal(t, srv.URL+"/", s.CurrentURL())
		require.NoError(t, s.Navigate(ctx, "/graphs"))
		assert.Equal(t, srv.URL+"/graphs", s.CurrentURL(), "the session cookie authenticates later pages")

		var post *fakeserver.Request
		for _, r := range srv.Requests() {
			if r.Method == http.MethodPost {
				post = &r
				break
			}
		}
		require.NotNil(t, post)
		assert.Equal(t, srv.URL+"/account/login/", post.Header.Get("Referer"))
		assert.Contains(t, string(post.Body), "username="+srv.Username)
		assert.Contains(t, string(post.Body), "csrfmiddlewaretoken="+fakeserver.Token)
	})

	t.Run("should surface the form errors on bad credentials", func(t *testing.T) {
		srv := fakeserver.New(t)
		s := newTestSession(t, srv)

		err := s.Login(testContext(t), schemas.Credential{Username: srv.Username, Password: "wrong"})

		require.ErrorIs(t, err, ErrLoginFailed)
		assert.ErrorContains(t, err, "Please enter a correct username and password.")
	})

	t.Run("should refuse an empty credential without any request", func(t *testing.T) {
		srv := fakeserver.New(t)
		s := newTestSession(t, srv)

		err := s.Login(testContext(t), schemas.Credential{})

		assert.ErrorIs(t, err, ErrLoginFailed)
		assert.Empty(t, srv.Requests())
	})

	t.Run("should fail when the login page has no form", func(t *testing.T) {
		srv := fakeserver.New(t)
		srv.Handle("/account/login/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html><body>maintenance</body></html>")
		})
		s := newTestSession(t, srv)

		err := s.Login(testContext(t), schemas.Credential{Username: "a", Password: "b"})
		assert.True(t, errors.Is(err, form.ErrNotFound))
	})
}

func TestSession_Submit(t *testing.T) {
	t.Run("should send GET forms as a query string", func(t *testing.T) {
		srv := fakeserver.New(t)
		srv.Handle("/search", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<form action="/results"><input type="hidden" name="page" value="2"><input name="q" value="temps"><input type="checkbox" name="exact" checked></form>`)
		})
		srv.Handle("/results", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<p>ok</p>")
		})
		s := newTestSession(t, srv)
		ctx := testContext(t)
		require.NoError(t, s.Navigate(ctx, "/search"))

		doc, err := s.Document(ctx)
		require.NoError(t, err)
		f, err := form.Find(doc, "")
		require.NoError(t, err)
		require.NoError(t, s.Submit(ctx, f, map[string]string{"q": "rain"}))

		assert.Equal(t, page.Param{Value: "rain", Present: true}, s.QueryParam("q"))
		assert.Equal(t, page.Param{Value: "on", Present: true}, s.QueryParam("exact"))
		assert.Equal(t, page.Param{Value: "2", Present: true}, s.QueryParam("page"), "hidden inputs are submitted")
	})

	t.Run("should reject a nil form", func(t *testing.T) {
		srv := fakeserver.New(t)
		s := newTestSession(t, srv)
		assert.ErrorIs(t, s.Submit(testContext(t), nil, nil), form.ErrNotFound)
	})
}

func TestSession_ResolveURL(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.SetServerBaseURL("http://csv.example:8000")
	s := New(cfg, nil, WithHTTPClient(http.DefaultClient))

	u, err := s.resolveURL("/api/graph/")
	require.NoError(t, err)
	assert.Equal(t, "http://csv.example:8000/api/graph/", u.String())

	u, err = s.resolveURL("https://other.example/x")
	require.NoError(t, err)
	assert.Equal(t, "https://other.example/x", u.String())

	cfg.SetServerBaseURL("")
	s = New(cfg, nil, WithHTTPClient(http.DefaultClient))
	_, err = s.resolveURL("/api/graph/")
	assert.Error(t, err)
}

func TestNavigationError(t *testing.T) {
	withStatus := &NavigationError{URL: "http://h/", Status: 502}
	assert.Equal(t, "navigation to http://h/ failed with status 502", withStatus.Error())

	cause := errors.New("connection refused")
	wrapped := &NavigationError{URL: "http://h/", Err: cause}
	assert.ErrorIs(t, wrapped, cause)
}
