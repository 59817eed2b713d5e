// internal/browser/network/httpclient_test.go
package network

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/csvmapper-cli/internal/config"
)

// -- Test Cases: Configuration and Defaults (ClientConfig) --

func TestNewBrowserClientConfig(t *testing.T) {
	cfg := NewBrowserClientConfig()

	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, DefaultMaxIdleConnsPerHost, cfg.MaxIdleConnsPerHost)
	assert.NotNil(t, cfg.CookieJar, "a session needs a jar for the sessionid and csrftoken cookies")
	assert.NotNil(t, cfg.Logger)
}

func TestNewClientConfigFromNetwork(t *testing.T) {
	t.Run("should map timeout and TLS settings", func(t *testing.T) {
		cfg := NewClientConfigFromNetwork(config.NetworkConfig{Timeout: 5 * time.Second, IgnoreTLSErrors: true}, zaptest.NewLogger(t))
		assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
		assert.True(t, cfg.InsecureSkipVerify)
	})

	t.Run("should keep the default timeout when unset", func(t *testing.T) {
		cfg := NewClientConfigFromNetwork(config.NetworkConfig{}, nil)
		assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
		assert.NotNil(t, cfg.Logger)
	})
}

func TestNewCookieJar_ScopesByHost(t *testing.T) {
	jar := NewCookieJar()
	site, _ := url.Parse("http://mapper.example.com/")
	other, _ := url.Parse("http://other.example.org/")

	jar.SetCookies(site, []*http.Cookie{{Name: "csrftoken", Value: "abc"}})

	require.Len(t, jar.Cookies(site), 1)
	assert.Empty(t, jar.Cookies(other))
}

// -- Test Cases: TLS --

func TestConfigureTLS(t *testing.T) {
	t.Run("should apply secure defaults", func(t *testing.T) {
		cfg := NewBrowserClientConfig()
		tlsConfig := configureTLS(cfg)

		assert.Equal(t, uint16(SecureMinTLSVersion), tlsConfig.MinVersion)
		assert.False(t, tlsConfig.InsecureSkipVerify)
		assert.NotNil(t, tlsConfig.ClientSessionCache)
		assert.Equal(t, []string{"h2", "http/1.1"}, tlsConfig.NextProtos)
	})

	t.Run("should clone and respect a custom config", func(t *testing.T) {
		custom := &tls.Config{ServerName: "custom.sni", MinVersion: tls.VersionTLS13, NextProtos: []string{"http/1.1"}}
		cfg := NewBrowserClientConfig()
		cfg.TLSConfig = custom
		cfg.InsecureSkipVerify = true

		tlsConfig := configureTLS(cfg)

		assert.NotSame(t, custom, tlsConfig)
		assert.Equal(t, "custom.sni", tlsConfig.ServerName)
		assert.Equal(t, uint16(tls.VersionTLS13), tlsConfig.MinVersion)
		assert.Equal(t, []string{"http/1.1"}, tlsConfig.NextProtos)
		assert.True(t, tlsConfig.InsecureSkipVerify)
		assert.False(t, custom.InsecureSkipVerify, "the caller's config must not be modified")
	})
}

// -- Test Cases: Transport Creation (NewHTTPTransport) --

func TestNewHTTPTransport(t *testing.T) {
	t.Run("should map pool settings", func(t *testing.T) {
		cfg := NewBrowserClientConfig()
		cfg.MaxIdleConns = 55
		cfg.IdleConnTimeout = 99 * time.Second

		transport := NewHTTPTransport(cfg)

		assert.Equal(t, 55, transport.MaxIdleConns)
		assert.Equal(t, 99*time.Second, transport.IdleConnTimeout)
		assert.True(t, transport.DisableCompression, "compression is handled by the middleware")
		assert.True(t, transport.ForceAttemptHTTP2)
	})

	t.Run("should tolerate a nil config", func(t *testing.T) {
		transport := NewHTTPTransport(nil)
		assert.NotNil(t, transport.DialContext)
		assert.NotNil(t, transport.TLSClientConfig)
	})

	t.Run("should use an explicit proxy", func(t *testing.T) {
		proxyURL, _ := url.Parse("http://proxy.example.com:8080")
		cfg := NewBrowserClientConfig()
		cfg.ProxyURL = proxyURL

		transport := NewHTTPTransport(cfg)
		req, _ := http.NewRequest(http.MethodGet, "http://target.example.com", nil)
		got, err := transport.Proxy(req)
		require.NoError(t, err)
		assert.Equal(t, proxyURL, got)
	})
}

// -- Test Cases: Client Behavior --

func TestNewClient(t *testing.T) {
	t.Run("should wrap the transport with compression middleware", func(t *testing.T) {
		client := NewClient(nil)

		middleware, ok := client.Transport.(*CompressionMiddleware)
		require.True(t, ok)
		_, ok = middleware.Transport.(*http.Transport)
		assert.True(t, ok)
		assert.NotNil(t, client.Jar)
	})

	t.Run("should hand redirects back to the caller", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/account/login/?next=/", http.StatusFound)
		}))
		defer server.Close()

		resp, err := NewClient(nil).Get(server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/account/login/?next=/", resp.Header.Get("Location"))
	})

	t.Run("should persist cookies across requests", func(t *testing.T) {
		var seen string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie("csrftoken"); err == nil {
				seen = c.Value
			}
			http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "tok", Path: "/"})
		}))
		defer server.Close()

		client := NewClient(nil)
		for i := 0; i < 2; i++ {
			resp, err := client.Get(server.URL)
			require.NoError(t, err)
			resp.Body.Close()
		}
		assert.Equal(t, "tok", seen)
	})

	t.Run("should time out slow responses", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		cfg := NewBrowserClientConfig()
		cfg.RequestTimeout = 100 * time.Millisecond

		_, err := NewClient(cfg).Get(server.URL)
		require.Error(t, err)
		var urlErr *url.Error
		require.True(t, errors.As(err, &urlErr))
		assert.True(t, urlErr.Timeout() || errors.Is(urlErr.Err, context.DeadlineExceeded))
	})
}

func TestClient_HTTPS(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("secure"))
	}))
	defer server.Close()

	t.Run("should reject an untrusted certificate by default", func(t *testing.T) {
		_, err := NewClient(nil).Get(server.URL)
		assert.Error(t, err)
	})

	t.Run("should trust a configured root", func(t *testing.T) {
		pool := x509.NewCertPool()
		pool.AddCert(server.Certificate())
		cfg := NewBrowserClientConfig()
		cfg.TLSConfig = &tls.Config{RootCAs: pool}

		resp, err := NewClient(cfg).Get(server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "secure", string(body))
	})

	t.Run("should skip verification when asked", func(t *testing.T) {
		cfg := NewBrowserClientConfig()
		cfg.InsecureSkipVerify = true

		resp, err := NewClient(cfg).Get(server.URL)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
