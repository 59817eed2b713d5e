// browser/network/httpclient.go
package network

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/publicsuffix"

	"github.com/xkilldash9x/csvmapper-cli/internal/config"
)

const (
	DefaultDialTimeout           = 15 * time.Second
	DefaultKeepAliveInterval     = 30 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 30 * time.Second
	DefaultRequestTimeout        = 30 * time.Second

	// A single server is ever contacted, so the pool is sized per host.
	DefaultMaxIdleConns        = 20
	DefaultMaxIdleConnsPerHost = 10
	DefaultMaxConnsPerHost     = 15
	DefaultIdleConnTimeout     = 90 * time.Second

	// HTTP/2 connection health checks.
	DefaultH2ReadIdleTimeout = 30 * time.Second
	DefaultH2PingTimeout     = 15 * time.Second
)

// SecureMinTLSVersion is the lowest TLS version used unless explicitly overridden.
const SecureMinTLSVersion = tls.VersionTLS12

// ClientConfig holds the configuration for the session's HTTP client.
type ClientConfig struct {
	InsecureSkipVerify bool
	TLSConfig          *tls.Config

	RequestTimeout time.Duration
	DialTimeout    time.Duration
	KeepAlive      time.Duration

	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration

	ProxyURL *url.URL

	// CookieJar holds the server's session and csrftoken cookies.
	CookieJar http.CookieJar

	Logger *zap.Logger
}

// NewBrowserClientConfig returns defaults suited to a long lived browser-like session.
func NewBrowserClientConfig() *ClientConfig {
	return &ClientConfig{
		RequestTimeout:      DefaultRequestTimeout,
		DialTimeout:         DefaultDialTimeout,
		KeepAlive:           DefaultKeepAliveInterval,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		MaxConnsPerHost:     DefaultMaxConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		CookieJar:           NewCookieJar(),
		Logger:              zap.NewNop(),
	}
}

// NewClientConfigFromNetwork applies the user's network settings on top of
// the browser defaults.
func NewClientConfigFromNetwork(cfg config.NetworkConfig, logger *zap.Logger) *ClientConfig {
	c := NewBrowserClientConfig()
	if cfg.Timeout > 0 {
		c.RequestTimeout = cfg.Timeout
	}
	c.InsecureSkipVerify = cfg.IgnoreTLSErrors
	if logger != nil {
		c.Logger = logger
	}
	return c
}

// NewCookieJar returns an in-memory jar that scopes cookies by registrable domain.
func NewCookieJar() http.CookieJar {
	// cookiejar.New only fails on invalid options.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return jar
}

// NewHTTPTransport creates the base transport with HTTP/2 enabled.
func NewHTTPTransport(cfg *ClientConfig) *http.Transport {
	if cfg == nil {
		cfg = NewBrowserClientConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	dialer := &net.Dialer{Timeout: cfg.DialTimeout, KeepAlive: cfg.KeepAlive}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSClientConfig:       configureTLS(cfg),
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
		// CompressionMiddleware owns content decoding, brotli included.
		DisableCompression: true,
		ForceAttemptHTTP2:  true,
	}
	if cfg.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(cfg.ProxyURL)
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	h2, err := http2.ConfigureTransports(transport)
	if err != nil {
		cfg.Logger.Warn("HTTP/2 configuration failed, continuing with HTTP/1.1", zap.Error(err))
		return transport
	}
	h2.ReadIdleTimeout = DefaultH2ReadIdleTimeout
	h2.PingTimeout = DefaultH2PingTimeout

	return transport
}

// NewClient creates the http.Client shared by page navigation and API calls.
// Redirects are returned to the caller so the session can track navigation.
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = NewBrowserClientConfig()
	}
	return &http.Client{
		Transport: NewCompressionMiddleware(NewHTTPTransport(cfg)),
		Timeout:   cfg.RequestTimeout,
		Jar:       cfg.CookieJar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// configureTLS clones the caller's TLS config and fills in secure defaults.
func configureTLS(cfg *ClientConfig) *tls.Config {
	var tlsConfig *tls.Config
	if cfg.TLSConfig != nil {
		tlsConfig = cfg.TLSConfig.Clone()
	} else {
		tlsConfig = &tls.Config{}
	}

	if tlsConfig.ClientSessionCache == nil {
		tlsConfig.ClientSessionCache = tls.NewLRUClientSessionCache(64)
	}
	if len(tlsConfig.NextProtos) == 0 {
		// h2 first so ALPN prefers HTTP/2.
		tlsConfig.NextProtos = []string{"h2", "http/1.1"}
	}
	if tlsConfig.MinVersion == 0 {
		tlsConfig.MinVersion = SecureMinTLSVersion
	}
	if tlsConfig.MinVersion < SecureMinTLSVersion {
		cfg.Logger.Warn("TLS minimum version is below TLS 1.2",
			zap.Uint16("configured_version", tlsConfig.MinVersion))
	}

	tlsConfig.InsecureSkipVerify = cfg.InsecureSkipVerify
	return tlsConfig
}
