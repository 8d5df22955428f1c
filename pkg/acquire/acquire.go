// Package acquire turns a run Input into raw text: plain text passes through,
// remote documents are fetched and reduced to their paragraphs, uploads are
// checked and decoded.
package acquire

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sipeed/picocast/pkg/config"
	"github.com/sipeed/picocast/pkg/failure"
	"github.com/sipeed/picocast/pkg/logger"
	"github.com/sipeed/picocast/pkg/security"
)

const (
	component = "acquire"

	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	DefaultFetchTimeout  = 10 * time.Second
	DefaultMaxBodyBytes  = 10 << 20
	DefaultMaxFileSize   = 10 << 20
	DefaultMaxParagraphs = 50
	MaxRedirects         = 10
)

// Acquirer is safe for concurrent use.
type Acquirer struct {
	guard         *security.Guard
	client        *http.Client
	transport     http.RoundTripper
	timeout       time.Duration
	maxBodyBytes  int64
	maxFileSize   int
	maxParagraphs int
}

type Option func(*Acquirer)

// WithGuard replaces the URL policy used for the initial URL, every redirect
// target and every dialed address.
func WithGuard(g *security.Guard) Option {
	return func(a *Acquirer) { a.guard = g }
}

// WithTransport replaces the HTTP transport. The dial-time address check is only
// applied by the default transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(a *Acquirer) { a.transport = rt }
}

func WithTimeout(d time.Duration) Option {
	return func(a *Acquirer) { a.timeout = d }
}

func WithMaxBodyBytes(n int64) Option {
	return func(a *Acquirer) { a.maxBodyBytes = n }
}

// New builds an Acquirer from the limits in cfg. cfg may be nil in which case
// the package defaults apply.
func New(cfg *config.Config, opts ...Option) *Acquirer {
	a := &Acquirer{
		guard:         security.NewGuard(),
		timeout:       DefaultFetchTimeout,
		maxBodyBytes:  DefaultMaxBodyBytes,
		maxFileSize:   DefaultMaxFileSize,
		maxParagraphs: DefaultMaxParagraphs,
	}
	if cfg != nil {
		a.maxFileSize = cfg.Limits.MaxFileSize
		a.maxParagraphs = cfg.Limits.MaxParagraphs
	}
	for _, opt := range opts {
		opt(a)
	}

	transport := a.transport
	if transport == nil {
		dialer := &net.Dialer{
			Timeout:   a.timeout,
			KeepAlive: 30 * time.Second,
			Control:   a.guard.Control,
		}
		transport = &http.Transport{
			DialContext:         dialer.DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: a.timeout,
		}
	}
	a.client = &http.Client{
		Timeout:   a.timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", MaxRedirects)
			}
			_, err := a.guard.CheckURL(req.URL.String())
			return err
		},
	}
	return a
}

// Acquire returns the raw text of in. Only RemoteDocument performs I/O, and then
// exactly one request chain.
func (a *Acquirer) Acquire(ctx context.Context, in Input) (string, error) {
	switch in := in.(type) {
	case PlainText:
		return in.Text, nil
	case RemoteDocument:
		return a.fetch(ctx, in.URL)
	case UploadedDocument:
		text, encoding, err := a.decodeUpload(in)
		if err != nil {
			return "", err
		}
		logger.InfoCF(component, "Processed uploaded file", map[string]any{
			"name":     in.Name,
			"bytes":    len(in.Content),
			"encoding": encoding,
		})
		return text, nil
	case nil:
		return "", failure.Security(component, "No input provided")
	default:
		return "", failure.Security(component, "Unsupported input source %q", in.Source())
	}
}
