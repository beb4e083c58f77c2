// Package surface provides the interactive surfaces the sign-on flow drives:
// a loopback HTTP receiver paired with the system browser, and a paste prompt
// for hosts without one.
package surface

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/entitle/internal/config"
	"github.com/turtacn/entitle/internal/domain/service"
	"github.com/turtacn/entitle/pkg/errors"
	"github.com/turtacn/entitle/pkg/logger"
)

const (
	fragmentPath = "/__entitle/fragment"
	cancelPath   = "/__entitle/cancel"
)

const fragmentPage = `<!doctype html>
<html><head><title>Sign-in</title></head>
<body>
<p id="status">Completing sign-in...</p>
<p><a href="` + cancelPath + `">Cancel sign-in</a></p>
<script>
var hash = window.location.hash.substring(1);
fetch("` + fragmentPath + `", {method: "POST", headers: {"Content-Type": "text/plain"}, body: hash})
  .then(function () { document.getElementById("status").textContent = "Sign-in complete. You can close this window."; });
</script>
</body></html>`

// BrowserOpener opens a URI for the user.
type BrowserOpener func(uri string) error

// OpenBrowser opens target with the platform's default handler.
func OpenBrowser(target string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", target).Start()
	case "linux", "freebsd", "openbsd":
		return exec.Command("xdg-open", target).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target).Start()
	default:
		return nil
	}
}

// LoopbackProvider binds the redirect URI's host and port and hands out
// surfaces that capture the provider's redirect there.
type LoopbackProvider struct {
	redirectURI string
	timeout     time.Duration
	opener      BrowserOpener
	prompt      io.Writer
	logger      logger.Logger
}

// NewLoopbackProvider creates a provider for redirectURI. A nil opener leaves
// opening the printed URI to the user.
func NewLoopbackProvider(redirectURI string, cfg config.SurfaceConfig, opener BrowserOpener, prompt io.Writer, log logger.Logger) *LoopbackProvider {
	if !cfg.OpenBrowser {
		opener = nil
	}
	return &LoopbackProvider{
		redirectURI: redirectURI,
		timeout:     cfg.Timeout,
		opener:      opener,
		prompt:      prompt,
		logger:      log.WithComponent("LoopbackSurface"),
	}
}

// Acquire listens on the redirect address. The redirect URI must be an http
// URI on a loopback host.
func (p *LoopbackProvider) Acquire(ctx context.Context) (service.InteractiveSurface, error) {
	parsed, err := url.Parse(p.redirectURI)
	if err != nil || parsed.Host == "" {
		return nil, errors.ErrInvalidConfiguration("oauth.redirect_uri", "not an absolute URI")
	}
	if parsed.Scheme != "http" || !isLoopback(parsed.Hostname()) {
		return nil, errors.ErrInvalidConfiguration("oauth.redirect_uri", "loopback surface needs an http://127.0.0.1 or http://localhost redirect URI")
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", parsed.Host)
	if err != nil {
		return nil, errors.ErrTransportFailure(p.redirectURI, err)
	}
	p.logger.Debug(ctx, "Listening for redirect", logger.String("address", listener.Addr().String()))

	return &LoopbackSurface{
		listener: listener,
		timeout:  p.timeout,
		opener:   p.opener,
		prompt:   p.prompt,
		logger:   p.logger,
		results:  make(chan service.SurfaceOutcome, 1),
	}, nil
}

// LoopbackSurface serves the redirect path until the first redirect arrives.
type LoopbackSurface struct {
	listener net.Listener
	timeout  time.Duration
	opener   BrowserOpener
	prompt   io.Writer
	logger   logger.Logger

	results   chan service.SurfaceOutcome
	server    *http.Server
	closeOnce sync.Once
	closeErr  error
}

// Addr is the address the surface listens on.
func (s *LoopbackSurface) Addr() net.Addr {
	return s.listener.Addr()
}

// Navigate shows initialURI to the user and waits for the redirect. Query
// redirects are captured directly; fragment redirects are posted back by a
// small page served on the redirect path. A cancelled ctx is reported as a
// user cancellation, an expired deadline as an error.
func (s *LoopbackSurface) Navigate(ctx context.Context, initialURI string, redirectPrefix string) (service.SurfaceOutcome, error) {
	prefix, err := url.Parse(redirectPrefix)
	if err != nil {
		return service.SurfaceOutcome{}, errors.ErrInvalidConfiguration("oauth.redirect_uri", err.Error())
	}
	redirectPath := prefix.Path
	if redirectPath == "" {
		redirectPath = "/"
	}

	s.server = &http.Server{
		Handler:           s.routes(prefix, redirectPrefix, redirectPath),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error(context.Background(), "Redirect receiver stopped", err)
		}
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if s.prompt != nil {
		fmt.Fprintf(s.prompt, "Open the following address to sign in:\n\n  %s\n\n", initialURI)
	}
	if s.opener != nil {
		if err := s.opener(initialURI); err != nil {
			s.logger.Warn(ctx, "Could not open browser", logger.Any("error", err.Error()))
		}
	}

	select {
	case outcome := <-s.results:
		return outcome, nil
	case <-ctx.Done():
		if ctx.Err() == context.Canceled {
			return service.SurfaceOutcome{Cancelled: true}, nil
		}
		return service.SurfaceOutcome{}, ctx.Err()
	}
}

func (s *LoopbackSurface) routes(prefix *url.URL, redirectPrefix, redirectPath string) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET(redirectPath, func(c *gin.Context) {
		received := c.Request.URL.Query()
		if !carriesResponse(prefix.Query(), received) {
			c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(fragmentPage))
			return
		}
		s.deliver(service.SurfaceOutcome{FinalURI: withQuery(prefix, received)})
		c.String(http.StatusOK, "Sign-in complete. You can close this window.")
	})

	router.POST(fragmentPath, func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, 64<<10))
		if err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		fragment := strings.TrimSpace(string(body))
		s.deliver(service.SurfaceOutcome{FinalURI: redirectPrefix + "#" + fragment})
		c.Status(http.StatusNoContent)
	})

	router.GET(cancelPath, func(c *gin.Context) {
		s.deliver(service.SurfaceOutcome{Cancelled: true})
		c.String(http.StatusOK, "Sign-in cancelled. You can close this window.")
	})

	return router
}

// deliver keeps only the first outcome.
func (s *LoopbackSurface) deliver(outcome service.SurfaceOutcome) {
	select {
	case s.results <- outcome:
	default:
	}
}

// Close stops the receiver and releases the port.
func (s *LoopbackSurface) Close() error {
	s.closeOnce.Do(func() {
		if s.server == nil {
			s.closeErr = s.listener.Close()
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.closeErr = s.server.Shutdown(ctx)
	})
	return s.closeErr
}

// carriesResponse reports whether received holds parameters beyond the ones
// already present on the redirect URI.
func carriesResponse(configured, received url.Values) bool {
	for key := range received {
		if _, ok := configured[key]; !ok {
			return true
		}
	}
	return false
}

// withQuery returns prefix with the received parameters merged into its own
// query. Received values replace configured ones of the same name.
func withQuery(prefix *url.URL, received url.Values) string {
	merged := prefix.Query()
	for key, values := range received {
		merged[key] = values
	}
	u := *prefix
	u.RawQuery = merged.Encode()
	u.Fragment = ""
	return u.String()
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
