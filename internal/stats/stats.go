// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package stats serves bundle size reports on loopback. Each bundle's report is served on
// its own port, one above the base port per ordinal, and an index on the base port links to them.
package stats

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/matt-FFFFFF/kbuild/internal/bundle"
	"github.com/matt-FFFFFF/kbuild/internal/ctxlog"
	"github.com/spf13/afero"
)

// Host is the address every stats listener binds to.
const Host = "127.0.0.1"

const shutdownTimeout = 5 * time.Second

var (
	// ErrListen is returned when a stats listener cannot bind its port.
	ErrListen = errors.New("could not start stats listener")
	// ErrNoReport is returned when a bundle has no stats report configured.
	ErrNoReport = errors.New("bundle has no stats report configured")
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Bundle stats</title></head>
<body>
<h1>Bundle stats</h1>
<ul>
{{- range .}}
<li><a href="{{.URL}}">{{.Name}}</a></li>
{{- end}}
</ul>
</body>
</html>
`))

type indexEntry struct {
	Name string
	URL  string
}

// Server is a single loopback HTTP listener.
type Server struct {
	echo *echo.Echo
	port int
}

func newEcho(ctx context.Context) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			ctxlog.Debug(ctx, "stats request",
				"method", c.Request().Method,
				"uri", c.Request().RequestURI,
				"status", c.Response().Status,
				"duration", time.Since(start),
			)

			return err
		}
	})

	return e
}

// URL returns the address of the listener for port.
func URL(port int) string {
	return "http://" + net.JoinHostPort(Host, strconv.Itoa(port)) + "/"
}

// NewIndex returns the listener for the base port. A single bundle is redirected to its report;
// several bundles get an index page linking to each report port.
func NewIndex(ctx context.Context, bundles []bundle.Descriptor, opts bundle.BuildOptions) *Server {
	e := newEcho(ctx)

	entries := make([]indexEntry, 0, len(bundles))
	for _, b := range bundles {
		entries = append(entries, indexEntry{Name: b.Name, URL: URL(opts.ReportPort(b.Index))})
	}

	e.GET("/", func(c echo.Context) error {
		if len(entries) == 1 {
			return c.Redirect(http.StatusFound, entries[0].URL)
		}

		c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
		c.Response().WriteHeader(http.StatusOK)

		return indexTemplate.Execute(c.Response(), entries) //nolint:wrapcheck
	})

	return &Server{echo: e, port: opts.BasePort(bundle.DefaultStatsPort)}
}

// NewReport returns the listener serving one bundle's report file, read through fs.
func NewReport(ctx context.Context, fs afero.Fs, d bundle.Descriptor, opts bundle.BuildOptions) (*Server, error) {
	if d.Config.Stats == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoReport, d.Name)
	}

	report := d.Config.Stats
	if !filepath.IsAbs(report) {
		report = filepath.Join(d.Config.Dir, report)
	}

	e := newEcho(ctx)

	e.GET("/", func(c echo.Context) error {
		b, err := afero.ReadFile(fs, report)
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "report not available")
		}

		contentType := mime.TypeByExtension(filepath.Ext(report))
		if contentType == "" {
			contentType = echo.MIMETextHTMLCharsetUTF8
		}

		return c.Blob(http.StatusOK, contentType, b)
	})

	return &Server{echo: e, port: opts.ReportPort(d.Index)}, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Port returns the port the server listens on.
func (s *Server) Port() int {
	return s.port
}

// Start binds the listener and serves in the background until ctx is done.
// Bind errors are returned immediately.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(Host, strconv.Itoa(s.port))

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return errors.Join(ErrListen, err)
	}

	s.echo.Listener = ln

	ctxlog.Info(ctx, "serving stats", "url", URL(s.port))

	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ctxlog.Error(ctx, "stats listener failed", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()

		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := s.echo.Shutdown(sctx); err != nil {
			ctxlog.Warn(ctx, "stats listener shutdown", "error", err)
		}
	}()

	return nil
}

// Serve is the stats completion action: it starts the index listener on the base port.
func Serve(ctx context.Context, bundles []bundle.Descriptor, opts bundle.BuildOptions) error {
	return NewIndex(ctx, bundles, opts).Start(ctx)
}
