package cli

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sensortrace/collector-upload/internal/metrics"
)

var openConnections = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "collector_upload_open_connections",
	Help: "Number of currently open HTTP connections.",
})

// CorsConfig customizes how cross-origin requests from browser-embedded
// mobile companion apps are handled, mirroring tusd's own CorsConfig.
type CorsConfig struct {
	// Disable turns off all CORS header handling entirely, for
	// deployments where a proxy in front already handles it.
	Disable bool
	// AllowOrigin is matched against the request's Origin header; a
	// non-matching Origin gets a 403 instead of CORS headers.
	AllowOrigin *regexp.Regexp
	// AllowCredentials sets Access-Control-Allow-Credentials: true.
	AllowCredentials bool
	AllowMethods     string
	AllowHeaders     string
	MaxAge           string
	ExposeHeaders    string
}

// DefaultCorsConfig allows any origin, without credentials, for the
// protocol's own request/response headers.
var DefaultCorsConfig = CorsConfig{
	Disable:          false,
	AllowOrigin:      regexp.MustCompile(".*"),
	AllowCredentials: false,
	AllowMethods:     "POST, PUT, OPTIONS, GET",
	AllowHeaders:     "Authorization, Content-Type, Content-Range, x-upload-content-length, deviceId, measurementId, attachmentId, deviceType, osVersion, appVersion, formatVersion, length, locationCount, modality, startLocLat, startLocLon, startLocTS, endLocLat, endLocLon, endLocTS, logCount, imageCount, videoCount, filesSize",
	MaxAge:           "86400",
	ExposeHeaders:    "Location, Range",
}

// cors wraps next with CORS handling per the given config, modeled on
// tusd's UnroutedHandler.Middleware: a disallowed origin is rejected
// outright, an allowed origin gets Access-Control-Allow-Origin plus
// either the preflight headers (OPTIONS) or Access-Control-Expose-Headers
// (actual request), and OPTIONS always ends with a bare 200 rather than
// 204 for compatibility with older browsers that reject an empty 204 as
// a failed preflight.
func cors(cfg CorsConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()

		if origin := r.Header.Get("Origin"); !cfg.Disable && origin != "" {
			if !cfg.AllowOrigin.MatchString(origin) {
				w.WriteHeader(http.StatusForbidden)
				return
			}

			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Vary", "Origin")

			if cfg.AllowCredentials {
				header.Add("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				header.Add("Access-Control-Allow-Methods", cfg.AllowMethods)
				header.Add("Access-Control-Allow-Headers", cfg.AllowHeaders)
				header.Set("Access-Control-Max-Age", cfg.MaxAge)
			} else {
				header.Add("Access-Control-Expose-Headers", cfg.ExposeHeaders)
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Mux builds the HTTP handler exposing the measurement/attachment
// protocol endpoints plus /healthz and, if enabled, /metrics, wrapped
// with CORS handling and, if Flags.BasePath is set, mounted under that
// prefix.
func (c *Composer) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /measurements", func(w http.ResponseWriter, r *http.Request) {
		c.Engine.PreRequest(w, r, false)
	})
	mux.HandleFunc("PUT /measurements/{sessionId}", c.limitConcurrentChunks(func(w http.ResponseWriter, r *http.Request) {
		c.Engine.ChunkOrStatus(w, r, r.PathValue("sessionId"))
	}))
	mux.HandleFunc("POST /measurements/{mid}/attachments", func(w http.ResponseWriter, r *http.Request) {
		c.Engine.PreRequest(w, r, true)
	})
	mux.HandleFunc("PUT /measurements/{mid}/attachments/{sessionId}", c.limitConcurrentChunks(func(w http.ResponseWriter, r *http.Request) {
		c.Engine.ChunkOrStatus(w, r, r.PathValue("sessionId"))
	}))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if Flags.ExposeMetrics {
		prometheus.MustRegister(openConnections)
		prometheus.MustRegister(metrics.NewCollector(c.Metrics))
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	var handler http.Handler = cors(DefaultCorsConfig, mux)
	if Flags.BasePath != "" {
		handler = http.StripPrefix(Flags.BasePath, handler)
	}
	return handler
}

// limitConcurrentChunks bounds how many chunk/status requests run at
// once. A caller blocked waiting for a slot still holds its connection
// open, which is fine: the client is already waiting on a 308/201.
func (c *Composer) limitConcurrentChunks(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.chunkLimit.Acquire(r.Context(), 1); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		defer c.chunkLimit.Release(1)

		next(w, r)
	}
}

// Listener wraps a net.Listener and hands every accepted connection a
// read/write deadline, tracking how many are currently open. Adapted
// from tusd's own Listener/Conn pair (which in turn credits
// https://gist.github.com/jbardin/9663312).
type Listener struct {
	net.Listener
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (l *Listener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	openConnections.Inc()

	return &Conn{Conn: c, ReadTimeout: l.ReadTimeout, WriteTimeout: l.WriteTimeout}, nil
}

// Conn wraps a net.Conn and sets a fresh deadline on every read and write.
type Conn struct {
	net.Conn
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c *Conn) Read(b []byte) (int, error) {
	if c.ReadTimeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.ReadTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

func (c *Conn) Write(b []byte) (int, error) {
	if c.WriteTimeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.WriteTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}

func (c *Conn) Close() error {
	openConnections.Dec()
	return c.Conn.Close()
}

// NewListener opens a TCP listener at addr wrapped with the given
// per-connection read/write timeouts.
func NewListener(addr string, readTimeout, writeTimeout time.Duration) (net.Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{Listener: l, ReadTimeout: readTimeout, WriteTimeout: writeTimeout}, nil
}

// Serve blocks, serving mux over listener until the server is shut down
// or a fatal error occurs.
func Serve(ctx context.Context, listener net.Listener, handler http.Handler) error {
	srv := &http.Server{Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	err := srv.Serve(listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
