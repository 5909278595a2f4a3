package cli

import (
	"flag"
	"time"
)

// Flags holds every command-line tunable for the uploadd binary. It is
// populated once by ParseFlags and read by Composer.
var Flags struct {
	HttpHost string
	HttpPort string

	MaxSize     int64
	UploadDir   string
	SessionTTL  time.Duration
	BehindProxy bool
	BasePath    string

	RedisAddr     string
	RedisPrefix   string
	SweepInterval time.Duration

	PubKeyFile string

	WebhookURL     string
	WebhookRetries int
	WebhookBackoff time.Duration
	WebhookTimeout time.Duration

	ExposeMetrics bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	MaxConcurrentUploads int64

	ShowVersion bool
}

// ParseFlags fills in Flags from os.Args. It must be called exactly once,
// before the first use of Flags.
func ParseFlags() {
	flag.StringVar(&Flags.HttpHost, "host", "0.0.0.0", "Host to bind HTTP server to")
	flag.StringVar(&Flags.HttpPort, "port", "1080", "Port to bind HTTP server to")

	flag.Int64Var(&Flags.MaxSize, "max-size", 500*1024*1024, "Maximum size of a single upload in bytes")
	flag.StringVar(&Flags.UploadDir, "upload-dir", "./data", "Directory to store staged and finished uploads in")
	flag.DurationVar(&Flags.SessionTTL, "session-ttl", time.Hour, "Session lifetime: counted from creation by the in-memory store, from the last write by the Redis store")
	flag.BoolVar(&Flags.BehindProxy, "behind-proxy", false, "Has no effect: Location headers always respect X-Forwarded-Proto")
	flag.StringVar(&Flags.BasePath, "base-path", "", "Path prefix this server is mounted under behind a reverse proxy; stripped from incoming requests and re-added to Location headers")

	flag.StringVar(&Flags.RedisAddr, "redis-addr", "", "Use Redis at this address for session state instead of in-memory storage (required for running more than one instance)")
	flag.StringVar(&Flags.RedisPrefix, "redis-prefix", "uploadd-session", "Key prefix to use for session keys in Redis")
	flag.DurationVar(&Flags.SweepInterval, "sweep-interval", 5*time.Minute, "How often the in-memory session store sweeps expired sessions (ignored with -redis-addr)")

	flag.StringVar(&Flags.PubKeyFile, "jwt-public-key", "", "Path to a PEM-encoded RSA public key used to verify bearer tokens (required)")

	flag.StringVar(&Flags.WebhookURL, "webhook-url", "", "If set, POST a JSON completion event here whenever an upload finishes")
	flag.IntVar(&Flags.WebhookRetries, "webhook-retries", 3, "Number of retries for a failed webhook delivery")
	flag.DurationVar(&Flags.WebhookBackoff, "webhook-backoff", time.Second, "Delay between webhook delivery retries")
	flag.DurationVar(&Flags.WebhookTimeout, "webhook-timeout", 10*time.Second, "Timeout for a single webhook delivery attempt")

	flag.BoolVar(&Flags.ExposeMetrics, "expose-metrics", true, "Expose Prometheus metrics at /metrics")

	flag.DurationVar(&Flags.ReadTimeout, "read-timeout", 30*time.Second, "Read timeout for connections. A zero value means reads never time out")
	flag.DurationVar(&Flags.WriteTimeout, "write-timeout", 30*time.Second, "Write timeout for connections. A zero value means writes never time out")

	flag.Int64Var(&Flags.MaxConcurrentUploads, "max-concurrent-uploads", 256, "Maximum number of chunk/status requests allowed in flight at once")

	flag.BoolVar(&Flags.ShowVersion, "version", false, "Print uploadd version information and exit")

	flag.Parse()
}
