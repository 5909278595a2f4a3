package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/semaphore"

	"github.com/sensortrace/collector-upload/internal/auth"
	"github.com/sensortrace/collector-upload/internal/localstore"
	"github.com/sensortrace/collector-upload/internal/memorysession"
	"github.com/sensortrace/collector-upload/internal/metrics"
	"github.com/sensortrace/collector-upload/internal/notify"
	"github.com/sensortrace/collector-upload/internal/redissession"
	"github.com/sensortrace/collector-upload/internal/upload"
)

// Composer wires every adapter package into a ready UploadEngine, the
// way tusd's StoreComposer wires a locker and a data store into a single
// handler. Unlike tusd's composer, there is nothing pluggable at
// runtime here beyond what Flags selects at startup.
type Composer struct {
	Engine  *upload.UploadEngine
	Metrics *metrics.Metrics

	// chunkLimit bounds how many chunk/status requests are processed at
	// once, so a burst of slow uploads can't exhaust file descriptors or
	// staging-directory I/O. Acquired per request in Mux.
	chunkLimit *semaphore.Weighted

	// sweep is non-nil only when the in-memory session store was picked;
	// the caller launches it in its own goroutine.
	sweep func(stop <-chan struct{})
}

// Compose builds a Composer from Flags. The public key file must already
// exist on disk; the upload directory's "staging" and "objects"
// subdirectories are created if missing.
func Compose(logger *slog.Logger) (*Composer, error) {
	if Flags.UploadDir == "" {
		return nil, fmt.Errorf("uploadd: -upload-dir must not be empty")
	}
	if err := os.MkdirAll(Flags.UploadDir+"/staging", 0o775); err != nil {
		return nil, fmt.Errorf("uploadd: preparing upload dir: %w", err)
	}
	if err := os.MkdirAll(Flags.UploadDir+"/objects", 0o775); err != nil {
		return nil, fmt.Errorf("uploadd: preparing upload dir: %w", err)
	}
	stdout.Printf("Using %q as directory storage.", Flags.UploadDir)
	storage := localstore.New(Flags.UploadDir)

	if Flags.PubKeyFile == "" {
		return nil, fmt.Errorf("uploadd: -jwt-public-key is required")
	}
	pubKeyPEM, err := os.ReadFile(Flags.PubKeyFile)
	if err != nil {
		return nil, fmt.Errorf("uploadd: reading public key: %w", err)
	}
	checker, err := auth.NewChecker(string(pubKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("uploadd: parsing public key: %w", err)
	}

	var sessions upload.SessionStore
	var sweep func(stop <-chan struct{})
	if Flags.RedisAddr != "" {
		stdout.Printf("Using Redis at %q for session state.", Flags.RedisAddr)
		client := redis.NewClient(&redis.Options{Addr: Flags.RedisAddr})
		sessions = redissession.New(client, Flags.SessionTTL, Flags.RedisPrefix, logger)
	} else {
		stdout.Printf("Using in-memory session state (single instance only).")
		store := memorysession.New(Flags.SessionTTL)
		sessions = store
		sweep = func(stop <-chan struct{}) { store.Run(stop, Flags.SweepInterval) }
	}

	m := metrics.New()

	engineOpts := []upload.EngineOption{
		upload.WithMetrics(m),
		upload.WithLogger(logger),
	}
	if Flags.WebhookURL != "" {
		stdout.Printf("Notifying %q on upload completion.", Flags.WebhookURL)
		webhook := notify.NewWebhook(Flags.WebhookURL, Flags.WebhookRetries, Flags.WebhookBackoff, Flags.WebhookTimeout)
		webhook.Logger = logger
		engineOpts = append(engineOpts, upload.WithNotifier(webhook))
	}

	cfg := upload.Config{
		MaxUploadSize: Flags.MaxSize,
		SessionTTL:    Flags.SessionTTL,
		BasePath:      Flags.BasePath,
	}
	stdout.Printf("Using %.2fMB as maximum upload size.", float64(cfg.MaxUploadSize)/1024/1024)

	engine, err := upload.NewUploadEngine(cfg, sessions, storage, checker.Authenticate, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("uploadd: building engine: %w", err)
	}

	limit := Flags.MaxConcurrentUploads
	if limit <= 0 {
		limit = 1
	}

	return &Composer{
		Engine:     engine,
		Metrics:    m,
		chunkLimit: semaphore.NewWeighted(limit),
		sweep:      sweep,
	}, nil
}

// RunSweep launches the session-sweep goroutine, if one is needed, and
// blocks until stop is closed. It returns immediately if the session
// store doesn't need sweeping (i.e. Redis was chosen, which expires
// keys on its own).
func (c *Composer) RunSweep(stop <-chan struct{}) {
	if c.sweep != nil {
		c.sweep(stop)
	}
}
