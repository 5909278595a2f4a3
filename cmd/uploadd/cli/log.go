package cli

import (
	"log"
	"log/slog"
	"os"
)

// stdout and stderr carry operator-facing startup/shutdown lines: which
// storage backend was picked, which address is bound, fatal misconfiguration.
// Per-request logging is structured and goes through slog (see NewLogger);
// the two are kept separate so a grep for a deviceId never has to wade
// through banner text.
var stdout = log.New(os.Stdout, "[uploadd] ", 0)
var stderr = log.New(os.Stderr, "[uploadd] ", 0)

// NewLogger builds the structured logger passed to upload.WithLogger.
func NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
