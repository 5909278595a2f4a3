// Command uploadd serves the resumable measurement/attachment upload
// protocol implemented by internal/upload.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sensortrace/collector-upload/cmd/uploadd/cli"
)

// VersionName, GitCommit and BuildDate are overridden at build time via
// -ldflags.
var (
	VersionName = "dev"
	GitCommit   = "unknown"
	BuildDate   = "unknown"
)

func main() {
	cli.ParseFlags()

	if cli.Flags.ShowVersion {
		fmt.Printf("Version: %s\nCommit: %s\nDate: %s\n", VersionName, GitCommit, BuildDate)
		return
	}

	logger := cli.NewLogger()

	composer, err := cli.Compose(logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "uploadd:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweepDone := make(chan struct{})
	go func() {
		composer.RunSweep(ctx.Done())
		close(sweepDone)
	}()

	address := cli.Flags.HttpHost + ":" + cli.Flags.HttpPort
	listener, err := cli.NewListener(address, cli.Flags.ReadTimeout, cli.Flags.WriteTimeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "uploadd: unable to listen:", err)
		os.Exit(1)
	}

	fmt.Printf("uploadd %s listening on %s\n", VersionName, address)

	if err := cli.Serve(ctx, listener, composer.Mux()); err != nil {
		fmt.Fprintln(os.Stderr, "uploadd: server error:", err)
		os.Exit(1)
	}

	<-sweepDone
}
