package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bashhack/autocommit/internal/config"
)

// Version information - injected at build time
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// shutdownGrace is how long a canceled command may take to stop before
// the process is terminated.
const shutdownGrace = 5 * time.Second

func main() {
	app := NewDefaultApp(config.VersionInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		select {
		case sig := <-c:
			_, _ = fmt.Fprintf(app.Stderr, "\nReceived signal %v, stopping autocommit...\n", sig)
			cancel()
		case <-done:
			return
		}

		select {
		case <-done:
		case <-time.After(shutdownGrace):
			_ = app.Close()
			app.exit(1)
		}
	}()

	err := NewRootCommand(app).ExecuteContext(ctx)
	close(done)

	if err != nil && ctx.Err() == nil {
		_, _ = fmt.Fprintf(app.Stderr, "❌ Error: %v\n", err)
		_ = app.Close()
		app.exit(1)
	}
	_ = app.Close()
}
