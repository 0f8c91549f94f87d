package sigproc

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/utrading/utrading-sol-agent/pkg/goplus"
	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

type HandlerFunc func(os.Signal)

// DefaultTimeout bounds how long shutdown may take before the process exits anyway.
var DefaultTimeout = 30 * time.Second

// GracefulShutdown runs shutdown on the first SIGINT/SIGTERM/SIGQUIT and exits
// once it returns, or after DefaultTimeout.
func GracefulShutdown(shutdown HandlerFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	goplus.GoNamed("sigproc", func() {
		sig := <-sigChan
		logger.Info().Str("signal", sig.String()).Msg("received signal")

		finished := make(chan struct{})
		goplus.GoNamed("shutdown", func() {
			defer close(finished)
			shutdown(sig)
		})

		select {
		case <-finished:
		case <-time.After(DefaultTimeout):
			logger.Warn().Dur("timeout", DefaultTimeout).Msg("shutdown timed out")
		}

		os.Exit(0)
	})
}
