package probe

import (
	"log/slog"
	"time"

	"github.com/beyonddemise/couchdb-idp-updater/internal/updater"
)

// loggingObserver logs every distribution event with structured logging
type loggingObserver struct {
	logger *slog.Logger
}

// NewLoggingObserver creates an updater observer that logs all distribution
// events using structured logging with slog.
func NewLoggingObserver(logger *slog.Logger) updater.Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingObserver{
		logger: logger.With("event", "distribution"),
	}
}

func (o *loggingObserver) NodeDiffed(server, node string, desired, changed int) {
	o.logger.Info("node diffed",
		"server", server,
		"node", node,
		"desired_keys", desired,
		"changed_keys", changed,
	)
}

func (o *loggingObserver) KeyWritten(url string) {
	o.logger.Info("key written", "url", url)
}

func (o *loggingObserver) KeyWriteFailed(url string, err error) {
	o.logger.Warn("key write failed", "url", url, "error", err)
}

func (o *loggingObserver) RestartScheduled(server, node string, delay time.Duration) {
	o.logger.Info("restart scheduled",
		"server", server,
		"node", node,
		"delay", delay,
	)
}

func (o *loggingObserver) RestartSent(server, node string) {
	o.logger.Info("restart sent", "server", server, "node", node)
}

func (o *loggingObserver) RestartFailed(server, node string, err error) {
	o.logger.Warn("restart failed", "server", server, "node", node, "error", err)
}
