package updater

import "time"

// Observer receives distribution lifecycle events.
// Implementations must be safe for concurrent use; node updates fan out.
type Observer interface {
	// NodeDiffed reports the outcome of diffing one node's jwt_keys
	// section against the desired key set
	NodeDiffed(server, node string, desired, changed int)

	// KeyWritten reports a successful key PUT
	KeyWritten(url string)

	// KeyWriteFailed reports a failed key PUT
	KeyWriteFailed(url string, err error)

	// RestartScheduled reports that a node restart was queued with the
	// given stagger delay
	RestartScheduled(server, node string, delay time.Duration)

	// RestartSent reports a successful restart POST
	RestartSent(server, node string)

	// RestartFailed reports a failed restart POST
	RestartFailed(server, node string, err error)
}

// NoOpObserver is an Observer that ignores every event.
// Embed it to implement only the events of interest.
type NoOpObserver struct{}

func (NoOpObserver) NodeDiffed(server, node string, desired, changed int)        {}
func (NoOpObserver) KeyWritten(url string)                                       {}
func (NoOpObserver) KeyWriteFailed(url string, err error)                        {}
func (NoOpObserver) RestartScheduled(server, node string, delay time.Duration)   {}
func (NoOpObserver) RestartSent(server, node string)                             {}
func (NoOpObserver) RestartFailed(server, node string, err error)                {}
