package publisher

import (
	"pubharness/pkg/messaging"

	"github.com/pkg/errors"
)

var (
	ErrAlreadyStarted = errors.New("publisher was already started")
	ErrStopped        = errors.New("publisher was stopped")
)

// IsFatal reports whether a publish error must end the publishing loop.
func IsFatal(err error) bool {
	return errors.Is(err, messaging.ErrConnectionLost)
}
