package messaging

import "errors"

var (
	// ErrConnectionLost is returned (possibly wrapped) by a client whose
	// connection to the platform is gone for good. Publishers treat it as fatal.
	ErrConnectionLost = errors.New("connection to the streaming platform was lost")
	ErrClientNotReady = errors.New("client was not initialized")
)
