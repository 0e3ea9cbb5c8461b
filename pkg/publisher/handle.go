package publisher

// Callback receives the identifying payload of one published item. It is
// invoked from the publisher's background goroutine, never concurrently with
// itself for the same handle.
type Callback func(payload string)

// Handle is the lifecycle contract shared by every publisher variant.
// Handles are single-use: once stopped they cannot be started again.
type Handle interface {
	// PublisherID returns the identity used to correlate notifications.
	PublisherID() string
	// SetOnPublished replaces the notification callback. Passing nil clears it.
	SetOnPublished(cb Callback)
	// Start launches the background workload and returns without waiting for it.
	Start() error
	// Stop signals the background workload to finish. It does not wait.
	Stop()
	// Done is closed once the background workload has exited.
	Done() <-chan struct{}
	// Err returns the fatal error that ended the workload, if any.
	Err() error
}
