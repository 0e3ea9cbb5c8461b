package jetstream

import "time"

type options struct {
	natsURL        string
	connectWait    time.Duration
	publishTimeout time.Duration
	streamName     string
	streamSubjects []string
}
