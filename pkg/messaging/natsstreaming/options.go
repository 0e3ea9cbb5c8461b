package natsstreaming

import "time"

type options struct {
	natsURL                string
	natsStreamingClusterID string
	clientID               string
	connectWait            time.Duration
	pubAckWait             time.Duration
	maxPubAcksInflight     int
}
