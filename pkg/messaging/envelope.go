package messaging

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	PublisherIDHeader = "publisherId"
	SequenceHeader    = "sequence"

	cloudEventsVersion = "1.0"
	jsonContentType    = "application/json"
)

// MessageEnvelope follows the CloudEvents 1.0 attribute names.
type MessageEnvelope struct {
	Id              string    `json:"id"`
	Type            string    `json:"type"`
	SpecVersion     string    `json:"specversion"`
	DataContentType string    `json:"datacontenttype"`
	Time            time.Time `json:"time"`
	Subject         string    `json:"subject"`

	Headers map[string]string `json:"headers"`
	Payload interface{}       `json:"payload"`
}

// NewEnvelope stamps a fresh id and time on payload. eventType is the name of
// the publish function that produced it.
func NewEnvelope(stream, eventType, publisherID string, seq uint64, payload interface{}) *MessageEnvelope {
	return &MessageEnvelope{
		Id:              uuid.NewString(),
		Type:            eventType,
		SpecVersion:     cloudEventsVersion,
		DataContentType: jsonContentType,
		Time:            time.Now().UTC(),
		Subject:         stream,
		Headers: map[string]string{
			PublisherIDHeader: publisherID,
			SequenceHeader:    strconv.FormatUint(seq, 10),
		},
		Payload: payload,
	}
}
