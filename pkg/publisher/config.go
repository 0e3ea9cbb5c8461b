package publisher

import (
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"pubharness/pkg/messaging"

	"github.com/pkg/errors"
)

// Variant selects how a publisher executes its workload.
type Variant string

const (
	// InProcess drives a directly linked messaging client on a goroutine.
	InProcess Variant = "inprocess"
	// Subprocess launches an external publisher process and parses its output.
	Subprocess Variant = "subprocess"
)

// Config is the complete, explicit configuration of one publisher handle.
// It is copied at construction; later changes to the caller's value have no
// effect on the handle.
type Config struct {
	Variant     Variant
	PublisherID string
	StreamID    string
	Function    PublishFunction
	Interval    time.Duration

	// Subprocess only.
	Credential string
	GroupKey   string
	Launcher   []string
	// KillGrace, when positive, kills a stopped process that has not exited
	// within the grace period. Zero keeps shutdown purely cooperative.
	KillGrace time.Duration

	// InProcess only.
	Client messaging.Publisher
}

func (c Config) Validate() error {
	if c.PublisherID == "" {
		return errors.New("publisher id cannot be empty")
	}
	if err := checkField(c.PublisherID, "stream id", c.StreamID); err != nil {
		return err
	}
	if err := checkField(c.PublisherID, "publish function", c.Function.Name); err != nil {
		return err
	}
	if c.Interval < time.Millisecond {
		return errors.Errorf("publisher %s: interval must be at least 1ms, got %s", c.PublisherID, c.Interval)
	}

	switch c.Variant {
	case InProcess:
		if c.Client == nil {
			return errors.Errorf("publisher %s: in-process publisher needs a client", c.PublisherID)
		}
		if c.Function.Message == nil {
			return errors.Errorf("publisher %s: publish function %s has no message builder", c.PublisherID, c.Function.Name)
		}
	case Subprocess:
		if len(c.Launcher) == 0 || c.Launcher[0] == "" {
			return errors.Errorf("publisher %s: subprocess publisher needs a launcher", c.PublisherID)
		}
		if err := checkField(c.PublisherID, "credential", c.Credential); err != nil {
			return err
		}
		if c.GroupKey != "" {
			if _, err := hex.DecodeString(strings.TrimPrefix(c.GroupKey, "0x")); err != nil {
				return errors.Wrapf(err, "publisher %s: group key is not hex", c.PublisherID)
			}
		}
		if c.KillGrace < 0 {
			return errors.Errorf("publisher %s: kill grace cannot be negative", c.PublisherID)
		}
	default:
		return errors.Errorf("publisher %s: unknown variant %q", c.PublisherID, c.Variant)
	}
	return nil
}

// checkField rejects empty values and values that would break the positional
// launch command line.
func checkField(publisherID, name, value string) error {
	if value == "" {
		return errors.Errorf("publisher %s: %s cannot be empty", publisherID, name)
	}
	if strings.IndexFunc(value, unicode.IsSpace) >= 0 {
		return errors.Errorf("publisher %s: %s cannot contain whitespace", publisherID, name)
	}
	return nil
}
