package publisher

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MessageFunc builds the payload of the seq-th message of a publisher.
type MessageFunc func(seq uint64) interface{}

// PublishFunction selects the message generation strategy of a publisher.
// Subprocess publishers only forward the name; the external process owns the
// strategy implementation.
type PublishFunction struct {
	Name    string
	Message MessageFunc
}

const noiseLength = 64

var (
	functionsMu sync.RWMutex
	functions   = map[string]PublishFunction{}
)

func init() {
	RegisterFunction(
		PublishFunction{Name: "default", Message: func(seq uint64) interface{} {
			return map[string]interface{}{
				"counter": seq,
				"msg":     "Hello world",
			}
		}},
		PublishFunction{Name: "noise", Message: func(seq uint64) interface{} {
			return map[string]interface{}{
				"counter": seq,
				"noise":   randomString(noiseLength),
			}
		}},
		PublishFunction{Name: "timestamp", Message: func(seq uint64) interface{} {
			return map[string]interface{}{
				"counter":   seq,
				"timestamp": time.Now().UnixMilli(),
			}
		}},
	)
}

// RegisterFunction adds or replaces publish functions by name.
func RegisterFunction(fns ...PublishFunction) {
	functionsMu.Lock()
	defer functionsMu.Unlock()
	for _, fn := range fns {
		functions[fn.Name] = fn
	}
}

// LookupFunction returns the publish function registered under name.
func LookupFunction(name string) (PublishFunction, error) {
	functionsMu.RLock()
	defer functionsMu.RUnlock()
	fn, ok := functions[name]
	if !ok {
		return PublishFunction{}, errors.Errorf("unknown publish function %q", name)
	}
	return fn, nil
}

// FunctionNames lists the registered publish functions in sorted order.
func FunctionNames() []string {
	functionsMu.RLock()
	defer functionsMu.RUnlock()
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func randomString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
