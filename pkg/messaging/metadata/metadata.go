// Package metadata reads typed client settings out of the string map a
// scenario hands to messaging.Client.Init. Empty values count as unset.
package metadata

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type Properties map[string]string

func (p Properties) Required(key string) (string, error) {
	if v := p[key]; v != "" {
		return v, nil
	}
	return "", errors.Errorf("missing %s", key)
}

func (p Properties) String(key, def string) string {
	if v := p[key]; v != "" {
		return v
	}
	return def
}

func (p Properties) Duration(key string, def time.Duration) (time.Duration, error) {
	v := p[key]
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, errors.Wrapf(err, "invalid %s", key)
	}
	return d, nil
}

// Int parses key and rejects values below min.
func (p Properties) Int(key string, def, atLeast int) (int, error) {
	v := p[key]
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, errors.Wrapf(err, "invalid %s", key)
	}
	if n < atLeast {
		return def, errors.Errorf("%s must be at least %d, got %d", key, atLeast, n)
	}
	return n, nil
}

func (p Properties) Bool(key string, def bool) (bool, error) {
	v := p[key]
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, errors.Wrapf(err, "invalid %s", key)
	}
	return b, nil
}

// List splits a comma separated value, dropping blanks.
func (p Properties) List(key string) []string {
	var out []string
	for _, item := range strings.Split(p[key], ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
