package publisher

import (
	"strconv"
	"strings"

	"github.com/anmitsu/go-shlex"
	"github.com/pkg/errors"
)

const redacted = "<redacted>"

// LaunchCommand is the invocation of an external publisher process:
//
//	<launcher...> <credential> <streamID> <function> <intervalMs> <groupKey>
//
// The group key argument is always present and empty when none is configured.
type LaunchCommand struct {
	Path string
	Args []string

	credentialIndex int
}

// NewLaunchCommand derives the launch command from cfg. The result depends on
// nothing but cfg.
func NewLaunchCommand(cfg Config) (LaunchCommand, error) {
	if len(cfg.Launcher) == 0 || cfg.Launcher[0] == "" {
		return LaunchCommand{}, errors.New("launcher cannot be empty")
	}
	args := make([]string, 0, len(cfg.Launcher)+4)
	args = append(args, cfg.Launcher[1:]...)
	credentialIndex := len(args)
	args = append(args,
		cfg.Credential,
		cfg.StreamID,
		cfg.Function.Name,
		strconv.FormatInt(cfg.Interval.Milliseconds(), 10),
		cfg.GroupKey,
	)
	return LaunchCommand{Path: cfg.Launcher[0], Args: args, credentialIndex: credentialIndex}, nil
}

// String renders the command as a single line.
func (c LaunchCommand) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Redacted renders the command with the credential masked, for logging.
func (c LaunchCommand) Redacted() string {
	args := append([]string(nil), c.Args...)
	if c.credentialIndex < len(args) {
		args[c.credentialIndex] = redacted
	}
	return strings.Join(append([]string{c.Path}, args...), " ")
}

// ParseLauncher splits a launcher such as "node publisher.js" into argv,
// honouring shell quoting.
func ParseLauncher(launcher string) ([]string, error) {
	argv, err := shlex.Split(launcher, true)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid launcher %q", launcher)
	}
	if len(argv) == 0 {
		return nil, errors.New("launcher cannot be empty")
	}
	return argv, nil
}
