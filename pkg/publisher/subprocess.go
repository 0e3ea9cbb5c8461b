package publisher

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	publishedPrefix = "Published: "

	stdoutSource = "stdout"
	stderrSource = "stderr"

	initialLineBuffer = 64 * 1024
	maxLineLength     = 1024 * 1024
)

type subprocessPublisher struct {
	base
	command     LaunchCommand
	diagnostics DiagnosticsFunc
	exitState   atomic.Pointer[os.ProcessState]
}

func newSubprocessPublisher(cfg Config, o options) (*subprocessPublisher, error) {
	command, err := NewLaunchCommand(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "publisher %s", cfg.PublisherID)
	}
	p := &subprocessPublisher{command: command, diagnostics: o.diagnostics}
	p.base.init(cfg)
	return p, nil
}

// Command returns the command the publisher launches.
func (p *subprocessPublisher) Command() LaunchCommand {
	return p.command
}

// ExitState is how the process ended: on its own or killed on cancellation.
// It is nil until the process has been reaped, which happens before Done.
func (p *subprocessPublisher) ExitState() *os.ProcessState {
	return p.exitState.Load()
}

func (p *subprocessPublisher) Start() error {
	if err := p.begin(); err != nil {
		return err
	}

	cmd := exec.Command(p.command.Path, p.command.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return p.abort(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return p.abort(err)
	}
	if err := cmd.Start(); err != nil {
		return p.abort(err)
	}

	klog.InfoS("Publisher process started", "publisher", p.cfg.PublisherID,
		"pid", cmd.Process.Pid, "command", p.command.Redacted())

	if p.cfg.KillGrace > 0 {
		go p.watchdog(cmd, p.cfg.KillGrace)
	}
	go p.monitor(cmd, stdout, stderr)
	return nil
}

// abort ends a handle whose process could not be launched.
func (p *subprocessPublisher) abort(err error) error {
	err = errors.Wrapf(err, "failed to launch publisher %s", p.cfg.PublisherID)
	p.fail(err)
	p.finish()
	return err
}

func (p *subprocessPublisher) monitor(cmd *exec.Cmd, stdout, stderr io.ReadCloser) {
	defer p.finish()

	stopped, err := p.readLines(stdout, stdoutSource, p.handleStdout)
	if err == nil && !stopped {
		stopped, err = p.readLines(stderr, stderrSource, nil)
	}

	switch {
	case err != nil:
		err = errors.Wrapf(err, "publisher %s output stream failed", p.cfg.PublisherID)
		p.fail(err)
		klog.ErrorS(err, "Terminating publisher process", "publisher", p.cfg.PublisherID)
		terminate(cmd, stdout, stderr)
	case stopped:
		klog.V(4).InfoS("Publisher stopped, terminating process", "publisher", p.cfg.PublisherID)
		terminate(cmd, stdout, stderr)
	default:
		p.reap(cmd)
	}
	if cmd.ProcessState != nil {
		p.exitState.Store(cmd.ProcessState)
	}
}

// readLines surfaces every line of r to diagnostics and to handle, checking for
// cancellation before each read. It reports whether cancellation was observed.
func (p *subprocessPublisher) readLines(r io.Reader, source string, handle func(line string)) (bool, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialLineBuffer), maxLineLength)
	for {
		if p.cancelled() {
			return true, nil
		}
		if !scanner.Scan() {
			return false, scanner.Err()
		}
		line := scanner.Text()
		p.diagnostics(p.cfg.PublisherID, source, line)
		if handle != nil {
			handle(line)
		}
	}
}

func (p *subprocessPublisher) handleStdout(line string) {
	if payload, ok := strings.CutPrefix(line, publishedPrefix); ok {
		p.notify(payload)
	}
}

// reap waits for a process that closed its streams. Stop cannot shorten this
// wait; KillGrace does.
func (p *subprocessPublisher) reap(cmd *exec.Cmd) {
	err := cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		klog.InfoS("Publisher process exited", "publisher", p.cfg.PublisherID)
	case errors.As(err, &exitErr):
		klog.InfoS("Publisher process exited", "publisher", p.cfg.PublisherID, "exitCode", exitErr.ExitCode())
	default:
		klog.ErrorS(err, "Failed to reap publisher process", "publisher", p.cfg.PublisherID)
	}
}

// watchdog kills the process when it has not exited within grace of Stop.
func (p *subprocessPublisher) watchdog(cmd *exec.Cmd, grace time.Duration) {
	select {
	case <-p.done:
		return
	case <-p.ctx.Done():
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-p.done:
	case <-timer.C:
		klog.InfoS("Publisher did not stop in time, killing process", "publisher", p.cfg.PublisherID, "grace", grace)
		_ = cmd.Process.Kill()
	}
}

// terminate closes both streams, kills the process and reaps it. Every error
// is ignored.
func terminate(cmd *exec.Cmd, stdout, stderr io.Closer) {
	_ = stdout.Close()
	_ = stderr.Close()
	_ = cmd.Process.Kill()
	_ = cmd.Wait()
}
