package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/smazurov/reframer/internal/logging"
)

// LogParser parses a log line and returns the level to log it at and the
// message. Used to extract structured log info from process output.
type LogParser func(line string) (level slog.Level, msg string)

// LineFilter reports whether a line should be logged at all.
type LineFilter func(line string) bool

// Child is a started subprocess whose combined stdout and stderr is
// delivered line by line.
type Child interface {
	// Lines yields output lines and is closed once both streams hit EOF.
	Lines() <-chan string
	// Done receives the exit error after Lines is closed.
	Done() <-chan error
	// Terminate asks the process group to stop (SIGINT).
	Terminate()
	// Kill force-stops the process group (SIGKILL).
	Kill()
	// PID returns the operating system process ID.
	PID() int
}

// Launcher starts subprocesses.
type Launcher interface {
	Launch(ctx context.Context, id string, args []string) (Child, error)
}

// Process manages one running subprocess.
type Process struct {
	id            string
	cmd           *exec.Cmd
	logger        logging.Logger
	processLogger logging.Logger
	logParser     LogParser
	logFilter     LineFilter
	lines         chan string
	done          chan error
	onStart       func(pid int)
	onExit        func(error)
	signalOnce    sync.Once
	killOnce      sync.Once
}

// Lines implements Child.
func (p *Process) Lines() <-chan string { return p.lines }

// Done implements Child.
func (p *Process) Done() <-chan error { return p.done }

// PID implements Child.
func (p *Process) PID() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Terminate sends SIGINT to the process group once.
func (p *Process) Terminate() {
	p.signalOnce.Do(func() {
		p.logger.Info("Sending SIGINT to process group", "id", p.id, "pid", p.PID())
		if err := interruptGroup(p.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.logger.Warn("Failed to send SIGINT", "error", err)
		}
	})
}

// Kill sends SIGKILL to the process group once.
func (p *Process) Kill() {
	p.killOnce.Do(func() {
		p.logger.Warn("Killing process group", "id", p.id, "pid", p.PID())
		if err := killGroup(p.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.logger.Error("Failed to kill process", "error", err)
		}
	})
}

// start launches the command and the output pumps.
func (p *Process) start() error {
	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.cmd.Path, err)
	}

	p.logger.Debug("Process started", "id", p.id, "pid", p.PID())
	if p.onStart != nil {
		p.onStart(p.PID())
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.streamOutput(stdout, "stdout")
	}()
	go func() {
		defer wg.Done()
		p.streamOutput(stderr, "stderr")
	}()

	// Wait must follow the last pipe read.
	go func() {
		wg.Wait()
		close(p.lines)
		err := p.cmd.Wait()
		if p.onExit != nil {
			p.onExit(err)
		}
		p.done <- err
		close(p.done)
	}()
	return nil
}

// streamOutput forwards lines to the consumer and logs diagnostics at
// the level the parser extracts.
func (p *Process) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(scanLines)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		p.lines <- line

		if p.logFilter != nil && !p.logFilter(line) {
			continue
		}
		level, msg := slog.LevelInfo, line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}
		logger.Log(context.Background(), level, msg, "source", source, "process", p.id)
	}

	if err := scanner.Err(); err != nil {
		p.logger.Warn("Error reading output", "source", source, "error", err)
		_, _ = io.Copy(io.Discard, reader)
	}
}

// scanLines splits on \n, \r\n and bare \r so that carriage-return
// progress updates arrive as separate lines.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		advance := i + 1
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			advance++
		} else if data[i] == '\r' && i+1 == len(data) && !atEOF {
			return 0, nil, nil
		}
		return advance, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// ExitCode extracts the exit code from a Wait error.
// Returns 0 for nil, the exit code for ExitError, or -1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Exec launches a fixed binary, typically ffmpeg.
type Exec struct {
	Binary        string
	Logger        logging.Logger
	ProcessLogger logging.Logger
	LogParser     LogParser
	LogFilter     LineFilter
	Registry      *Registry
}

// Launch implements Launcher. The context only gates the start; callers
// stop the child through Terminate or Kill.
func (e *Exec) Launch(ctx context.Context, id string, args []string) (Child, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(e.Binary, args...)
	setProcessGroup(cmd)

	p := &Process{
		id:            id,
		cmd:           cmd,
		logger:        e.Logger,
		processLogger: e.ProcessLogger,
		logParser:     e.LogParser,
		logFilter:     e.LogFilter,
		lines:         make(chan string, 64),
		done:          make(chan error, 1),
	}
	if p.logger == nil {
		p.logger = logging.GetLogger("process")
	}

	if e.Registry != nil {
		e.Registry.set(id, StateStarting, 0, nil)
		p.onStart = func(pid int) {
			e.Registry.set(id, StateRunning, pid, nil)
		}
		p.onExit = func(err error) {
			if err != nil {
				e.Registry.set(id, StateError, 0, err)
			}
			e.Registry.remove(id)
		}
	}

	if err := p.start(); err != nil {
		if e.Registry != nil {
			e.Registry.remove(id)
		}
		return nil, err
	}
	return p, nil
}

// WaitTimeout drains a child's output and waits for exit, killing it if
// it has not exited within timeout. It reports whether the child exited
// on its own, along with the exit error.
func WaitTimeout(c Child, timeout time.Duration) (bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	lines := c.Lines()
	for {
		select {
		case _, ok := <-lines:
			if !ok {
				lines = nil
			}
		case err := <-c.Done():
			return true, err
		case <-timer.C:
			c.Kill()
			if lines != nil {
				for range lines {
				}
			}
			return false, <-c.Done()
		}
	}
}
