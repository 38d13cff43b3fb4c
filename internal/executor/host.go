package executor

import (
	"io"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/rayshell/rayshell/internal/builtin"
	"github.com/rayshell/rayshell/internal/job"
)

// hostAdapter exposes *Shell as a builtin.Host without widening Shell's
// own exported surface; builtins only ever see this narrow view.
type hostAdapter Shell

var _ builtin.Host = (*hostAdapter)(nil)

func (h *hostAdapter) Stdout() io.Writer { return h.stdout }
func (h *hostAdapter) Stderr() io.Writer { return h.stderr }

func (h *hostAdapter) Getenv(name string) string { return os.Getenv(name) }

func (h *hostAdapter) Setenv(name, value string) error {
	return os.Setenv(name, value)
}

func (h *hostAdapter) Unsetenv(name string) error {
	return os.Unsetenv(name)
}

func (h *hostAdapter) Cwd() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cwd
}

func (h *hostAdapter) Chdir(path string) error {
	if err := os.Chdir(path); err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.cwd = cwd
	h.mu.Unlock()
	return nil
}

func (h *hostAdapter) Jobs() *job.Table { return h.jobs }

// ForegroundJob resumes a stopped or backgrounded job in the foreground,
// grounded on the original's handle_fg: claim the terminal, send
// SIGCONT, then wait on every pid the same way a freshly started
// foreground job would.
func (h *hostAdapter) ForegroundJob(j *job.Job) (int, error) {
	s := (*Shell)(h)
	if s.isTTY {
		unix.Tcsetpgrp(s.ttyFd, int32(j.PGID))
	}
	unix.Kill(-j.PGID, syscall.SIGCONT)
	s.jobs.SetStatus(j.PGID, job.Running)
	return s.waitPipeline(j)
}

// BackgroundJob resumes a stopped job without claiming the terminal,
// grounded on the original's handle_bg.
func (h *hostAdapter) BackgroundJob(j *job.Job) error {
	if err := unix.Kill(-j.PGID, syscall.SIGCONT); err != nil {
		return err
	}
	h.Jobs().SetStatus(j.PGID, job.Running)
	return nil
}

func (h *hostAdapter) History() []string {
	s := (*Shell)(h)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

func (h *hostAdapter) Exit(code int) {
	s := (*Shell)(h)
	s.mu.Lock()
	s.exitRequested = true
	s.exitCode = code
	s.mu.Unlock()
}

// LastStatus implements expander.StatusSource directly on *Shell (see
// shell.go); OSEnviron from the expander package covers Environment.
