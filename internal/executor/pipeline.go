package executor

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/rayshell/rayshell/internal/ast"
	"github.com/rayshell/rayshell/internal/errs"
	"github.com/rayshell/rayshell/internal/job"
)

// runPipeline forks every member of a pipeline, chaining stdout to stdin
// through os.Pipe, and joins every member but the first into the first's
// process group — the Go equivalent of the original's multi-fork loop
// with an explicit pgid carried across os.setpgid calls.
func (s *Shell) runPipeline(n *ast.Pipeline) (int, error) {
	commands := n.Commands
	count := len(commands)

	readers := make([]*os.File, count-1)
	writers := make([]*os.File, count-1)
	for i := 0; i < count-1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			return 1, err
		}
		readers[i] = r
		writers[i] = w
	}

	cmds := make([]*exec.Cmd, count)
	pids := make([]int, 0, count)
	pgid := 0
	names := make([]string, count)

	for i, c := range commands {
		name := c.Name.String()
		names[i] = name
		args := wordsToStrings(c.Args)
		env := s.commandEnv(c)

		cmd := exec.Command(name, args...)
		cmd.Env = env

		switch {
		case c.Stdin != nil:
			f, err := os.Open(c.Stdin.String())
			if err == nil {
				cmd.Stdin = f
			}
		case i > 0:
			cmd.Stdin = readers[i-1]
		case s.isTTY:
			cmd.Stdin = s.ttyFile
		default:
			cmd.Stdin = os.Stdin
		}

		switch {
		case c.Stdout != nil:
			f, err := openForWrite(c.Stdout.String(), c.StdoutAppend)
			if err == nil {
				cmd.Stdout = f
			}
		case i < count-1:
			cmd.Stdout = writers[i]
		default:
			cmd.Stdout = os.Stdout
		}

		if c.Stderr != nil {
			f, err := openForWrite(c.Stderr.String(), c.StderrAppend)
			if err == nil {
				cmd.Stderr = f
			}
		} else {
			cmd.Stderr = os.Stderr
		}

		attr := &syscall.SysProcAttr{Setpgid: true}
		if pgid != 0 {
			attr.Pgid = pgid
		} else if !n.Background && s.isTTY {
			attr.Foreground = true
			attr.Ctty = 0
		}
		cmd.SysProcAttr = attr

		if err := cmd.Start(); err != nil {
			s.reportCommandNotFound(name)
			cleanupPipes(readers, writers)
			return 127, nil
		}
		if pgid == 0 {
			pgid = cmd.Process.Pid
		}
		pids = append(pids, cmd.Process.Pid)
		cmds[i] = cmd
	}

	cleanupPipes(readers, writers)

	cmdline := joinNames(names)
	j := s.jobs.Add(pgid, pids, cmdline)

	if n.Background {
		idx, _ := s.jobs.IndexOf(j.PGID)
		fmt.Fprintf(s.stdout, "[%d] %d\n", idx, pgid)
		return 0, nil
	}

	return s.waitPipeline(j)
}

func cleanupPipes(readers, writers []*os.File) {
	for _, f := range readers {
		f.Close()
	}
	for _, f := range writers {
		f.Close()
	}
}

func joinNames(names []string) string {
	out := names[0]
	for _, n := range names[1:] {
		out += " | " + n
	}
	return out
}

// waitPipeline waits on the whole process group until every member has
// been reaped, matching the original's completed_pids bookkeeping. The
// returned status is the rightmost member's, whatever order the members
// finish in.
func (s *Shell) waitPipeline(j *job.Job) (int, error) {
	s.mu.Lock()
	s.fgPGID = j.PGID
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.fgPGID = 0
		s.mu.Unlock()
		s.reclaimTerminal()
	}()

	remaining := make(map[int]bool, len(j.PIDs))
	for _, pid := range j.PIDs {
		remaining[pid] = true
	}

	status := 0
	for len(remaining) > 0 {
		var ws unix.WaitStatus
		wpid, err := unix.Wait4(-j.PGID, &ws, unix.WUNTRACED|unix.WCONTINUED, nil)
		if err == unix.EINTR {
			continue
		}
		if err == unix.ECHILD {
			return s.statusAfterECHILD(j)
		}
		if err != nil {
			return status, &errs.JobControlError{Op: "wait4", Cause: err}
		}
		if !remaining[wpid] {
			continue
		}

		switch {
		case ws.Stopped():
			s.jobs.SetStatus(j.PGID, job.Stopped)
			idx, _ := s.jobs.IndexOf(j.PGID)
			fmt.Fprintf(s.stdout, "\n[%d]  Stopped\t%s\n", idx, j.Cmdline)
			return 128 + int(ws.StopSignal()), nil
		case ws.Exited():
			if wpid == j.PIDs[len(j.PIDs)-1] {
				status = ws.ExitStatus()
			}
			delete(remaining, wpid)
		case ws.Signaled():
			if wpid == j.PIDs[len(j.PIDs)-1] {
				status = 128 + int(ws.Signal())
			}
			delete(remaining, wpid)
		case ws.Continued():
			// not a terminal state for this pid; keep waiting.
		}
	}

	s.jobs.SetExitCode(j.PGID, status)
	s.jobs.Remove(j.PGID)
	s.setLastStatus(status)
	return status, nil
}
