// Package executor walks an expanded AST and runs it: builtins
// in-process, everything else forked and exec'd with proper process
// groups so job control behaves like a real shell. It is grounded on
// the teacher's executor/shell_worker.go use of core/invariant plus the
// original Executor class's fork/exec and waitpid loops.
package executor

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/rayshell/rayshell/core/invariant"
	"github.com/rayshell/rayshell/internal/ast"
	"github.com/rayshell/rayshell/internal/builtin"
	"github.com/rayshell/rayshell/internal/errs"
	"github.com/rayshell/rayshell/internal/job"
)

// Shell is the single piece of execution state a running session
// carries: current directory, job table, foreground process group, and
// the last exit status @? resolves to.
type Shell struct {
	mu sync.Mutex

	cwd        string
	fgPGID     int
	lastStatus int

	jobs *job.Table

	ttyFile *os.File
	ttyFd   int
	isTTY   bool

	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader

	history []string

	exitRequested bool
	exitCode      int

	logger *slog.Logger

	sigCh chan os.Signal
	stop  chan struct{}
}

// New opens the controlling terminal (best-effort; a non-interactive
// shell, e.g. one driven by `-c`, simply runs without job control) and
// starts the background signal-relay goroutine.
func New() *Shell {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}

	level := slog.LevelInfo
	if os.Getenv("RAYSHELL_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	sh := &Shell{
		cwd:    cwd,
		jobs:   job.NewTable(),
		stdout: os.Stdout,
		stderr: os.Stderr,
		stdin:  os.Stdin,
		logger: logger,
		sigCh:  make(chan os.Signal, 16),
		stop:   make(chan struct{}),
		ttyFd:  -1,
	}

	if tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0); err == nil {
		sh.ttyFile = tty
		sh.ttyFd = int(tty.Fd())
		sh.isTTY = true
	}

	sh.installSignalRelay()
	return sh
}

// Close stops the signal-relay goroutine and releases the controlling
// terminal handle.
func (s *Shell) Close() {
	close(s.stop)
	if s.ttyFile != nil {
		s.ttyFile.Close()
	}
}

func (s *Shell) LastStatus() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStatus
}

func (s *Shell) setLastStatus(code int) {
	s.mu.Lock()
	s.lastStatus = code
	s.mu.Unlock()
}

// ExitRequested reports whether a builtin (exit/quit) asked the REPL
// loop to stop, and the code it should stop with.
func (s *Shell) ExitRequested() (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitRequested, s.exitCode
}

// RecordHistory appends a line to the in-memory history buffer the
// `history` builtin reads from.
func (s *Shell) RecordHistory(line string) {
	s.mu.Lock()
	s.history = append(s.history, line)
	s.mu.Unlock()
}

// Run dispatches a single top-level node, mirroring the original's
// switch-shaped interpreter loop (see original Executor.run). Every
// return path drains jobs the SIGCHLD goroutine has already marked Done,
// so no statement completion leaves a finished background job sitting
// in the table (spec: "after any statement completes and SIGCHLD has
// drained, JobTable contains no done entries").
func (s *Shell) Run(node ast.Node) (int, error) {
	defer s.jobs.ReapDone()
	switch n := node.(type) {
	case nil:
		return 0, nil
	case *ast.Assignment:
		value := ""
		if n.Value != nil {
			value = n.Value.String()
		}
		os.Setenv(n.Name, value)
		return 0, nil
	case *ast.AssignmentList:
		for _, a := range n.Assignments {
			value := ""
			if a.Value != nil {
				value = a.Value.String()
			}
			os.Setenv(a.Name, value)
		}
		return 0, nil
	case *ast.Command:
		return s.runCommand(n)
	case *ast.Pipeline:
		return s.runPipeline(n)
	case *ast.BinaryOp:
		return s.runBinary(n)
	case *ast.If:
		return s.runIf(n)
	case *ast.Block:
		return s.runBlock(n)
	case *ast.For:
		return 0, &errs.NotImplementedError{Keyword: "for"}
	case *ast.While:
		return 0, &errs.NotImplementedError{Keyword: "while"}
	case *ast.Case:
		return 0, &errs.NotImplementedError{Keyword: "case"}
	default:
		return 0, fmt.Errorf("executor: unsupported node %T", node)
	}
}

func (s *Shell) runBlock(n *ast.Block) (int, error) {
	status := 0
	for _, stmt := range n.Statements {
		var err error
		status, err = s.Run(stmt)
		if err != nil {
			return status, err
		}
	}
	return status, nil
}

// runBinary implements ";" sequencing and the short-circuiting "&&"/
// "||" operators.
func (s *Shell) runBinary(n *ast.BinaryOp) (int, error) {
	left, err := s.Run(n.Left)
	if err != nil {
		return left, err
	}
	switch n.Op {
	case "&&":
		if left == 0 {
			return s.Run(n.Right)
		}
		return left, nil
	case "||":
		if left != 0 {
			return s.Run(n.Right)
		}
		return left, nil
	case ";":
		return s.Run(n.Right)
	default:
		return s.runComparison(n.Op, left, n.Right)
	}
}

// runComparison covers the comparison/pipe operators usable inside an
// if-condition. Operands are themselves commands; both sides run, and
// their exit statuses, not their stdout, are what gets compared — the
// result is 0 when the two statuses relate as the operator asks, else 1.
func (s *Shell) runComparison(op string, left int, rightNode ast.Node) (int, error) {
	if op == "|" {
		return left, nil
	}
	right, err := s.Run(rightNode)
	if err != nil {
		return right, err
	}
	switch op {
	case "==":
		return boolStatus(left == right), nil
	case "!=":
		return boolStatus(left != right), nil
	case "<":
		return boolStatus(left < right), nil
	case ">":
		return boolStatus(left > right), nil
	case "<=":
		return boolStatus(left <= right), nil
	case ">=":
		return boolStatus(left >= right), nil
	default:
		return left, nil
	}
}

func boolStatus(b bool) int {
	if b {
		return 0
	}
	return 1
}

// runIf corrects the original's bug (see original Executor.runIf,
// which returned the *condition's* status even when a branch ran): the
// status of an if-statement is the status of whichever branch executed,
// or 0 when the condition was false and there was no else clause.
func (s *Shell) runIf(n *ast.If) (int, error) {
	condStatus, err := s.Run(n.Condition)
	if err != nil {
		return condStatus, err
	}
	if condStatus == 0 {
		return s.Run(n.Consequent)
	}
	if n.Alternative != nil {
		return s.Run(n.Alternative)
	}
	return 0, nil
}

func (s *Shell) runCommand(n *ast.Command) (int, error) {
	name := n.Name.String()
	args := wordsToStrings(n.Args)
	env := s.commandEnv(n)

	if builtin.IsBuiltin(name) {
		return s.runBuiltin(n, name, args, env)
	}
	return s.runExternal(n, name, args, env, n.Background)
}

func wordsToStrings(words []ast.Word) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w.String()
	}
	return out
}

// commandEnv builds the environment an invocation sees: the shell's own
// environment overlaid with this command's local assignments. Unlike the
// original, which mutated the whole-process os.environ and restored it
// afterward, external commands simply receive this slice as exec.Cmd.Env
// so concurrent pipeline members never race on global state.
func (s *Shell) commandEnv(n *ast.Command) []string {
	env := os.Environ()
	for _, a := range n.Assignments {
		value := ""
		if a.Value != nil {
			value = a.Value.String()
		}
		env = append(env, a.Name+"="+value)
	}
	return env
}

// runBuiltin applies the invariant that a builtin's env assignments and
// redirections are visible only for the one call, then restores both.
func (s *Shell) runBuiltin(n *ast.Command, name string, args []string, env []string) (int, error) {
	for _, a := range n.Assignments {
		prev, had := os.LookupEnv(a.Name)
		defer func(name, prev string, had bool) {
			if !had {
				os.Unsetenv(name)
				return
			}
			os.Setenv(name, prev)
		}(a.Name, prev, had)
	}
	applyEnviron(env)

	prevStdout, prevStderr := s.stdout, s.stderr
	defer func() { s.stdout, s.stderr = prevStdout, prevStderr }()

	closers, err := s.redirectBuiltinStreams(n)
	defer closers()
	if err != nil {
		return 1, err
	}

	status := builtin.Dispatch((*hostAdapter)(s), name, args)
	s.setLastStatus(status)
	return status, nil
}

func applyEnviron(env []string) {
	for _, kv := range env {
		if name, value, ok := cutKV(kv); ok {
			os.Setenv(name, value)
		}
	}
}

func clearEnviron() {
	os.Clearenv()
}

func cutKV(kv string) (string, string, bool) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:], true
		}
	}
	return "", "", false
}

// redirectBuiltinStreams opens any requested redirection targets and
// swaps them into s.stdout/s.stderr for the duration of one builtin
// call, returning a cleanup func that always runs.
func (s *Shell) redirectBuiltinStreams(n *ast.Command) (func(), error) {
	var opened []io.Closer
	cleanup := func() {
		for _, c := range opened {
			c.Close()
		}
	}

	if n.Stdout != nil {
		f, err := openForWrite(n.Stdout.String(), n.StdoutAppend)
		if err != nil {
			return cleanup, err
		}
		opened = append(opened, f)
		s.stdout = f
	}
	if n.Stderr != nil {
		f, err := openForWrite(n.Stderr.String(), n.StderrAppend)
		if err != nil {
			return cleanup, err
		}
		opened = append(opened, f)
		s.stderr = f
	}
	return cleanup, nil
}

// reportCommandNotFound prints the standard shell miss message, plus a
// fuzzy-matched suggestion when any known name matches and differs from
// the one typed.
func (s *Shell) reportCommandNotFound(name string) {
	if suggestion := suggestCommand(name); suggestion != "" && suggestion != name {
		fmt.Fprintf(s.stderr, "%s: command not found (did you mean %s?)\n", name, suggestion)
		return
	}
	fmt.Fprintf(s.stderr, "%s: command not found\n", name)
}

func openForWrite(path string, appendMode bool) (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	return os.OpenFile(path, flags, 0o644)
}

// runExternal forks and execs a single external command in its own
// process group, optionally claiming the controlling terminal, and
// waits for it the way the original's runExternal does (WUNTRACED so a
// Ctrl-Z stop is observed rather than treated as exit).
func (s *Shell) runExternal(n *ast.Command, name string, args []string, env []string, background bool) (int, error) {
	cmd := s.buildExternalCmd(n, name, args, env, background)

	if err := cmd.Start(); err != nil {
		s.reportCommandNotFound(name)
		s.setLastStatus(127)
		return 127, nil
	}

	pid := cmd.Process.Pid
	invariant.Positive(pid, "forked pid")

	j := s.jobs.Add(pid, []int{pid}, name)

	if background {
		idx, _ := s.jobs.IndexOf(j.PGID)
		fmt.Fprintf(s.stdout, "[%d] %d\n", idx, pid)
		return 0, nil
	}

	return s.waitForeground(j, pid)
}

// buildExternalCmd wires SysProcAttr the way a modern Go job-control
// shell does it: Setpgid creates the new process group, and Foreground +
// Ctty ask the kernel to make that group the terminal's foreground group
// as part of the same fork/exec transaction, which is the race-free
// replacement for the original's separate post-fork tcsetpgrp call (Go
// exposes no raw fork() to call tcsetpgrp between fork and exec).
func (s *Shell) buildExternalCmd(n *ast.Command, name string, args []string, env []string, background bool) *exec.Cmd {
	cmd := exec.Command(name, args...)
	cmd.Env = env
	cmd.Stdin = s.resolveStdin(n)
	cmd.Stdout = s.resolveStdout(n)
	cmd.Stderr = s.resolveStderr(n)

	attr := &syscall.SysProcAttr{Setpgid: true}
	if !background && s.isTTY {
		attr.Foreground = true
		attr.Ctty = 0
	}
	cmd.SysProcAttr = attr
	return cmd
}

func (s *Shell) resolveStdin(n *ast.Command) *os.File {
	if n.Stdin != nil {
		f, err := os.Open(n.Stdin.String())
		if err == nil {
			return f
		}
		fmt.Fprintf(s.stderr, "%s: %v\n", n.Stdin.String(), err)
	}
	if s.isTTY {
		return s.ttyFile
	}
	return os.Stdin
}

func (s *Shell) resolveStdout(n *ast.Command) *os.File {
	if n.Stdout != nil {
		f, err := openForWrite(n.Stdout.String(), n.StdoutAppend)
		if err == nil {
			return f
		}
		fmt.Fprintf(s.stderr, "%s: %v\n", n.Stdout.String(), err)
	}
	return os.Stdout
}

func (s *Shell) resolveStderr(n *ast.Command) *os.File {
	if n.Stderr != nil {
		f, err := openForWrite(n.Stderr.String(), n.StderrAppend)
		if err == nil {
			return f
		}
	}
	return os.Stderr
}

// waitForeground claims the terminal for j's process group, waits for a
// stop or exit, restores the shell's own foreground status, and records
// the resulting exit status the way the original's runExternal/
// runPipeline finally-blocks do.
func (s *Shell) waitForeground(j *job.Job, waitPID int) (int, error) {
	s.mu.Lock()
	s.fgPGID = j.PGID
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.fgPGID = 0
		s.mu.Unlock()
		s.reclaimTerminal()
	}()

	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(waitPID, &ws, unix.WUNTRACED, nil)
		if err == unix.EINTR {
			continue
		}
		if err == unix.ECHILD {
			return s.statusAfterECHILD(j)
		}
		if err != nil {
			return 0, &errs.JobControlError{Op: "wait4", Cause: err}
		}
		switch {
		case ws.Stopped():
			s.jobs.SetStatus(j.PGID, job.Stopped)
			idx, _ := s.jobs.IndexOf(j.PGID)
			fmt.Fprintf(s.stdout, "\n[%d]  Stopped\t%s\n", idx, j.Cmdline)
			return 128 + int(ws.StopSignal()), nil
		case ws.Exited():
			s.jobs.SetExitCode(j.PGID, ws.ExitStatus())
			s.jobs.Remove(j.PGID)
			s.setLastStatus(ws.ExitStatus())
			return ws.ExitStatus(), nil
		case ws.Signaled():
			code := 128 + int(ws.Signal())
			s.jobs.SetExitCode(j.PGID, code)
			s.jobs.Remove(j.PGID)
			s.setLastStatus(code)
			return code, nil
		}
	}
}

// statusAfterECHILD handles the race spec.md §5 calls out: the SIGCHLD
// goroutine's WNOHANG reap can beat a blocking foreground wait to the
// same child, so wait4 here sees ECHILD instead of an exit. The job's
// last recorded status and exit code, already written by reapBackground,
// are the answer in that case.
func (s *Shell) statusAfterECHILD(j *job.Job) (int, error) {
	if found, ok := s.jobs.ByPGID(j.PGID); ok {
		code := found.ExitCode
		s.jobs.Remove(j.PGID)
		s.setLastStatus(code)
		return code, nil
	}
	return s.LastStatus(), nil
}

// reclaimTerminal puts the shell's own process group back in the
// foreground after a child relinquishes it.
func (s *Shell) reclaimTerminal() {
	if !s.isTTY {
		return
	}
	if err := unix.Tcsetpgrp(s.ttyFd, int32(unix.Getpgrp())); err != nil {
		s.logger.Debug("reclaim terminal failed", "err", err)
	}
}

// installSignalRelay starts the goroutine that stands in for the
// original's POSIX signal handlers. Go cannot safely run arbitrary Go
// code inside a true async-signal handler, so os/signal.Notify plus a
// dedicated goroutine is the idiomatic replacement: the delivered signal
// becomes a channel value handled on a normal goroutine stack, and the
// forwarding policy (relay SIGINT/SIGTSTP to the foreground group,
// reap children on SIGCHLD) is identical to the original's handlers.
func (s *Shell) installSignalRelay() {
	signal.Notify(s.sigCh, syscall.SIGINT, syscall.SIGTSTP, syscall.SIGCHLD)
	go func() {
		for {
			select {
			case <-s.stop:
				signal.Stop(s.sigCh)
				return
			case sig := <-s.sigCh:
				s.handleSignal(sig)
			}
		}
	}()
}

func (s *Shell) handleSignal(sig os.Signal) {
	s.mu.Lock()
	fgPGID := s.fgPGID
	s.mu.Unlock()

	switch sig {
	case syscall.SIGINT:
		if fgPGID != 0 {
			unix.Kill(-fgPGID, syscall.SIGINT)
		}
	case syscall.SIGTSTP:
		if fgPGID != 0 {
			unix.Kill(-fgPGID, syscall.SIGTSTP)
		}
	case syscall.SIGCHLD:
		s.reapBackground()
	}
}

// reapBackground drains completed/stopped children without blocking,
// mirroring the original's sigchldHandler. Foreground children are
// normally reaped synchronously by waitForeground/waitPipeline; when this
// loop reaps one first, those waits fall back to statusAfterECHILD.
func (s *Shell) reapBackground() {
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG|unix.WUNTRACED|unix.WCONTINUED, nil)
		if err != nil || pid <= 0 {
			return
		}
		j, ok := s.jobs.ByPID(pid)
		if !ok {
			continue
		}
		switch {
		case ws.Stopped():
			s.jobs.SetStatus(j.PGID, job.Stopped)
		case ws.Exited():
			s.jobs.SetExitCode(j.PGID, ws.ExitStatus())
			s.jobs.SetStatus(j.PGID, job.Done)
		case ws.Signaled():
			s.jobs.SetExitCode(j.PGID, 128+int(ws.Signal()))
			s.jobs.SetStatus(j.PGID, job.Done)
		case ws.Continued():
			s.jobs.SetStatus(j.PGID, job.Running)
		}
	}
}
