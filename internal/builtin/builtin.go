// Package builtin implements the commands the executor runs in-process
// rather than forking, grounded on the original's BuiltinFns dispatch
// table. A Host is the executor's own job table, environment, and
// stream state; builtins never touch the OS directly so they stay
// testable against a fake Host.
package builtin

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rayshell/rayshell/internal/job"
)

// Host is everything a builtin needs from the shell that hosts it.
type Host interface {
	Stdout() io.Writer
	Stderr() io.Writer

	Getenv(name string) string
	Setenv(name, value string) error
	Unsetenv(name string) error

	Cwd() string
	Chdir(path string) error

	Jobs() *job.Table
	ForegroundJob(j *job.Job) (int, error)
	BackgroundJob(j *job.Job) error

	History() []string
	Exit(code int)
}

// Fn is a builtin's entry point. It returns the command's exit status.
type Fn func(h Host, args []string) int

var registry = map[string]Fn{
	"cd":      cd,
	"jump":    cd,
	"pwd":     pwd,
	"cwd":     pwd,
	"echo":    echo,
	"print":   echo,
	"disp":    echo,
	"hi":      hi,
	"jobs":    jobsCmd,
	"fg":      fg,
	"bg":      bg,
	"history": history,
	"exit":    exitCmd,
	"quit":    exitCmd,
	"export":  export,
	"unset":   unset,
}

// IsBuiltin reports whether name is handled in-process.
func IsBuiltin(name string) bool {
	_, ok := registry[name]
	return ok
}

// Names lists every recognized builtin name, including aliases, for the
// executor's command-not-found suggestion search.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}

// Dispatch runs the named builtin. The caller must check IsBuiltin first.
func Dispatch(h Host, name string, args []string) int {
	fn, ok := registry[name]
	if !ok {
		return 0
	}
	return fn(h, args)
}

func cd(h Host, args []string) int {
	var target string
	switch {
	case len(args) == 0:
		target = h.Getenv("HOME")
	case args[0] == "-":
		old := h.Getenv("OLDPWD")
		if old == "" {
			fmt.Fprintln(h.Stderr(), "cd: OLDPWD not set")
			return 1
		}
		target = old
	default:
		target = args[0]
	}

	prev := h.Cwd()
	if err := h.Chdir(target); err != nil {
		fmt.Fprintf(h.Stderr(), "cd: %v\n", err)
		return 1
	}
	h.Setenv("OLDPWD", prev)
	h.Setenv("PWD", h.Cwd())
	fmt.Fprintln(h.Stdout(), h.Cwd())
	return 0
}

func pwd(h Host, _ []string) int {
	fmt.Fprintln(h.Stdout(), h.Cwd())
	return 0
}

func echo(h Host, args []string) int {
	fmt.Fprintln(h.Stdout(), strings.Join(args, " "))
	return 0
}

func hi(h Host, _ []string) int {
	fmt.Fprintln(h.Stdout(), "hey, I don't talk much. I just execute commands.")
	return 0
}

// jobsCmd prints every live job numbered by its current position, the
// same enumerate(jt.list(), start=1) the original's handle_jobs uses —
// the number shown here is exactly what %N resolves to right now.
func jobsCmd(h Host, _ []string) int {
	for i, j := range h.Jobs().List() {
		fmt.Fprintf(h.Stdout(), "[%d]  %s\n", i+1, j)
	}
	return 0
}

// resolveJobArg resolves a %N argument (or, bare, the highest-index
// live job — the original's `get_by_index(len(jt.list()))`) to a job.
// The index is always looked up fresh against the table's current
// order, since it shifts whenever an earlier job is reaped.
func resolveJobArg(h Host, args []string) (*job.Job, error) {
	if len(args) == 0 {
		j, ok := h.Jobs().Last()
		if !ok {
			return nil, fmt.Errorf("no current job")
		}
		return j, nil
	}
	idx, err := strconv.Atoi(strings.TrimPrefix(args[0], "%"))
	if err != nil {
		return nil, fmt.Errorf("usage: %%N")
	}
	j, ok := h.Jobs().ByIndex(idx)
	if !ok {
		return nil, fmt.Errorf("%s: no such job", args[0])
	}
	return j, nil
}

func fg(h Host, args []string) int {
	if len(h.Jobs().List()) == 0 {
		fmt.Fprintln(h.Stderr(), "fg: no current job")
		return 1
	}
	j, err := resolveJobArg(h, args)
	if err != nil {
		fmt.Fprintf(h.Stderr(), "fg: %v\n", err)
		return 1
	}
	status, err := h.ForegroundJob(j)
	if err != nil {
		fmt.Fprintf(h.Stderr(), "fg: %v\n", err)
		return 1
	}
	return status
}

func bg(h Host, args []string) int {
	if len(h.Jobs().List()) == 0 {
		fmt.Fprintln(h.Stderr(), "bg: no current job")
		return 1
	}
	j, err := resolveJobArg(h, args)
	if err != nil {
		fmt.Fprintf(h.Stderr(), "bg: %v\n", err)
		return 1
	}
	if err := h.BackgroundJob(j); err != nil {
		fmt.Fprintf(h.Stderr(), "bg: %v\n", err)
		return 1
	}
	idx, _ := h.Jobs().IndexOf(j.PGID)
	fmt.Fprintf(h.Stdout(), "[%d] %s &\n", idx, j.Cmdline)
	return 0
}

func history(h Host, _ []string) int {
	for i, line := range h.History() {
		fmt.Fprintf(h.Stdout(), "%4d  %s\n", i+1, line)
	}
	return 0
}

func exitCmd(h Host, args []string) int {
	code := 0
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			code = n
		}
	}
	h.Exit(code)
	return code
}

func export(h Host, args []string) int {
	for _, a := range args {
		name, value, found := strings.Cut(a, "=")
		if !found {
			continue
		}
		if err := h.Setenv(name, value); err != nil {
			fmt.Fprintf(h.Stderr(), "export: %v\n", err)
			return 1
		}
	}
	return 0
}

func unset(h Host, args []string) int {
	for _, name := range args {
		if err := h.Unsetenv(name); err != nil {
			fmt.Fprintf(h.Stderr(), "unset: %v\n", err)
			return 1
		}
	}
	return 0
}
