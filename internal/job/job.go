// Package job tracks background and stopped process groups so builtins
// like jobs/fg/bg can report and resume them, grounded on the Python
// original's jobs.py JobTable (a plain list keyed by insertion order,
// looked up by 1-based index, pgid, or pid). Unlike the original (a
// plain list, single-threaded by construction), the Table here is
// guarded by a mutex: the executor's SIGCHLD goroutine and the builtin
// dispatch goroutine both touch it.
package job

import (
	"fmt"
	"sync"
)

// Status is a job's last known run state.
type Status int

const (
	Running Status = iota
	Stopped
	Done
)

func (s Status) String() string {
	switch s {
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// Job is one process group launched by the executor, foreground or
// background. It carries no index of its own — a job's [N] number is
// its position in the table's insertion order, which shifts as earlier
// jobs are reaped, matching a real shell's %N references.
type Job struct {
	PGID     int
	PIDs     []int
	Cmdline  string
	Status   Status
	ExitCode int
}

func (j *Job) String() string {
	return fmt.Sprintf("%-8s %s", j.Status, j.Cmdline)
}

// Table is a concurrency-safe, insertion-ordered registry of jobs.
type Table struct {
	mu   sync.Mutex
	jobs []*Job
}

// NewTable returns an empty job table.
func NewTable() *Table {
	return &Table{}
}

// Add registers a new job and returns it. The caller owns the returned
// pointer for in-place status updates via SetStatus/SetExitCode.
func (t *Table) Add(pgid int, pids []int, cmdline string) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	j := &Job{PGID: pgid, PIDs: append([]int(nil), pids...), Cmdline: cmdline, Status: Running}
	t.jobs = append(t.jobs, j)
	return j
}

// Remove drops the job with the given process group ID, if any, closing
// the gap it leaves so every later job's index shifts down by one.
func (t *Table) Remove(pgid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, j := range t.jobs {
		if j.PGID == pgid {
			t.jobs = append(t.jobs[:i], t.jobs[i+1:]...)
			return
		}
	}
}

// ByPGID looks up a job by its process group ID.
func (t *Table) ByPGID(pgid int) (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, j := range t.jobs {
		if j.PGID == pgid {
			return j, true
		}
	}
	return nil, false
}

// ByPID looks up the job that owns the given process ID.
func (t *Table) ByPID(pid int) (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, j := range t.jobs {
		for _, p := range j.PIDs {
			if p == pid {
				return j, true
			}
		}
	}
	return nil, false
}

// ByIndex resolves a job by its 1-based position among currently live
// jobs, in insertion order. This is the %N a user types at the prompt;
// per spec, indices shift when an earlier job is removed, so this is
// always computed fresh rather than stored on the Job.
func (t *Table) ByIndex(i int) (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 1 || i > len(t.jobs) {
		return nil, false
	}
	return t.jobs[i-1], true
}

// IndexOf returns a job's current 1-based position, for status messages
// that print "[N]" consistent with what %N would resolve to right now.
func (t *Table) IndexOf(pgid int) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, j := range t.jobs {
		if j.PGID == pgid {
			return i + 1, true
		}
	}
	return 0, false
}

// SetStatus updates a job's status by process group ID. It is a no-op if
// the job has already been removed (e.g. the parent reaped it concurrent
// with a late status report).
func (t *Table) SetStatus(pgid int, status Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, j := range t.jobs {
		if j.PGID == pgid {
			j.Status = status
			return
		}
	}
}

// SetExitCode records a finished job's exit status. The foreground-wait
// paths read this back when their own waitpid races SIGCHLD's reap and
// observes ECHILD (spec: "tolerate ECHILD as child already reaped, read
// last status from JobTable").
func (t *Table) SetExitCode(pgid, code int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, j := range t.jobs {
		if j.PGID == pgid {
			j.ExitCode = code
			return
		}
	}
}

// List returns a snapshot of all tracked jobs in insertion order.
func (t *Table) List() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Job, len(t.jobs))
	copy(out, t.jobs)
	return out
}

// Last returns the most recently added job still tracked, the target of
// a bare `fg`/`bg` with no job argument (original: `get_by_index(len(jobs))`).
func (t *Table) Last() (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.jobs) == 0 {
		return nil, false
	}
	return t.jobs[len(t.jobs)-1], true
}

// ReapDone removes every job currently marked Done and returns them, so
// the caller can print "Done" notices exactly once per job.
func (t *Table) ReapDone() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	var done []*Job
	live := t.jobs[:0:0]
	for _, j := range t.jobs {
		if j.Status == Done {
			done = append(done, j)
		} else {
			live = append(live, j)
		}
	}
	t.jobs = live
	return done
}
