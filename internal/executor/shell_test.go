package executor

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/rayshell/rayshell/internal/ast"
	"github.com/rayshell/rayshell/internal/job"
)

// stopJob delivers SIGSTOP to a job's whole process group; like the
// SIGTSTP a terminal driver sends on Ctrl-Z, it stops the job, but it
// cannot be caught or ignored.
func stopJob(j *job.Job) error {
	return unix.Kill(-j.PGID, syscall.SIGSTOP)
}

func echoCmd() *ast.Command {
	return &ast.Command{Name: ast.Literal("echo"), Args: []ast.Word{ast.Literal("hi")}}
}

func failingCdCmd() *ast.Command {
	return &ast.Command{Name: ast.Literal("cd"), Args: []ast.Word{ast.Literal("/no/such/path/rayshell-test")}}
}

func newTestShell(t *testing.T) *Shell {
	t.Helper()
	sh := New()
	t.Cleanup(sh.Close)
	return sh
}

func TestRunAssignmentSetsEnv(t *testing.T) {
	sh := newTestShell(t)
	status, err := sh.Run(&ast.Assignment{Name: "RAYSHELL_TEST_VAR", Value: ptr(ast.Literal("42"))})
	require.NoError(t, err)
	assert.Equal(t, 0, status)
	assert.Equal(t, "42", os.Getenv("RAYSHELL_TEST_VAR"))
}

func TestRunIfTakesConsequentStatusNotConditionStatus(t *testing.T) {
	sh := newTestShell(t)
	node := &ast.If{Condition: echoCmd(), Consequent: failingCdCmd()}
	status, err := sh.Run(node)
	require.NoError(t, err)
	assert.Equal(t, 1, status, "status should be the consequent's status, not the condition's 0")
}

func TestRunIfFalseWithNoElseReturnsZero(t *testing.T) {
	sh := newTestShell(t)
	node := &ast.If{Condition: failingCdCmd(), Consequent: echoCmd()}
	status, err := sh.Run(node)
	require.NoError(t, err)
	assert.Equal(t, 0, status)
}

func TestRunBinaryAndShortCircuits(t *testing.T) {
	sh := newTestShell(t)
	node := &ast.BinaryOp{Op: "&&", Left: failingCdCmd(), Right: echoCmd()}
	status, err := sh.Run(node)
	require.NoError(t, err)
	assert.Equal(t, 1, status)
}

func TestRunBinarySemicolonReturnsRightStatus(t *testing.T) {
	sh := newTestShell(t)
	node := &ast.BinaryOp{Op: ";", Left: echoCmd(), Right: failingCdCmd()}
	status, err := sh.Run(node)
	require.NoError(t, err)
	assert.Equal(t, 1, status)
}

func TestRunBlockReturnsLastStatus(t *testing.T) {
	sh := newTestShell(t)
	node := &ast.Block{Statements: []ast.Node{echoCmd(), failingCdCmd()}}
	status, err := sh.Run(node)
	require.NoError(t, err)
	assert.Equal(t, 1, status)
}

func TestRunForNotImplemented(t *testing.T) {
	sh := newTestShell(t)
	_, err := sh.Run(&ast.For{Var: "x", Iterable: echoCmd(), Body: echoCmd()})
	assert.Error(t, err)
}

// TestRunPipelineExitStatusIsLastStage covers spec.md §8 scenario 1: a
// pipeline's status is the last stage's, even when an earlier stage fails.
func TestRunPipelineExitStatusIsLastStage(t *testing.T) {
	sh := newTestShell(t)
	node := &ast.Pipeline{Commands: []*ast.Command{
		{Name: ast.Literal("false")},
		{Name: ast.Literal("true")},
	}}
	status, err := sh.Run(node)
	require.NoError(t, err)
	assert.Equal(t, 0, status, "pipeline status should be the last stage's (true), not the first's (false)")
}

func TestRunPipelineExitStatusPropagatesFailureFromLastStage(t *testing.T) {
	sh := newTestShell(t)
	node := &ast.Pipeline{Commands: []*ast.Command{
		{Name: ast.Literal("true")},
		{Name: ast.Literal("false")},
	}}
	status, err := sh.Run(node)
	require.NoError(t, err)
	assert.Equal(t, 1, status)
}

// TestRunCommandRedirectsStdout covers spec.md §8 scenario 2: output
// redirection writes to the named file instead of the shell's own stdout.
func TestRunCommandRedirectsStdout(t *testing.T) {
	sh := newTestShell(t)
	path := filepath.Join(t.TempDir(), "out.txt")

	node := &ast.Command{
		Name:   ast.Literal("echo"),
		Args:   []ast.Word{ast.Literal("redirected")},
		Stdout: ptr(ast.Literal(path)),
	}
	status, err := sh.Run(node)
	require.NoError(t, err)
	require.Equal(t, 0, status)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "redirected\n", string(got))
}

// TestRunCommandAppendVsTruncate covers spec.md §8 scenario 3: a second
// run with StdoutAppend true keeps the first run's content; without it,
// the file is truncated.
func TestRunCommandAppendVsTruncate(t *testing.T) {
	sh := newTestShell(t)
	path := filepath.Join(t.TempDir(), "out.txt")

	run := func(line string, appendMode bool) {
		node := &ast.Command{
			Name:         ast.Literal("echo"),
			Args:         []ast.Word{ast.Literal(line)},
			Stdout:       ptr(ast.Literal(path)),
			StdoutAppend: appendMode,
		}
		status, err := sh.Run(node)
		require.NoError(t, err)
		require.Equal(t, 0, status)
	}

	run("first", false)
	run("second", true)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(got), "append run should keep the truncate run's content")

	run("third", false)
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "third\n", string(got), "a non-append run should truncate whatever was there before")
}

// TestRunBackgroundCommandRegistersJob covers spec.md §8 scenario 4: a
// backgrounded command returns immediately with status 0 and shows up in
// the job table until it finishes and a later statement completes.
func TestRunBackgroundCommandRegistersJob(t *testing.T) {
	sh := newTestShell(t)
	node := &ast.Command{
		Name:       ast.Literal("sleep"),
		Args:       []ast.Word{ast.Literal("0.2")},
		Background: true,
	}
	status, err := sh.Run(node)
	require.NoError(t, err)
	assert.Equal(t, 0, status)

	j, ok := sh.jobs.ByIndex(1)
	require.True(t, ok, "background job should be in the table right after launch")
	assert.Contains(t, j.Cmdline, "sleep")

	require.Eventually(t, func() bool {
		sh.Run(nil)
		_, stillThere := sh.jobs.ByPGID(j.PGID)
		return !stillThere
	}, 2*time.Second, 20*time.Millisecond, "background job should be reaped and removed once it exits and ReapDone runs")
}

// TestStopAndForegroundResumesJob covers spec.md §8 scenario 5: a stopped
// job resumes and runs to completion when brought to the foreground.
func TestStopAndForegroundResumesJob(t *testing.T) {
	sh := newTestShell(t)
	node := &ast.Command{
		Name:       ast.Literal("sleep"),
		Args:       []ast.Word{ast.Literal("1")},
		Background: true,
	}
	_, err := sh.Run(node)
	require.NoError(t, err)

	j, ok := sh.jobs.ByIndex(1)
	require.True(t, ok)

	require.NoError(t, stopJob(j))
	require.Eventually(t, func() bool {
		found, ok := sh.jobs.ByPGID(j.PGID)
		return ok && found.Status == job.Stopped
	}, time.Second, 10*time.Millisecond, "job should be marked Stopped once SIGSTOP is delivered and reaped")

	status, err := (*hostAdapter)(sh).ForegroundJob(j)
	require.NoError(t, err)
	assert.Equal(t, 0, status)

	_, stillThere := sh.jobs.ByPGID(j.PGID)
	assert.False(t, stillThere, "job should be removed from the table once it runs to completion in the foreground")
}

func ptr(w ast.Word) *ast.Word { return &w }
