package job

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAddAndByPGID(t *testing.T) {
	tbl := NewTable()
	j := tbl.Add(100, []int{100, 101}, "cat | grep x")
	got, ok := tbl.ByPGID(100)
	if !ok || got != j {
		t.Errorf("ByPGID(100) = %v, %v", got, ok)
	}
}

func TestByPID(t *testing.T) {
	tbl := NewTable()
	j := tbl.Add(200, []int{200, 201}, "pipeline")
	got, ok := tbl.ByPID(201)
	if !ok || got != j {
		t.Errorf("ByPID(201) = %v, %v", got, ok)
	}
	if _, ok := tbl.ByPID(999); ok {
		t.Error("ByPID(999) found a job that was never added")
	}
}

func TestByIndexReflectsInsertionOrder(t *testing.T) {
	tbl := NewTable()
	j1 := tbl.Add(1, []int{1}, "a")
	j2 := tbl.Add(2, []int{2}, "b")

	got1, ok := tbl.ByIndex(1)
	if !ok || got1 != j1 {
		t.Errorf("ByIndex(1) = %v, %v, want %v", got1, ok, j1)
	}
	got2, ok := tbl.ByIndex(2)
	if !ok || got2 != j2 {
		t.Errorf("ByIndex(2) = %v, %v, want %v", got2, ok, j2)
	}
	if _, ok := tbl.ByIndex(3); ok {
		t.Error("ByIndex(3) found a job that doesn't exist")
	}
}

// TestByIndexShiftsAfterRemove is the spec-mandated behavior: "indices
// shift when earlier jobs are removed" — %2 before a removal can become
// %1 after it, since indices are never stored on the Job itself.
func TestByIndexShiftsAfterRemove(t *testing.T) {
	tbl := NewTable()
	j1 := tbl.Add(1, []int{1}, "a")
	j2 := tbl.Add(2, []int{2}, "b")

	tbl.Remove(j1.PGID)

	got, ok := tbl.ByIndex(1)
	if !ok || got != j2 {
		t.Errorf("ByIndex(1) after removing the first job = %v, %v, want %v", got, ok, j2)
	}
}

func TestIndexOf(t *testing.T) {
	tbl := NewTable()
	tbl.Add(1, []int{1}, "a")
	j2 := tbl.Add(2, []int{2}, "b")

	idx, ok := tbl.IndexOf(j2.PGID)
	if !ok || idx != 2 {
		t.Errorf("IndexOf(j2) = %d, %v, want 2, true", idx, ok)
	}

	tbl.Remove(1)
	idx, ok = tbl.IndexOf(j2.PGID)
	if !ok || idx != 1 {
		t.Errorf("IndexOf(j2) after removing job 1 = %d, %v, want 1, true", idx, ok)
	}
}

func TestRemove(t *testing.T) {
	tbl := NewTable()
	j := tbl.Add(5, []int{5}, "sleep 10")
	tbl.Remove(j.PGID)
	if _, ok := tbl.ByPGID(j.PGID); ok {
		t.Error("job still present after Remove")
	}
}

func TestSetStatusAndList(t *testing.T) {
	tbl := NewTable()
	j1 := tbl.Add(1, []int{1}, "a")
	tbl.Add(2, []int{2}, "b")
	tbl.SetStatus(j1.PGID, Stopped)

	want := []*Job{
		{PGID: 1, PIDs: []int{1}, Cmdline: "a", Status: Stopped},
		{PGID: 2, PIDs: []int{2}, Cmdline: "b", Status: Running},
	}
	if diff := cmp.Diff(want, tbl.List()); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestSetExitCode(t *testing.T) {
	tbl := NewTable()
	j := tbl.Add(9, []int{9}, "false")
	tbl.SetStatus(j.PGID, Done)
	tbl.SetExitCode(j.PGID, 1)

	if j.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", j.ExitCode)
	}
}

func TestLast(t *testing.T) {
	tbl := NewTable()
	tbl.Add(1, []int{1}, "a")
	j2 := tbl.Add(2, []int{2}, "b")
	got, ok := tbl.Last()
	if !ok || got != j2 {
		t.Errorf("Last() = %v, %v, want %v", got, ok, j2)
	}
}

func TestReapDone(t *testing.T) {
	tbl := NewTable()
	j1 := tbl.Add(1, []int{1}, "a")
	tbl.Add(2, []int{2}, "b")
	tbl.SetStatus(j1.PGID, Done)

	done := tbl.ReapDone()
	if len(done) != 1 || done[0] != j1 {
		t.Fatalf("ReapDone() = %+v", done)
	}
	if _, ok := tbl.ByPGID(j1.PGID); ok {
		t.Error("done job still present after ReapDone")
	}
	if len(tbl.List()) != 1 {
		t.Errorf("remaining jobs = %d, want 1", len(tbl.List()))
	}
}
