package fio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soypat/go-fortran-io/iostat"
)

func TestKeywordMatchingIsExact(t *testing.T) {
	rt := newTestRuntime(t)
	tests := []struct {
		value string
		ok    bool
	}{
		{"SEQUENTIAL", true},
		{"sequential", false}, // no case folding
		{"SEQ", false},        // no abbreviations
		{"SEQUENTIAL ", false},
	}
	for _, tt := range tests {
		open := rt.BeginOpenUnit(50, "t.f90", 1)
		open.SetAccess(tt.value)
		stat := open.EndIoStatement()
		if tt.ok && stat != iostat.Ok {
			t.Errorf("SetAccess(%q): stat = %v, want Ok", tt.value, stat)
		}
		if !tt.ok && stat != iostat.ErrorInKeyword {
			t.Errorf("SetAccess(%q): stat = %v, want ErrorInKeyword", tt.value, stat)
		}
		rt.BeginClose(50, "t.f90", 2).EndIoStatement()
	}
}

func TestBadKeywordSuggestion(t *testing.T) {
	rt := newTestRuntime(t)
	open := rt.BeginOpenUnit(51, "t.f90", 1)
	open.SetAccess("SEQENTIAL")
	msg := make([]byte, 80)
	open.GetIoMsg(msg)
	if !strings.Contains(string(msg), "did you mean 'SEQUENTIAL'?") {
		t.Errorf("diagnostic = %q, want a SEQUENTIAL suggestion", msg)
	}
	open.EndIoStatement()
}

func TestSetReclValidation(t *testing.T) {
	rt := newTestRuntime(t)
	open := rt.BeginOpenUnit(52, "t.f90", 1)
	if open.SetRecl(0) {
		t.Error("SetRecl(0) reported success")
	}
	if stat := open.EndIoStatement(); stat != iostat.OpenBadRecl {
		t.Errorf("EndIoStatement = %v, want OpenBadRecl", stat)
	}
}

func TestDirectAccessRequiresRecl(t *testing.T) {
	rt := newTestRuntime(t)
	open := rt.BeginOpenUnit(53, "t.f90", 1)
	open.SetAccess("DIRECT")
	if stat := open.EndIoStatement(); stat != iostat.OpenBadRecl {
		t.Errorf("EndIoStatement = %v, want OpenBadRecl", stat)
	}
}

func TestReclChangeOnOpenUnitRejected(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 54
	open := rt.BeginOpenUnit(unit, "t.f90", 1)
	open.SetAccess("DIRECT")
	open.SetRecl(16)
	endOk(t, open)

	reopen := rt.BeginOpenUnit(unit, "t.f90", 2)
	if reopen.SetRecl(32) {
		t.Error("changing RECL= on an open unit reported success")
	}
	if stat := reopen.EndIoStatement(); !stat.IsError() {
		t.Errorf("EndIoStatement = %v, want an error", stat)
	}
}

func TestReclReopenSameValueSucceeds(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 66
	open := rt.BeginOpenUnit(unit, "t.f90", 1)
	open.SetAccess("DIRECT")
	open.SetRecl(16)
	endOk(t, open)

	reopen := rt.BeginOpenUnit(unit, "t.f90", 2)
	if !reopen.SetRecl(16) {
		t.Error("re-opening with the unchanged RECL= reported failure")
	}
	endOk(t, reopen)
}

func TestFailedReopenLeavesConnectionUntouched(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 67
	open := rt.BeginOpenUnit(unit, "t.f90", 1)
	open.SetAction("READWRITE")
	endOk(t, open)

	reopen := rt.BeginOpenUnit(unit, "t.f90", 2)
	reopen.SetRecl(64)
	reopen.SetEncoding("UTF-8")
	reopen.SetAsynchronous("YES")
	reopen.SetAction("READ") // rejected, the OPEN fails
	if stat := reopen.EndIoStatement(); !stat.IsError() {
		t.Fatalf("EndIoStatement = %v, want an error", stat)
	}

	u := rt.LookUp(unit)
	if u.openRecl != 0 || u.isUTF8 || u.mayAsync {
		t.Errorf("failed OPEN changed the connection: recl=%d utf8=%v async=%v",
			u.openRecl, u.isUTF8, u.mayAsync)
	}
}

func TestActionChangeOnOpenUnitRejected(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 55
	open := rt.BeginOpenUnit(unit, "t.f90", 1)
	open.SetAction("READWRITE")
	endOk(t, open)

	reopen := rt.BeginOpenUnit(unit, "t.f90", 2)
	reopen.SetAction("READ")
	if stat := reopen.EndIoStatement(); !stat.IsError() {
		t.Errorf("EndIoStatement = %v, want an error", stat)
	}
}

func TestFirstErrorOutlivesLaterKeywordError(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 68
	open := rt.BeginOpenUnit(unit, "t.f90", 1)
	open.SetAccess("DIRECT")
	open.SetRecl(16)
	endOk(t, open)

	// The Begin itself fails; a keyword error on the already-failed
	// statement must not replace the retained condition.
	ck := rt.BeginExternalListOutput(unit, "t.f90", 2)
	ck.SetBlank("BOGUS")
	if stat := ck.EndIoStatement(); stat != iostat.ListIoOnDirectAccessUnit {
		t.Errorf("EndIoStatement = %v, want ListIoOnDirectAccessUnit", stat)
	}
}

func TestWriteToReadOnlyUnit(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 56
	open := rt.BeginOpenUnit(unit, "t.f90", 1)
	open.SetAction("READ")
	endOk(t, open)

	ck := rt.BeginExternalListOutput(unit, "t.f90", 2)
	if stat := ck.EndIoStatement(); stat != iostat.WriteToReadOnly {
		t.Errorf("EndIoStatement = %v, want WriteToReadOnly", stat)
	}
}

func TestGetNewUnit(t *testing.T) {
	rt := newTestRuntime(t)
	open := rt.BeginOpenNewUnit("t.f90", 1)
	result := 99
	if !open.GetNewUnit(&result) {
		t.Fatal("GetNewUnit failed for a clean OPEN")
	}
	if result >= 0 {
		t.Errorf("NEWUNIT = %d, want a reserved negative number", result)
	}
	endOk(t, open)
	if rt.LookUp(result) == nil {
		t.Error("the allocated unit is not in the table")
	}
}

func TestGetNewUnitLeavesResultOnFailure(t *testing.T) {
	rt := newTestRuntime(t)
	open := rt.BeginOpenNewUnit("t.f90", 1)
	open.SetStatus("OLD") // OLD without FILE= on an unconnected unit fails
	result := 99
	if open.GetNewUnit(&result) {
		t.Error("GetNewUnit reported success for a failed OPEN")
	}
	if result != 99 {
		t.Errorf("result = %d, want untouched 99", result)
	}
	open.EndIoStatement()
}

func TestSetterAfterOpenCompletedCrashes(t *testing.T) {
	rt := newTestRuntime(t)
	open := rt.BeginOpenNewUnit("t.f90", 1)
	var unit int
	open.GetNewUnit(&unit)
	expectCrash(t, "completed", func() {
		open.SetAccess("STREAM")
	})
}

func TestOpenSetterOnTransferStmtCrashes(t *testing.T) {
	rt := newTestRuntime(t)
	ck := rt.BeginExternalListOutput(57, "t.f90", 1)
	expectCrash(t, "not in an OPEN statement", func() {
		ck.SetForm("FORMATTED")
	})
}

func TestSetStatusOutsideOpenOrCloseCrashes(t *testing.T) {
	rt := newTestRuntime(t)
	ck := rt.BeginExternalListOutput(58, "t.f90", 1)
	expectCrash(t, "OPEN or CLOSE", func() {
		ck.SetStatus("KEEP")
	})
}

func TestCloseUnconnectedUnitIsNoop(t *testing.T) {
	rt := newTestRuntime(t)
	ck := rt.BeginClose(123, "t.f90", 1)
	if !ck.SetStatus("DELETE") {
		t.Error("SetStatus on a no-op CLOSE reported failure")
	}
	if stat := ck.EndIoStatement(); stat != iostat.Ok {
		t.Errorf("EndIoStatement = %v, want Ok", stat)
	}
}

func TestCloseRemovesUnitFromTable(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 59
	endOk(t, rt.BeginOpenUnit(unit, "t.f90", 1))
	if rt.LookUp(unit) == nil {
		t.Fatal("unit missing after OPEN")
	}
	endOk(t, rt.BeginClose(unit, "t.f90", 2))
	if rt.LookUp(unit) != nil {
		t.Error("unit still in the table after CLOSE")
	}
}

func TestOpenStatusFiles(t *testing.T) {
	rt := newTestRuntime(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "data.dat")

	// NEW creates; a second NEW on the same path fails.
	open := rt.BeginOpenUnit(60, "t.f90", 1)
	open.SetFile(path)
	open.SetStatus("NEW")
	endOk(t, open)
	endOk(t, rt.BeginClose(60, "t.f90", 2))

	open = rt.BeginOpenUnit(60, "t.f90", 3)
	open.SetFile(path)
	open.SetStatus("NEW")
	if stat := open.EndIoStatement(); !stat.IsError() {
		t.Errorf("STATUS='NEW' on an existing file = %v, want an error", stat)
	}

	// OLD requires the file to exist.
	open = rt.BeginOpenUnit(61, "t.f90", 4)
	open.SetFile(filepath.Join(dir, "absent.dat"))
	open.SetStatus("OLD")
	if stat := open.EndIoStatement(); !stat.IsError() {
		t.Errorf("STATUS='OLD' on a missing file = %v, want an error", stat)
	}

	// CLOSE(STATUS='DELETE') removes the file.
	open = rt.BeginOpenUnit(62, "t.f90", 5)
	open.SetFile(path)
	open.SetStatus("OLD")
	endOk(t, open)
	cl := rt.BeginClose(62, "t.f90", 6)
	cl.SetStatus("DELETE")
	endOk(t, cl)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file survived CLOSE(STATUS='DELETE')")
	}
}

func TestScratchFileLifetime(t *testing.T) {
	dir := t.TempDir()
	rt := NewRuntime(
		WithEnv(RuntimeEnv{ScratchDir: dir}),
		WithCrashHandler(func(msg string) { panic(crashErr(msg)) }),
	)
	open := rt.BeginOpenNewUnit("t.f90", 1)
	open.SetStatus("SCRATCH")
	var unit int
	if !open.GetNewUnit(&unit) {
		t.Fatal("scratch OPEN failed")
	}
	endOk(t, open)

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("scratch dir entries = %v, err = %v", entries, err)
	}

	endOk(t, rt.BeginClose(unit, "t.f90", 2))
	entries, _ = os.ReadDir(dir)
	if len(entries) != 0 {
		t.Error("scratch file survived CLOSE")
	}
}

func TestScratchRejectsFileName(t *testing.T) {
	rt := newTestRuntime(t)
	open := rt.BeginOpenUnit(63, "t.f90", 1)
	open.SetStatus("SCRATCH")
	open.SetFile("named.dat")
	if stat := open.EndIoStatement(); !stat.IsError() {
		t.Errorf("SCRATCH with FILE= = %v, want an error", stat)
	}
}

func TestOpenModesPersistOnConnection(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 64
	open := rt.BeginOpenUnit(unit, "t.f90", 1)
	open.SetDelim("QUOTE")
	endOk(t, open)

	ck := rt.BeginExternalListOutput(unit, "t.f90", 2)
	ck.OutputCharacter(`say "hi"`)
	endOk(t, ck)

	rewindUnit(t, rt, unit)
	in := rt.BeginExternalListInput(unit, "t.f90", 3)
	got := make([]byte, 8)
	in.InputCharacter(got)
	endOk(t, in)
	if string(got) != `say "hi"` {
		t.Errorf("read back %q, want the delimited value undone", got)
	}
}

func TestSetPosRequiresStreamAccess(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 65
	ck := rt.BeginExternalListOutput(unit, "t.f90", 1) // sequential
	if ck.SetPos(1) {
		t.Error("SetPos on a sequential unit reported success")
	}
	if stat := ck.EndIoStatement(); !stat.IsError() {
		t.Errorf("EndIoStatement = %v, want an error", stat)
	}
}

func TestFlushStatuses(t *testing.T) {
	rt := newTestRuntime(t)
	rt.BeginExternalListOutput(66, "t.f90", 1).EndIoStatement()
	if stat := rt.BeginFlush(66, "t.f90", 2).EndIoStatement(); stat != iostat.Ok {
		t.Errorf("FLUSH of a connected unit = %v, want Ok", stat)
	}
	if stat := rt.BeginFlush(67, "t.f90", 3).EndIoStatement(); stat != iostat.Ok {
		t.Errorf("FLUSH of a valid unconnected unit = %v, want Ok", stat)
	}
	if stat := rt.BeginFlush(-3, "t.f90", 4).EndIoStatement(); stat != iostat.BadFlushUnit {
		t.Errorf("FLUSH of an invalid unit = %v, want BadFlushUnit", stat)
	}
}

func TestBackspaceStatuses(t *testing.T) {
	rt := newTestRuntime(t)
	if stat := rt.BeginBackspace(68, "t.f90", 1).EndIoStatement(); stat != iostat.BadBackspaceUnit {
		t.Errorf("BACKSPACE of an unconnected unit = %v, want BadBackspaceUnit", stat)
	}
}
