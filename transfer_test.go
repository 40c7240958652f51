package fio

import (
	"strings"
	"testing"

	"github.com/soypat/go-fortran-io/descriptor"
	"github.com/soypat/go-fortran-io/iostat"
)

func endOk(t *testing.T, ck *Cookie) {
	t.Helper()
	if stat := ck.EndIoStatement(); stat != iostat.Ok {
		t.Fatalf("EndIoStatement = %v (%s), want Ok", stat, stat.Msg())
	}
}

func rewindUnit(t *testing.T, rt *Runtime, unit int) {
	t.Helper()
	endOk(t, rt.BeginRewind(unit, "t.f90", 1))
}

func TestInternalListRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)
	buf := make([]byte, 32)
	ck := rt.BeginInternalListOutput(buf, "t.f90", 1)
	if !ck.OutputInteger64(123) {
		t.Fatal("OutputInteger64 returned false")
	}
	if !ck.OutputReal64(2.5) {
		t.Fatal("OutputReal64 returned false")
	}
	if !ck.OutputLogical(true) {
		t.Fatal("OutputLogical returned false")
	}
	endOk(t, ck)
	if got := string(buf); !strings.HasPrefix(got, " 123 2.5 T") {
		t.Fatalf("internal record = %q", got)
	}
	if !strings.HasSuffix(string(buf), " ") {
		t.Error("unused tail of the internal record was not blank-filled")
	}

	in := rt.BeginInternalListInput(string(buf), "t.f90", 2)
	var n int64
	var x float64
	var b bool
	if !in.InputInteger(&n, 8) || n != 123 {
		t.Errorf("InputInteger: got %d", n)
	}
	if !in.InputReal64(&x) || x != 2.5 {
		t.Errorf("InputReal64: got %v", x)
	}
	if !in.InputLogical(&b) || !b {
		t.Errorf("InputLogical: got %v", b)
	}
	endOk(t, in)
}

func TestInternalOutputOverflowIsEor(t *testing.T) {
	rt := newTestRuntime(t)
	buf := make([]byte, 4)
	ck := rt.BeginInternalListOutput(buf, "t.f90", 1)
	ck.OutputInteger64(123)
	if ck.OutputInteger64(456789) {
		t.Error("overflowing emit reported success")
	}
	if stat := ck.EndIoStatement(); stat != iostat.Eor {
		t.Errorf("EndIoStatement = %v, want Eor", stat)
	}
}

func TestInternalInputExhaustedIsEnd(t *testing.T) {
	rt := newTestRuntime(t)
	ck := rt.BeginInternalListInput(" 7", "t.f90", 1)
	var n int64
	if !ck.InputInteger(&n, 8) {
		t.Fatal("first item failed")
	}
	if ck.InputInteger(&n, 8) {
		t.Error("item past the end of the record reported success")
	}
	if stat := ck.EndIoStatement(); stat != iostat.End {
		t.Errorf("EndIoStatement = %v, want End", stat)
	}
}

func TestInternalArrayOutput(t *testing.T) {
	rt := newTestRuntime(t)
	store := make([]byte, 16)
	d := descriptor.EstablishArray(descriptor.Character, 1, store, len(store))
	ck := rt.BeginInternalArrayListOutput(d, "t.f90", 1)
	ck.OutputInteger32(-9)
	endOk(t, ck)
	if got := string(store); !strings.HasPrefix(got, " -9") {
		t.Errorf("array record = %q", got)
	}
}

func TestExternalListRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 20
	ck := rt.BeginExternalListOutput(unit, "t.f90", 1)
	ck.OutputInteger32(42)
	ck.OutputReal32(1.5)
	endOk(t, ck)

	rewindUnit(t, rt, unit)
	in := rt.BeginExternalListInput(unit, "t.f90", 2)
	var n int64
	var x float32
	if !in.InputInteger(&n, 4) || n != 42 {
		t.Errorf("InputInteger: got %d", n)
	}
	if !in.InputReal32(&x) || x != 1.5 {
		t.Errorf("InputReal32: got %v", x)
	}
	endOk(t, in)
}

func TestExternalReadPastEndfile(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 21
	ck := rt.BeginExternalListOutput(unit, "t.f90", 1)
	ck.OutputInteger32(1)
	endOk(t, ck)

	rewindUnit(t, rt, unit)
	in := rt.BeginExternalListInput(unit, "t.f90", 2)
	var n int64
	in.InputInteger(&n, 4)
	endOk(t, in)

	in = rt.BeginExternalListInput(unit, "t.f90", 3)
	if in.InputInteger(&n, 4) {
		t.Error("read past the last record reported success")
	}
	if stat := in.EndIoStatement(); stat != iostat.End {
		t.Errorf("EndIoStatement = %v, want End", stat)
	}
}

func TestNonAdvancingOutputExtendsRecord(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 22
	ck := rt.BeginExternalListOutput(unit, "t.f90", 1)
	if !ck.SetAdvance("NO") {
		t.Fatal("SetAdvance(NO) failed")
	}
	ck.OutputCharacter("AB")
	endOk(t, ck)

	ck = rt.BeginExternalListOutput(unit, "t.f90", 2)
	ck.OutputCharacter("CD")
	endOk(t, ck)

	rewindUnit(t, rt, unit)
	in := rt.BeginExternalListInput(unit, "t.f90", 3)
	got := make([]byte, 4)
	if !in.InputCharacter(got) {
		t.Fatal("InputCharacter failed")
	}
	endOk(t, in)
	if string(got) != "ABCD" {
		t.Errorf("record = %q, want ABCD", got)
	}
}

func TestSetAdvanceRejectsDirectAccess(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 23
	open := rt.BeginOpenUnit(unit, "t.f90", 1)
	open.SetAccess("DIRECT")
	open.SetRecl(16)
	endOk(t, open)

	ck := rt.BeginExternalFormattedOutput("(A)", unit, "t.f90", 2)
	if ck.SetAdvance("NO") {
		t.Error("SetAdvance(NO) on a direct access unit reported success")
	}
	if stat := ck.EndIoStatement(); !stat.IsError() {
		t.Errorf("EndIoStatement = %v, want an error", stat)
	}
}

func TestUnformattedRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 30
	ck := rt.BeginUnformattedOutput(unit, "t.f90", 1)
	ck.OutputInteger32(7)
	ck.OutputReal64(3.25)
	ck.OutputComplex32(complex(1, -2))
	endOk(t, ck)

	rewindUnit(t, rt, unit)
	in := rt.BeginUnformattedInput(unit, "t.f90", 2)
	var n int64
	var x float64
	var z complex64
	if !in.InputInteger(&n, 4) || n != 7 {
		t.Errorf("InputInteger: got %d", n)
	}
	if !in.InputReal64(&x) || x != 3.25 {
		t.Errorf("InputReal64: got %v", x)
	}
	if !in.InputComplex32(&z) || z != complex(1, -2) {
		t.Errorf("InputComplex32: got %v", z)
	}
	endOk(t, in)
}

func TestUnformattedShortReadIsEor(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 31
	ck := rt.BeginUnformattedOutput(unit, "t.f90", 1)
	ck.OutputInteger32(7)
	endOk(t, ck)

	rewindUnit(t, rt, unit)
	in := rt.BeginUnformattedInput(unit, "t.f90", 2)
	var big [16]byte
	if in.InputUnformattedBlock(big[:]) {
		t.Error("reading past the record payload reported success")
	}
	if stat := in.EndIoStatement(); stat != iostat.Eor {
		t.Errorf("EndIoStatement = %v, want Eor", stat)
	}
}

func TestUnformattedBackspaceRereadsRecord(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 32
	for _, v := range []int32{10, 20} {
		ck := rt.BeginUnformattedOutput(unit, "t.f90", 1)
		ck.OutputInteger32(v)
		endOk(t, ck)
	}
	rewindUnit(t, rt, unit)

	var n int64
	in := rt.BeginUnformattedInput(unit, "t.f90", 2)
	in.InputInteger(&n, 4)
	endOk(t, in)
	in = rt.BeginUnformattedInput(unit, "t.f90", 3)
	in.InputInteger(&n, 4)
	endOk(t, in)
	if n != 20 {
		t.Fatalf("second record = %d, want 20", n)
	}

	endOk(t, rt.BeginBackspace(unit, "t.f90", 4))
	in = rt.BeginUnformattedInput(unit, "t.f90", 5)
	in.InputInteger(&n, 4)
	endOk(t, in)
	if n != 20 {
		t.Errorf("record after BACKSPACE = %d, want 20 again", n)
	}
}

func TestFormattingMismatch(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 33
	ck := rt.BeginExternalListOutput(unit, "t.f90", 1)
	ck.OutputInteger32(1)
	endOk(t, ck)

	bad := rt.BeginUnformattedOutput(unit, "t.f90", 2)
	if stat := bad.EndIoStatement(); stat != iostat.UnformattedIoOnFormattedUnit {
		t.Errorf("EndIoStatement = %v, want UnformattedIoOnFormattedUnit", stat)
	}

	const unit2 = 34
	ck = rt.BeginUnformattedOutput(unit2, "t.f90", 3)
	ck.OutputInteger32(1)
	endOk(t, ck)

	bad = rt.BeginExternalListOutput(unit2, "t.f90", 4)
	if stat := bad.EndIoStatement(); stat != iostat.FormattedIoOnUnformattedUnit {
		t.Errorf("EndIoStatement = %v, want FormattedIoOnUnformattedUnit", stat)
	}
}

func TestListIoOnDirectAccessRejected(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 35
	open := rt.BeginOpenUnit(unit, "t.f90", 1)
	open.SetAccess("DIRECT")
	open.SetRecl(32)
	endOk(t, open)

	ck := rt.BeginExternalListOutput(unit, "t.f90", 2)
	if stat := ck.EndIoStatement(); stat != iostat.ListIoOnDirectAccessUnit {
		t.Errorf("EndIoStatement = %v, want ListIoOnDirectAccessUnit", stat)
	}
}

func TestNewUnitTransferRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)
	open := rt.BeginOpenNewUnit("t.f90", 1)
	open.SetFile(t.TempDir() + "/new.dat")
	open.SetStatus("REPLACE")
	var unit int
	if !open.GetNewUnit(&unit) {
		t.Fatal("GetNewUnit failed")
	}
	endOk(t, open)
	if unit >= 0 {
		t.Fatalf("allocated unit = %d, want a negative number", unit)
	}

	out := rt.BeginExternalListOutput(unit, "t.f90", 2)
	if !out.OutputInteger64(77) {
		t.Fatal("OutputInteger64 returned false on a NEWUNIT unit")
	}
	endOk(t, out)
	rewindUnit(t, rt, unit)

	in := rt.BeginExternalListInput(unit, "t.f90", 3)
	var got int64
	if !in.InputInteger(&got, 8) {
		t.Fatal("InputInteger returned false on a NEWUNIT unit")
	}
	endOk(t, in)
	if got != 77 {
		t.Errorf("read back %d, want 77", got)
	}
}

func TestDirectAccessRecPositioning(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 36
	open := rt.BeginOpenUnit(unit, "t.f90", 1)
	open.SetAccess("DIRECT")
	open.SetRecl(8)
	endOk(t, open)

	for rec, text := range map[int64]string{1: "one", 3: "three"} {
		ck := rt.BeginExternalFormattedOutput("(A)", unit, "t.f90", 2)
		if !ck.SetRec(rec) {
			t.Fatalf("SetRec(%d) returned false", rec)
		}
		ck.OutputCharacter(text)
		endOk(t, ck)
	}

	in := rt.BeginExternalFormattedInput("(A)", unit, "t.f90", 3)
	in.SetRec(3)
	cell := make([]byte, 8)
	in.InputCharacter(cell)
	endOk(t, in)
	if got := strings.TrimRight(string(cell), " "); got != "three" {
		t.Errorf("record 3 = %q, want three", got)
	}
}

func TestWrongDirectionTransferCrashes(t *testing.T) {
	rt := newTestRuntime(t)
	ck := rt.BeginExternalListOutput(37, "t.f90", 1)
	expectCrash(t, "WRITE", func() {
		var n int64
		ck.InputInteger(&n, 4)
	})
}

func TestUnformattedBlockOnFormattedStmtCrashes(t *testing.T) {
	rt := newTestRuntime(t)
	ck := rt.BeginExternalListOutput(38, "t.f90", 1)
	expectCrash(t, "formatted", func() {
		ck.OutputUnformattedBlock([]byte{1, 2})
	})
}

func TestInquireIoLength(t *testing.T) {
	rt := newTestRuntime(t)
	ck := rt.BeginInquireIoLength("t.f90", 1)
	ck.OutputInteger32(1)       // 4 bytes
	ck.OutputReal64(1.0)        // 8 bytes
	ck.OutputCharacter("hello") // 5 bytes
	if got := ck.GetIoLength(); got != 17 {
		t.Errorf("GetIoLength = %d, want 17", got)
	}
	endOk(t, ck)
}

func TestGetSizeCountsEditedCharacters(t *testing.T) {
	rt := newTestRuntime(t)
	ck := rt.BeginInternalListInput("12345 67", "t.f90", 1)
	var n int64
	ck.InputInteger(&n, 8)
	if got := ck.GetSize(); got != 5 {
		t.Errorf("GetSize = %d, want 5", got)
	}
	endOk(t, ck)
}

func TestDefinedDerivedTypeOutput(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 40
	type point struct{ x, y float64 }

	var table DefinedIoTable
	table.Register("POINT", DirOutput, false, func(rt *Runtime, unitNumber int, d descriptor.Descriptor) iostat.Iostat {
		p := d.Data.(*point)
		child := rt.BeginExternalListOutput(unitNumber, "point.f90", 10)
		child.OutputReal64(p.x)
		child.OutputReal64(p.y)
		return child.EndIoStatement()
	})

	ck := rt.BeginExternalListOutput(unit, "t.f90", 1)
	ck.OutputCharacter("P=")
	if !ck.OutputDerivedType(descriptor.EstablishDerived("POINT", &point{x: 1.5, y: -2.5}), &table) {
		t.Fatal("OutputDerivedType returned false")
	}
	endOk(t, ck)

	rewindUnit(t, rt, unit)
	in := rt.BeginExternalListInput(unit, "t.f90", 2)
	var label [2]byte
	var x, y float64
	in.InputCharacter(label[:])
	in.InputReal64(&x)
	in.InputReal64(&y)
	endOk(t, in)
	if string(label[:]) != "P=" || x != 1.5 || y != -2.5 {
		t.Errorf("record items = %q %v %v, want the child output inline", label, x, y)
	}
}

func TestDefinedIoMissingProcedure(t *testing.T) {
	rt := newTestRuntime(t)
	ck := rt.BeginExternalListOutput(41, "t.f90", 1)
	if ck.OutputDerivedType(descriptor.EstablishDerived("NOPE", &struct{}{}), &DefinedIoTable{}) {
		t.Error("transfer without a registered procedure reported success")
	}
	if stat := ck.EndIoStatement(); !stat.IsError() {
		t.Errorf("EndIoStatement = %v, want an error", stat)
	}
}

func TestChildFormattingMismatch(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 42
	var table DefinedIoTable
	table.Register("BAD", DirOutput, false, func(rt *Runtime, unitNumber int, d descriptor.Descriptor) iostat.Iostat {
		// The parent is formatted; an unformatted nested statement must be
		// rejected before any byte moves.
		child := rt.BeginUnformattedOutput(unitNumber, "bad.f90", 5)
		return child.EndIoStatement()
	})

	ck := rt.BeginExternalListOutput(unit, "t.f90", 1)
	ck.OutputDerivedType(descriptor.EstablishDerived("BAD", &struct{}{}), &table)
	if stat := ck.EndIoStatement(); stat != iostat.BadOpOnChildUnit {
		t.Errorf("EndIoStatement = %v, want BadOpOnChildUnit", stat)
	}
}

func TestOpenRejectedWhileChildActive(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 43
	var table DefinedIoTable
	table.Register("T", DirOutput, false, func(rt *Runtime, unitNumber int, d descriptor.Descriptor) iostat.Iostat {
		open := rt.BeginOpenUnit(unitNumber, "t.f90", 7)
		return open.EndIoStatement()
	})
	ck := rt.BeginExternalListOutput(unit, "t.f90", 1)
	ck.OutputDerivedType(descriptor.EstablishDerived("T", &struct{}{}), &table)
	if stat := ck.EndIoStatement(); stat != iostat.BadOpOnChildUnit {
		t.Errorf("EndIoStatement = %v, want BadOpOnChildUnit", stat)
	}
}

func TestAsynchronousMarkers(t *testing.T) {
	rt := newTestRuntime(t)
	const unit = 44
	open := rt.BeginOpenUnit(unit, "t.f90", 1)
	if !open.SetAsynchronous("YES") {
		t.Fatal("SetAsynchronous(YES) on OPEN failed")
	}
	endOk(t, open)

	ck := rt.BeginExternalListOutput(unit, "t.f90", 2)
	if !ck.SetAsynchronous("YES") {
		t.Fatal("SetAsynchronous(YES) on WRITE failed")
	}
	id := ck.GetAsynchronousId()
	if id == 0 {
		t.Fatal("asynchronous statement has no wait marker")
	}
	ck.OutputInteger32(1)
	endOk(t, ck)

	var pending bool
	inq := rt.BeginInquireUnit(unit, "t.f90", 3)
	inq.InquirePendingId(id, &pending)
	endOk(t, inq)
	if !pending {
		t.Error("marker not pending before WAIT")
	}

	endOk(t, rt.BeginWait(unit, id, "t.f90", 4))

	inq = rt.BeginInquireUnit(unit, "t.f90", 5)
	inq.InquirePendingId(id, &pending)
	endOk(t, inq)
	if pending {
		t.Error("marker still pending after WAIT")
	}

	// Waiting again for the same marker is an error.
	bad := rt.BeginWait(unit, id, "t.f90", 6)
	if stat := bad.EndIoStatement(); stat != iostat.BadWaitId {
		t.Errorf("EndIoStatement = %v, want BadWaitId", stat)
	}
}

func TestAsynchronousNotPermittedByUnit(t *testing.T) {
	rt := newTestRuntime(t)
	ck := rt.BeginExternalListOutput(45, "t.f90", 1)
	ck.SetAsynchronous("YES")
	if stat := ck.EndIoStatement(); stat != iostat.BadAsynchronous {
		t.Errorf("EndIoStatement = %v, want BadAsynchronous", stat)
	}
}

func TestWaitOnUnconnectedUnit(t *testing.T) {
	rt := newTestRuntime(t)
	if stat := rt.BeginWait(77, 0, "t.f90", 1).EndIoStatement(); stat != iostat.Ok {
		t.Errorf("WAIT(id=0) on unconnected unit = %v, want Ok", stat)
	}
	if stat := rt.BeginWait(77, 3, "t.f90", 2).EndIoStatement(); stat != iostat.BadWaitUnit {
		t.Errorf("WAIT(id=3) on unconnected unit = %v, want BadWaitUnit", stat)
	}
}
