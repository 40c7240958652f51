package fio

import (
	"strings"

	"github.com/soypat/go-fortran-io/descriptor"
	"github.com/soypat/go-fortran-io/iostat"
)

// Every Begin* entry point returns a non-nil Cookie and never terminates on
// its own: a Begin-time failure (bad unit number, illegal operation for the
// unit, bad nesting) is encoded as a no-op or erroneous statement carrying
// the appropriate Iostat, so generated code can drive the rest of its fixed
// call sequence uniformly and pick the status up at EndIoStatement.

func (rt *Runtime) newStmtBase(t Terminator, seed Modes) stmtBase {
	return stmtBase{handler: ErrorHandler{Terminator: t}, modes: seed}
}

// noopUnit builds the no-op statement for unitNumber, optionally carrying a
// pending Begin-time error.
func (rt *Runtime) noopUnit(t Terminator, unitNumber int, stat iostat.Iostat) *Cookie {
	s := &noopStmt{stmtBase: rt.newStmtBase(t, defaultModes()), unitNumber: unitNumber}
	if stat != iostat.Ok {
		s.handler.SetPendingError(stat)
	}
	return &Cookie{v: s}
}

// erroneousCookie builds the failure encoding of an intended statement.
// unit may be nil (child redirects fail without touching the unit).
func (rt *Runtime) erroneousCookie(t Terminator, stat iostat.Iostat, u *ExternalFileUnit) *Cookie {
	s := &erroneousStmt{stmtBase: rt.newStmtBase(t, defaultModes()), u: u}
	s.handler.SetPendingError(stat)
	return &Cookie{v: s}
}

// resolveDefaultUnit maps the unspecified unit ("*") onto the preconnected
// standard units.
func resolveDefaultUnit(unitNumber int, dir Direction) int {
	if unitNumber == DefaultUnit {
		if dir == DirInput {
			return stdinUnit
		}
		return stdoutUnit
	}
	return unitNumber
}

// getOrCreateUnit resolves unitNumber, creating a preconnected anonymous
// unit when absent. On failure the second result is the erroneous cookie to
// hand back.
func (rt *Runtime) getOrCreateUnit(unitNumber int, dir Direction, formatting Formatting, t Terminator) (*ExternalFileUnit, *Cookie) {
	if u := rt.LookUpOrCreateAnonymous(unitNumber, dir, formatting); u != nil {
		return u, nil
	}
	return nil, rt.noopUnit(t, unitNumber, iostat.BadUnitNumber)
}

func (rt *Runtime) externalBase(u *ExternalFileUnit, t Terminator) externalStmtBase {
	return externalStmtBase{stmtBase: rt.newStmtBase(t, u.modes), u: u}
}

func (rt *Runtime) childBase(child *ChildIo, dir Direction, t Terminator) childStmtBase {
	return childStmtBase{stmtBase: rt.newStmtBase(t, child.unit.modes), child: child, dir: dir}
}

// ---- internal statements ----

func (rt *Runtime) beginInternalOutput(out []byte, format string, formatted bool, sourceFile string, sourceLine int) *Cookie {
	t := rt.terminator(sourceFile, sourceLine)
	base := internalStmtBase{stmtBase: rt.newStmtBase(t, defaultModes()), dir: DirOutput, out: out}
	if formatted {
		return &Cookie{v: &internalFormattedStmt{internalStmtBase: base, format: format}}
	}
	return &Cookie{v: &internalListStmt{internalStmtBase: base}}
}

func (rt *Runtime) beginInternalInput(src string, format string, formatted bool, sourceFile string, sourceLine int) *Cookie {
	t := rt.terminator(sourceFile, sourceLine)
	base := internalStmtBase{stmtBase: rt.newStmtBase(t, defaultModes()), dir: DirInput}
	base.cursor.src = src
	if formatted {
		return &Cookie{v: &internalFormattedStmt{internalStmtBase: base, format: format}}
	}
	return &Cookie{v: &internalListStmt{internalStmtBase: base}}
}

// BeginInternalListOutput starts list-directed output into the caller-owned
// internal record. The unused tail is blank-filled at EndIoStatement.
func (rt *Runtime) BeginInternalListOutput(internal []byte, sourceFile string, sourceLine int) *Cookie {
	return rt.beginInternalOutput(internal, "", false, sourceFile, sourceLine)
}

// BeginInternalListInput starts list-directed input from an internal record.
func (rt *Runtime) BeginInternalListInput(internal string, sourceFile string, sourceLine int) *Cookie {
	return rt.beginInternalInput(internal, "", false, sourceFile, sourceLine)
}

// BeginInternalFormattedOutput starts format-driven output into an internal
// record.
func (rt *Runtime) BeginInternalFormattedOutput(internal []byte, format string, sourceFile string, sourceLine int) *Cookie {
	return rt.beginInternalOutput(internal, format, true, sourceFile, sourceLine)
}

// BeginInternalFormattedInput starts format-driven input from an internal
// record.
func (rt *Runtime) BeginInternalFormattedInput(internal string, format string, sourceFile string, sourceLine int) *Cookie {
	return rt.beginInternalInput(internal, format, true, sourceFile, sourceLine)
}

// internalArrayBuffer extracts the contiguous character storage of an
// internal array unit. The descriptor must describe CHARACTER storage;
// anything else is a contract violation by the caller.
func internalArrayBuffer(d descriptor.Descriptor, t Terminator) (out []byte, src string) {
	if d.Cat != descriptor.Character {
		t.Crash("internal array unit descriptor is %s, not CHARACTER", d.Cat)
	}
	switch data := d.Data.(type) {
	case []byte:
		return data, string(data)
	case *string:
		return nil, *data
	case string:
		return nil, data
	default:
		t.Crash("internal array unit descriptor holds %T, not character storage", d.Data)
	}
	return nil, ""
}

// BeginInternalArrayListOutput starts list-directed output over an internal
// character array viewed through d.
func (rt *Runtime) BeginInternalArrayListOutput(d descriptor.Descriptor, sourceFile string, sourceLine int) *Cookie {
	t := rt.terminator(sourceFile, sourceLine)
	out, _ := internalArrayBuffer(d, t)
	if out == nil {
		t.Crash("internal array output requires mutable character storage, got %T", d.Data)
	}
	return rt.beginInternalOutput(out, "", false, sourceFile, sourceLine)
}

// BeginInternalArrayListInput starts list-directed input over an internal
// character array viewed through d.
func (rt *Runtime) BeginInternalArrayListInput(d descriptor.Descriptor, sourceFile string, sourceLine int) *Cookie {
	t := rt.terminator(sourceFile, sourceLine)
	_, src := internalArrayBuffer(d, t)
	return rt.beginInternalInput(src, "", false, sourceFile, sourceLine)
}

// BeginInternalArrayFormattedOutput starts format-driven output over an
// internal character array viewed through d.
func (rt *Runtime) BeginInternalArrayFormattedOutput(d descriptor.Descriptor, format string, sourceFile string, sourceLine int) *Cookie {
	t := rt.terminator(sourceFile, sourceLine)
	out, _ := internalArrayBuffer(d, t)
	if out == nil {
		t.Crash("internal array output requires mutable character storage, got %T", d.Data)
	}
	return rt.beginInternalOutput(out, format, true, sourceFile, sourceLine)
}

// BeginInternalArrayFormattedInput starts format-driven input over an
// internal character array viewed through d.
func (rt *Runtime) BeginInternalArrayFormattedInput(d descriptor.Descriptor, format string, sourceFile string, sourceLine int) *Cookie {
	t := rt.terminator(sourceFile, sourceLine)
	_, src := internalArrayBuffer(d, t)
	return rt.beginInternalInput(src, format, true, sourceFile, sourceLine)
}

// ---- external transfer statements ----

func (rt *Runtime) beginExternalFormattedOrList(dir Direction, format string, isList bool, unitNumber int, sourceFile string, sourceLine int) *Cookie {
	t := rt.terminator(sourceFile, sourceLine)
	unitNumber = resolveDefaultUnit(unitNumber, dir)
	u, errCookie := rt.getOrCreateUnit(unitNumber, dir, FormattedUnit, t)
	if u == nil {
		return errCookie
	}
	// A nested statement borrows the parent's connection and never adopts
	// formatting or direction of its own; any disagreement is the child's
	// error, checked before the unit-level rules.
	if child := u.GetChildIo(); child != nil {
		if stat := child.CheckFormattingAndDirection(false, dir); stat != iostat.Ok {
			return rt.erroneousCookie(t, stat, nil)
		}
		if isList {
			return &Cookie{v: &childListStmt{childStmtBase: rt.childBase(child, dir, t)}}
		}
		return &Cookie{v: &childFormattedStmt{childStmtBase: rt.childBase(child, dir, t), format: format}}
	}
	stat := iostat.Ok
	if u.adoptFormatting(FormattedUnit) {
		stat = iostat.FormattedIoOnUnformattedUnit
	}
	if stat == iostat.Ok && isList && u.access == AccessDirect {
		stat = iostat.ListIoOnDirectAccessUnit
	}
	if stat == iostat.Ok {
		stat = u.SetDirection(dir)
	}
	if stat != iostat.Ok {
		return rt.erroneousCookie(t, stat, u)
	}
	if isList {
		return &Cookie{v: &externalListStmt{externalStmtBase: rt.externalBase(u, t), dir: dir}}
	}
	return &Cookie{v: &externalFormattedStmt{externalStmtBase: rt.externalBase(u, t), dir: dir, format: format}}
}

// BeginExternalListOutput starts a list-directed WRITE on unitNumber.
func (rt *Runtime) BeginExternalListOutput(unitNumber int, sourceFile string, sourceLine int) *Cookie {
	return rt.beginExternalFormattedOrList(DirOutput, "", true, unitNumber, sourceFile, sourceLine)
}

// BeginExternalListInput starts a list-directed READ on unitNumber.
func (rt *Runtime) BeginExternalListInput(unitNumber int, sourceFile string, sourceLine int) *Cookie {
	return rt.beginExternalFormattedOrList(DirInput, "", true, unitNumber, sourceFile, sourceLine)
}

// BeginExternalFormattedOutput starts a format-driven WRITE on unitNumber.
func (rt *Runtime) BeginExternalFormattedOutput(format string, unitNumber int, sourceFile string, sourceLine int) *Cookie {
	return rt.beginExternalFormattedOrList(DirOutput, format, false, unitNumber, sourceFile, sourceLine)
}

// BeginExternalFormattedInput starts a format-driven READ on unitNumber.
func (rt *Runtime) BeginExternalFormattedInput(format string, unitNumber int, sourceFile string, sourceLine int) *Cookie {
	return rt.beginExternalFormattedOrList(DirInput, format, false, unitNumber, sourceFile, sourceLine)
}

func (rt *Runtime) beginUnformattedIO(dir Direction, unitNumber int, sourceFile string, sourceLine int) *Cookie {
	t := rt.terminator(sourceFile, sourceLine)
	u, errCookie := rt.getOrCreateUnit(unitNumber, dir, UnformattedUnit, t)
	if u == nil {
		return errCookie
	}
	if child := u.GetChildIo(); child != nil {
		if stat := child.CheckFormattingAndDirection(true, dir); stat != iostat.Ok {
			return rt.erroneousCookie(t, stat, nil)
		}
		return &Cookie{v: &childUnformattedStmt{childStmtBase: rt.childBase(child, dir, t)}}
	}
	stat := iostat.Ok
	if u.adoptFormatting(UnformattedUnit) {
		stat = iostat.UnformattedIoOnFormattedUnit
	}
	if stat == iostat.Ok {
		stat = u.SetDirection(dir)
	}
	if stat != iostat.Ok {
		return rt.erroneousCookie(t, stat, u)
	}
	s := &externalUnformattedStmt{externalStmtBase: rt.externalBase(u, t), dir: dir}
	if dir == DirOutput && u.access == AccessSequential {
		// Reserve space for the record length header, completed when the
		// record advances. A prior BACKSPACE may have left a stale length.
		u.recordLength = -1
		s.Emit(make([]byte, unformattedHeaderBytes))
	}
	return &Cookie{v: s}
}

// BeginUnformattedOutput starts an unformatted WRITE on unitNumber.
func (rt *Runtime) BeginUnformattedOutput(unitNumber int, sourceFile string, sourceLine int) *Cookie {
	return rt.beginUnformattedIO(DirOutput, unitNumber, sourceFile, sourceLine)
}

// BeginUnformattedInput starts an unformatted READ on unitNumber.
func (rt *Runtime) BeginUnformattedInput(unitNumber int, sourceFile string, sourceLine int) *Cookie {
	return rt.beginUnformattedIO(DirInput, unitNumber, sourceFile, sourceLine)
}

// ---- OPEN, CLOSE, WAIT, positioning ----

// BeginOpenUnit starts OPEN on an explicit unit number, attaching to the
// existing connection or creating a new record.
func (rt *Runtime) BeginOpenUnit(unitNumber int, sourceFile string, sourceLine int) *Cookie {
	t := rt.terminator(sourceFile, sourceLine)
	u, wasExtant := rt.LookUpOrCreate(unitNumber)
	if u == nil {
		return rt.noopUnit(t, unitNumber, iostat.BadUnitNumber)
	}
	if u.GetChildIo() != nil {
		return rt.erroneousCookie(t, iostat.BadOpOnChildUnit, nil)
	}
	return &Cookie{v: &openStmt{externalStmtBase: rt.externalBase(u, t), wasExtant: wasExtant}}
}

// BeginOpenNewUnit starts OPEN(NEWUNIT=), always allocating a fresh unit
// number.
func (rt *Runtime) BeginOpenNewUnit(sourceFile string, sourceLine int) *Cookie {
	t := rt.terminator(sourceFile, sourceLine)
	u := rt.NewUnit()
	return &Cookie{v: &openStmt{externalStmtBase: rt.externalBase(u, t), wasExtant: false}}
}

// BeginWait starts WAIT for one asynchronous transfer; id 0 waits for all
// outstanding transfers on the unit. WAIT on an unconnected unit succeeds
// only for id 0.
func (rt *Runtime) BeginWait(unitNumber int, id int64, sourceFile string, sourceLine int) *Cookie {
	t := rt.terminator(sourceFile, sourceLine)
	if u := rt.LookUp(unitNumber); u != nil {
		if u.Wait(id) {
			return &Cookie{v: &externalMiscStmt{externalStmtBase: rt.externalBase(u, t), op: miscWait}}
		}
		return rt.erroneousCookie(t, iostat.BadWaitId, u)
	}
	stat := iostat.Ok
	if id != 0 {
		stat = iostat.BadWaitUnit
	}
	return rt.noopUnit(t, unitNumber, stat)
}

// BeginWaitAll starts WAIT for every outstanding transfer on the unit.
func (rt *Runtime) BeginWaitAll(unitNumber int, sourceFile string, sourceLine int) *Cookie {
	return rt.BeginWait(unitNumber, 0, sourceFile, sourceLine)
}

// BeginClose starts CLOSE. Closing an unconnected unit number is a
// successful no-op, not an error.
func (rt *Runtime) BeginClose(unitNumber int, sourceFile string, sourceLine int) *Cookie {
	t := rt.terminator(sourceFile, sourceLine)
	if u := rt.LookUp(unitNumber); u != nil && u.GetChildIo() != nil {
		return rt.erroneousCookie(t, iostat.BadOpOnChildUnit, nil)
	}
	if u := rt.LookUpForClose(unitNumber); u != nil {
		return &Cookie{v: &closeStmt{externalStmtBase: rt.externalBase(u, t)}}
	}
	return rt.noopUnit(t, unitNumber, iostat.Ok)
}

// BeginFlush starts FLUSH. Flushing an unconnected but valid unit number is
// a no-op; an invalid number is an error.
func (rt *Runtime) BeginFlush(unitNumber int, sourceFile string, sourceLine int) *Cookie {
	t := rt.terminator(sourceFile, sourceLine)
	if u := rt.LookUp(unitNumber); u != nil {
		return &Cookie{v: &externalMiscStmt{externalStmtBase: rt.externalBase(u, t), op: miscFlush}}
	}
	stat := iostat.Ok
	if unitNumber < 0 {
		stat = iostat.BadFlushUnit
	}
	return rt.noopUnit(t, unitNumber, stat)
}

// BeginBackspace starts BACKSPACE. The unit must already be connected.
func (rt *Runtime) BeginBackspace(unitNumber int, sourceFile string, sourceLine int) *Cookie {
	t := rt.terminator(sourceFile, sourceLine)
	u := rt.LookUp(unitNumber)
	if u == nil {
		return rt.noopUnit(t, unitNumber, iostat.BadBackspaceUnit)
	}
	if u.GetChildIo() != nil {
		return rt.erroneousCookie(t, iostat.BadOpOnChildUnit, nil)
	}
	return &Cookie{v: &externalMiscStmt{externalStmtBase: rt.externalBase(u, t), op: miscBackspace}}
}

// BeginEndfile starts ENDFILE, connecting the unit on first reference.
func (rt *Runtime) BeginEndfile(unitNumber int, sourceFile string, sourceLine int) *Cookie {
	t := rt.terminator(sourceFile, sourceLine)
	u, errCookie := rt.getOrCreateUnit(unitNumber, DirOutput, FormattingUnset, t)
	if u == nil {
		return errCookie
	}
	if u.GetChildIo() != nil {
		return rt.erroneousCookie(t, iostat.BadOpOnChildUnit, nil)
	}
	return &Cookie{v: &externalMiscStmt{externalStmtBase: rt.externalBase(u, t), op: miscEndfile}}
}

// BeginRewind starts REWIND, connecting the unit on first reference.
func (rt *Runtime) BeginRewind(unitNumber int, sourceFile string, sourceLine int) *Cookie {
	t := rt.terminator(sourceFile, sourceLine)
	u, errCookie := rt.getOrCreateUnit(unitNumber, DirInput, FormattingUnset, t)
	if u == nil {
		return errCookie
	}
	if u.GetChildIo() != nil {
		return rt.erroneousCookie(t, iostat.BadOpOnChildUnit, nil)
	}
	return &Cookie{v: &externalMiscStmt{externalStmtBase: rt.externalBase(u, t), op: miscRewind}}
}

// ---- INQUIRE ----

// BeginInquireUnit starts INQUIRE(UNIT=). Inquiry of an unrecognized unit
// number succeeds and answers EXIST accordingly.
func (rt *Runtime) BeginInquireUnit(unitNumber int, sourceFile string, sourceLine int) *Cookie {
	t := rt.terminator(sourceFile, sourceLine)
	if u := rt.LookUp(unitNumber); u != nil {
		return &Cookie{v: &inquireUnitStmt{externalStmtBase: rt.externalBase(u, t)}}
	}
	return &Cookie{v: &inquireNoUnitStmt{stmtBase: rt.newStmtBase(t, defaultModes()), unitNumber: unitNumber}}
}

// BeginInquireFile starts INQUIRE(FILE=). Trailing blanks in path are not
// significant.
func (rt *Runtime) BeginInquireFile(path string, sourceFile string, sourceLine int) *Cookie {
	t := rt.terminator(sourceFile, sourceLine)
	trimmed := strings.TrimRight(path, " ")
	if u := rt.LookUpByPath(trimmed); u != nil {
		return &Cookie{v: &inquireUnitStmt{externalStmtBase: rt.externalBase(u, t)}}
	}
	return &Cookie{v: &inquireUnconnectedFileStmt{stmtBase: rt.newStmtBase(t, defaultModes()), path: trimmed}}
}

// BeginInquireIoLength starts INQUIRE(IOLENGTH=), which measures the
// unformatted size of an output list without transferring anything.
func (rt *Runtime) BeginInquireIoLength(sourceFile string, sourceLine int) *Cookie {
	t := rt.terminator(sourceFile, sourceLine)
	return &Cookie{v: &inquireIOLengthStmt{stmtBase: rt.newStmtBase(t, defaultModes())}}
}

// ---- statement-wide calls ----

// forCall fetches the live variant, crashing if the handle was already
// finalized. Every post-Begin entry point goes through here.
func (ck *Cookie) forCall(name string) stmtVariant {
	v := ck.v
	if v.base().ended {
		v.base().handler.Crash("%s() called on a finalized I/O statement handle", name)
	}
	return v
}

// GetIoErrorHandler exposes the statement's error handler.
func (ck *Cookie) GetIoErrorHandler() *ErrorHandler {
	return &ck.v.base().handler
}

func (ck *Cookie) mutableModes() *Modes { return &ck.v.base().modes }

// EnableHandlers registers which of IOSTAT=, ERR=, END=, EOR= and IOMSG=
// the statement supplies, governing what surfaces at finalize time.
func (ck *Cookie) EnableHandlers(hasIoStat, hasErr, hasEnd, hasEor, hasIoMsg bool) {
	h := &ck.forCall("EnableHandlers").base().handler
	if hasIoStat {
		h.HasIoStat()
	}
	if hasErr {
		h.HasErrLabel()
	}
	if hasEnd {
		h.HasEndLabel()
	}
	if hasEor {
		h.HasEorLabel()
	}
	if hasIoMsg {
		h.HasIoMsg()
	}
}

// EndIoStatement finalizes the statement and invalidates the handle. This is
// the only legal way to discard a Cookie; every Begin must reach exactly one
// EndIoStatement on every code path.
func (ck *Cookie) EndIoStatement() iostat.Iostat {
	return ck.forCall("EndIoStatement").EndIoStatement()
}

// CheckUnitNumberInRange validates a wide unit number before it is narrowed
// to the default integer kind generated code passes around. The condition is
// data-driven and therefore always recoverable: UnitOverflow is returned,
// and when handleError is set the message is also copied to ioMsg.
func (rt *Runtime) CheckUnitNumberInRange(unit int64, handleError bool, ioMsg []byte, sourceFile string, sourceLine int) iostat.Iostat {
	const minUnit, maxUnit = -(1 << 31), 1<<31 - 1
	if unit >= minUnit && unit <= maxUnit {
		return iostat.Ok
	}
	h := ErrorHandler{Terminator: rt.terminator(sourceFile, sourceLine)}
	if handleError {
		h.HasIoStat()
		if ioMsg != nil {
			h.HasIoMsg()
		}
	}
	h.SignalError(iostat.UnitOverflow, "UNIT number %d is out of range", unit)
	if ioMsg != nil {
		h.GetIoMsg(ioMsg)
	}
	return h.GetIoStat()
}
