package fio

import (
	"github.com/soypat/go-fortran-io/iostat"
)

// Cookie is the opaque handle to one live I/O statement. A Cookie is valid
// from the Begin call that returned it until EndIoStatement; it is never
// nil, never shared, and never reused. Using a Cookie after EndIoStatement
// is a contract violation and crashes.
type Cookie struct {
	v stmtVariant
}

// stmtVariant is the closed set of statement kinds. Every kind answers the
// common capability surface below; call sites that need a specific kind use
// a total type switch whose mismatch arm crashes (unless the live variant is
// erroneous, in which case the call is absorbed as a no-op).
type stmtVariant interface {
	base() *stmtBase
	unit() *ExternalFileUnit // nil for internal statements
	// CompleteOperation performs the statement's pending side effects once.
	CompleteOperation()
	// EndIoStatement finalizes and reports the terminal status.
	EndIoStatement() iostat.Iostat
	// Inquiry answers by keyword; ok is false when the keyword does not
	// apply to this variant.
	inquireStr(keyword string) (result string, ok bool)
	inquireLogical(keyword string) (result bool, ok bool)
	inquireInt(keyword string) (result int64, ok bool)
}

// inputCursor is the read position of a formatted input statement over its
// current record. chars feeds GetSize (edit descriptor character count).
type inputCursor struct {
	src   string
	off   int
	chars int
}

func (c *inputCursor) rest() string { return c.src[min(c.off, len(c.src)):] }

func (c *inputCursor) consume(rest string) {
	prev := len(c.src) - c.off
	c.off = len(c.src) - len(rest)
	c.chars += prev - (len(c.src) - c.off)
}

// stmtBase carries what every statement kind has: the error handler, the
// per-statement modes snapshot and the finalized flag.
type stmtBase struct {
	handler   ErrorHandler
	modes     Modes
	completed bool
	ended     bool
}

func (b *stmtBase) base() *stmtBase          { return b }
func (b *stmtBase) unit() *ExternalFileUnit  { return nil }
func (b *stmtBase) CompleteOperation()       { b.completed = true }
func (b *stmtBase) CompletedOperation() bool { return b.completed }

func (b *stmtBase) EndIoStatement() iostat.Iostat {
	b.completed = true
	b.ended = true
	return b.handler.GetIoStat()
}

func (b *stmtBase) inquireStr(string) (string, bool)    { return "", false }
func (b *stmtBase) inquireLogical(string) (bool, bool)  { return false, false }
func (b *stmtBase) inquireInt(string) (int64, bool)     { return 0, false }

// ---- internal statements ----

type internalStmtBase struct {
	stmtBase
	dir Direction
	// Output assembles into the caller's buffer; input reads from src.
	out    []byte
	outLen int
	cursor inputCursor
}

func (s *internalStmtBase) emit(p []byte) bool {
	if s.handler.InError() {
		return false
	}
	if s.outLen+len(p) > len(s.out) {
		// Internal unit overflow ends the record.
		s.handler.SignalEor()
		return false
	}
	copy(s.out[s.outLen:], p)
	s.outLen += len(p)
	return true
}

// EndIoStatement blank-fills the unused tail of an internal output record,
// per CHARACTER assignment semantics.
func (s *internalStmtBase) EndIoStatement() iostat.Iostat {
	if s.dir == DirOutput {
		for i := s.outLen; i < len(s.out); i++ {
			s.out[i] = ' '
		}
	}
	return s.stmtBase.EndIoStatement()
}

type internalListStmt struct {
	internalStmtBase
}

type internalFormattedStmt struct {
	internalStmtBase
	format string
}

// ---- external statements ----

type externalStmtBase struct {
	stmtBase
	u            *ExternalFileUnit
	asynchronous bool
	asyncID      int64
	recordBuf    []byte
	readStarted  bool
	cursor       inputCursor
}

func (e *externalStmtBase) unit() *ExternalFileUnit    { return e.u }
func (e *externalStmtBase) extBase() *externalStmtBase { return e }

// externalVariant is satisfied by every statement kind operating on a
// connected unit, including OPEN and CLOSE.
type externalVariant interface {
	extBase() *externalStmtBase
}

// SetAsynchronous flags the statement as an asynchronous transfer and
// allocates its wait marker.
func (e *externalStmtBase) SetAsynchronous() {
	if !e.asynchronous {
		e.asynchronous = true
		e.asyncID = e.u.nextAsyncID()
	}
}

func (e *externalStmtBase) emit(p []byte) bool {
	if e.handler.InError() {
		return false
	}
	e.recordBuf = append(e.recordBuf, p...)
	return true
}

// beginReadingRecord fetches the statement's input record on first demand.
func (e *externalStmtBase) beginReadingRecord(formatted bool) {
	if e.readStarted || e.handler.InError() {
		return
	}
	e.readStarted = true
	var rec []byte
	var ok bool
	if formatted {
		rec, ok = e.u.readRecord(&e.handler)
	} else {
		rec, ok = e.u.readUnformattedRecord(&e.handler)
	}
	if !ok {
		return
	}
	if formatted {
		e.cursor.src = string(rec)
	} else {
		e.recordBuf = rec
	}
}

type externalListStmt struct {
	externalStmtBase
	dir Direction
}

func (s *externalListStmt) EndIoStatement() iostat.Iostat {
	if s.dir == DirOutput && !s.handler.InError() {
		s.u.finishFormattedOutput(s.recordBuf, s.modes.nonAdvancing, &s.handler)
	}
	return s.endExternal()
}

type externalFormattedStmt struct {
	externalStmtBase
	dir    Direction
	format string
}

func (s *externalFormattedStmt) EndIoStatement() iostat.Iostat {
	if s.dir == DirOutput && !s.handler.InError() {
		s.u.finishFormattedOutput(s.recordBuf, s.modes.nonAdvancing, &s.handler)
	}
	return s.endExternal()
}

type externalUnformattedStmt struct {
	externalStmtBase
	dir Direction
}

// Emit appends raw bytes to the unformatted record in progress.
func (s *externalUnformattedStmt) Emit(p []byte) bool {
	if s.dir != DirOutput {
		s.handler.Crash("Emit() called for an unformatted input statement")
	}
	return s.emit(p)
}

// Receive copies the next raw bytes out of the current unformatted record.
func (s *externalUnformattedStmt) Receive(p []byte) bool {
	if s.dir != DirInput {
		s.handler.Crash("Receive() called for an unformatted output statement")
	}
	s.beginReadingRecord(false)
	if s.handler.InError() {
		return false
	}
	if s.cursor.off+len(p) > len(s.recordBuf) {
		s.handler.SignalEor()
		return false
	}
	copy(p, s.recordBuf[s.cursor.off:])
	s.cursor.off += len(p)
	return true
}

func (s *externalUnformattedStmt) EndIoStatement() iostat.Iostat {
	if s.dir == DirOutput && !s.handler.InError() {
		s.u.writeUnformattedRecord(s.recordBuf, &s.handler)
	}
	return s.endExternal()
}

// endExternal finishes any external statement: records the asynchronous
// marker, restores the unit's statement slot and reports status.
func (e *externalStmtBase) endExternal() iostat.Iostat {
	if e.asynchronous {
		e.u.rt.log.Debug("asynchronous transfer retired eagerly",
			"unit", e.u.unitNumber, "id", e.asyncID)
	}
	return e.stmtBase.EndIoStatement()
}

// finishFormattedOutput writes or holds the assembled record. Non-advancing
// output leaves the bytes pending so the next statement extends the record.
func (u *ExternalFileUnit) finishFormattedOutput(payload []byte, nonAdvancing bool, handler *ErrorHandler) {
	payload = append(u.pendingOutput, payload...)
	u.pendingOutput = nil
	if nonAdvancing {
		u.pendingOutput = payload
		return
	}
	u.writeRecord(payload, handler)
}

// ---- child statements ----

type childStmtBase struct {
	stmtBase
	child *ChildIo
	dir   Direction
}

func (c *childStmtBase) unit() *ExternalFileUnit { return c.child.unit }

// parentExternal walks to the outermost external statement the child chain
// hangs off. Nested children forward to their own parent first.
func (c *childStmtBase) parentExternal() stmtVariant {
	return c.child.parent.v
}

type childListStmt struct {
	childStmtBase
}

type childFormattedStmt struct {
	childStmtBase
	format string
}

type childUnformattedStmt struct {
	childStmtBase
}

// Emit forwards raw bytes to the parent statement's record.
func (s *childUnformattedStmt) Emit(p []byte) bool {
	if s.handler.InError() {
		return false
	}
	switch parent := s.parentExternal().(type) {
	case *externalUnformattedStmt:
		return parent.Emit(p)
	case *childUnformattedStmt:
		return parent.Emit(p)
	default:
		s.handler.Crash("child unformatted output without an unformatted parent")
	}
	return false
}

// ---- OPEN ----

// openStmt buffers the editable OPEN attributes until the unit identity is
// finalized (CompleteOperation), after which they are immutable.
type openStmt struct {
	externalStmtBase
	wasExtant bool

	hasStatus   bool
	status      OpenStatus
	hasPosition bool
	position    Position
	hasAccess   bool
	access      Access
	hasForm     bool
	form        Formatting
	hasConvert  bool
	convert     Convert
	hasAction   bool
	mayRead     bool
	mayWrite    bool
	hasRecl     bool
	recl        int64
	hasEncoding bool
	isUTF8      bool
	hasAsync    bool
	mayAsync    bool
	hasPath     bool
	path        string
}

func (o *openStmt) WasExtant() bool { return o.wasExtant }

// CompleteOperation finalizes the unit identity: resolves STATUS=/FILE=,
// applies ACTION= and POSITION=, and attaches backing storage. After this
// the OPEN's editable attributes are immutable.
func (o *openStmt) CompleteOperation() {
	if o.completed {
		return
	}
	o.completed = true
	if o.handler.InError() {
		return
	}
	u := o.u
	if o.hasAccess {
		u.access = o.access
	}
	if o.hasForm {
		u.formatting = o.form
	}
	if o.hasConvert {
		u.convert = o.convert
	} else if !o.wasExtant {
		u.convert = u.rt.env.Convert
	}
	if o.hasAction {
		u.mayRead = o.mayRead
		u.mayWrite = o.mayWrite
	}
	if o.hasRecl {
		u.openRecl = o.recl
	}
	if o.hasEncoding {
		u.isUTF8 = o.isUTF8
	}
	if o.hasAsync {
		u.mayAsync = o.mayAsync
	}
	status := OpenStatusUnknown
	if o.hasStatus {
		status = o.status
	}
	path := ""
	if o.hasPath {
		path = o.path
	}
	u.openConnection(status, path, &o.handler)
	if o.handler.InError() {
		return
	}
	if u.access == AccessDirect && u.openRecl <= 0 {
		o.handler.SignalError(iostat.OpenBadRecl, "OPEN(ACCESS='DIRECT') requires RECL=")
		return
	}
	pos := PositionAsIs
	if o.hasPosition {
		pos = o.position
	}
	switch pos {
	case PositionRewind:
		u.rewind()
	case PositionAppend:
		u.filePos = u.file.Size()
	}
	u.position = pos
	// OPEN-scoped mode options persist on the connection.
	u.modes = o.modes
	u.rt.log.Debug("opened unit", "unit", u.unitNumber, "file", u.path,
		"access", u.access, "extant", o.wasExtant)
}

func (o *openStmt) EndIoStatement() iostat.Iostat {
	o.CompleteOperation()
	return o.endExternal()
}

// ---- CLOSE ----

type closeStmt struct {
	externalStmtBase
	status CloseStatus
}

func (c *closeStmt) CompleteOperation() {
	if c.completed {
		return
	}
	c.completed = true
	c.u.closeConnection(c.status)
}

func (c *closeStmt) EndIoStatement() iostat.Iostat {
	c.CompleteOperation()
	return c.endExternal()
}

// ---- misc external statements (WAIT, FLUSH, BACKSPACE, ENDFILE, REWIND) ----

type miscOp int8

const (
	miscWait miscOp = iota
	miscFlush
	miscBackspace
	miscEndfile
	miscRewind
)

type externalMiscStmt struct {
	externalStmtBase
	op miscOp
}

func (m *externalMiscStmt) CompleteOperation() {
	if m.completed {
		return
	}
	m.completed = true
	if m.handler.InError() {
		return
	}
	switch m.op {
	case miscWait:
		// Resolved at Begin; nothing outstanding survives to here.
	case miscFlush:
		// The dispatch layer holds no buffers of its own beyond pending
		// non-advancing output, which FLUSH must not terminate.
	case miscBackspace:
		m.u.backspace(&m.handler)
	case miscEndfile:
		m.u.endfile(&m.handler)
	case miscRewind:
		m.u.rewind()
	}
}

func (m *externalMiscStmt) EndIoStatement() iostat.Iostat {
	m.CompleteOperation()
	return m.endExternal()
}

// ---- no-op and erroneous statements ----

// noopStmt satisfies the call sequence for statements with nothing to do,
// e.g. CLOSE of an unconnected unit.
type noopStmt struct {
	stmtBase
	unitNumber int
}

// erroneousStmt is the never-null failure encoding: it carries the Iostat of
// a Begin-time failure and absorbs the rest of the call sequence as no-ops.
type erroneousStmt struct {
	stmtBase
	u *ExternalFileUnit // may be nil
}

func (e *erroneousStmt) unit() *ExternalFileUnit { return e.u }

// ---- INQUIRE ----

type inquireUnitStmt struct {
	externalStmtBase
}

type inquireNoUnitStmt struct {
	stmtBase
	unitNumber int
}

type inquireUnconnectedFileStmt struct {
	stmtBase
	path string
}

type inquireIOLengthStmt struct {
	stmtBase
	bytes int
}

// Emit accumulates the would-be unformatted record length.
func (q *inquireIOLengthStmt) Emit(p []byte) bool {
	if q.handler.InError() {
		return false
	}
	q.bytes += len(p)
	return true
}

func (q *inquireIOLengthStmt) Bytes() int { return q.bytes }
