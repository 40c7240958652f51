package fio

import (
	"strings"

	"github.com/soypat/go-fortran-io/iostat"
)

// Control list setters. Shared algorithm for every keyword item:
//
//  1. Confirm the live variant accepts the keyword. A mismatch is a code
//     generation bug and crashes, unless the variant is already erroneous,
//     in which case the call is absorbed as a no-op.
//  2. Confirm the operation has not completed (OPEN items freeze once the
//     unit identity is finalized). Calling after that point crashes.
//  3. Match the value against the keyword table: exact, whole-string,
//     case-sensitive. No abbreviations.
//  4. No match raises the recoverable ErrorInKeyword naming the item and
//     the rejected value.
//  5. A match mutates the per-statement Modes (transfer items) or the
//     connection's persistent attributes (OPEN items).
//
// A setter's return value reports its own completion; the statement's error
// state is inspected separately (GetIoErrorHandler, EndIoStatement), so a
// true return does not imply the statement is still clean.

// openStmtFor implements steps 1 and 2 for OPEN-only setters. Returns nil
// when the statement is erroneous and the call should be absorbed.
func (ck *Cookie) openStmtFor(name string) *openStmt {
	switch s := ck.forCall(name).(type) {
	case *openStmt:
		if s.completed {
			s.handler.Crash("%s() called after the OPEN statement completed", name)
		}
		return s
	case *noopStmt, *erroneousStmt:
		return nil
	default:
		ck.v.base().handler.Crash("%s() called when not in an OPEN statement", name)
	}
	return nil
}

// SetAdvance handles ADVANCE= on a transfer statement. Non-advancing I/O is
// rejected on direct access units. On child I/O the item is ignored without
// validation: control list items bind to the outermost statement.
func (ck *Cookie) SetAdvance(keyword string) bool {
	v := ck.forCall("SetAdvance")
	h := &v.base().handler
	nonAdvancing := !yesOrNo(keyword, "ADVANCE", h)
	access := AccessSequential
	if u := v.unit(); u != nil {
		access = u.access
	}
	if nonAdvancing && access == AccessDirect {
		h.Signal("Non-advancing I/O attempted on direct access file")
	} else if u := v.unit(); u != nil && u.GetChildIo() != nil {
		// ADVANCE= is ignored for child I/O.
	} else {
		v.base().modes.nonAdvancing = nonAdvancing
	}
	return !h.InError()
}

var blankKeywords = []string{"NULL", "ZERO"}

// SetBlank handles BLANK=.
func (ck *Cookie) SetBlank(keyword string) bool {
	v := ck.forCall("SetBlank")
	switch identifyValue(keyword, blankKeywords) {
	case 0:
		v.base().modes.setFlag(blankZero, false)
		return true
	case 1:
		v.base().modes.setFlag(blankZero, true)
		return true
	default:
		signalBadKeyword(&v.base().handler, "BLANK", keyword, blankKeywords)
		return false
	}
}

var decimalKeywords = []string{"COMMA", "POINT"}

// SetDecimal handles DECIMAL=.
func (ck *Cookie) SetDecimal(keyword string) bool {
	v := ck.forCall("SetDecimal")
	switch identifyValue(keyword, decimalKeywords) {
	case 0:
		v.base().modes.setFlag(decimalComma, true)
		return true
	case 1:
		v.base().modes.setFlag(decimalComma, false)
		return true
	default:
		signalBadKeyword(&v.base().handler, "DECIMAL", keyword, decimalKeywords)
		return false
	}
}

var delimKeywords = []string{"APOSTROPHE", "QUOTE", "NONE"}

// SetDelim handles DELIM=.
func (ck *Cookie) SetDelim(keyword string) bool {
	v := ck.forCall("SetDelim")
	switch identifyValue(keyword, delimKeywords) {
	case 0:
		v.base().modes.delim = '\''
		return true
	case 1:
		v.base().modes.delim = '"'
		return true
	case 2:
		v.base().modes.delim = 0
		return true
	default:
		signalBadKeyword(&v.base().handler, "DELIM", keyword, delimKeywords)
		return false
	}
}

// SetPad handles PAD=.
func (ck *Cookie) SetPad(keyword string) bool {
	v := ck.forCall("SetPad")
	h := &v.base().handler
	v.base().modes.pad = yesOrNo(keyword, "PAD", h)
	return !h.InError()
}

// SetPos handles POS= on a stream access unit.
func (ck *Cookie) SetPos(pos int64) bool {
	v := ck.forCall("SetPos")
	h := &v.base().handler
	if u := v.unit(); u != nil {
		return u.SetStreamPos(pos, h)
	}
	switch v.(type) {
	case *noopStmt, *erroneousStmt:
	default:
		h.Crash("SetPos() called on an internal unit")
	}
	return false
}

// SetRec handles REC= on a direct access unit. The call itself reports
// completion even when the range check has signaled a statement error; the
// statement's own error state is separately inspectable.
func (ck *Cookie) SetRec(rec int64) bool {
	v := ck.forCall("SetRec")
	h := &v.base().handler
	if u := v.unit(); u != nil {
		if u.GetChildIo() != nil {
			h.SignalError(iostat.BadOpOnChildUnit, "REC= specifier on child I/O")
		} else {
			u.SetDirectRec(rec, h)
		}
	} else {
		switch v.(type) {
		case *noopStmt, *erroneousStmt:
		default:
			h.Crash("SetRec() called on an internal unit")
		}
	}
	return true
}

var roundKeywords = []string{"UP", "DOWN", "ZERO", "NEAREST", "COMPATIBLE", "PROCESSOR_DEFINED"}

// SetRound handles ROUND=.
func (ck *Cookie) SetRound(keyword string) bool {
	v := ck.forCall("SetRound")
	m := &v.base().modes
	switch identifyValue(keyword, roundKeywords) {
	case 0:
		m.round = RoundUp
	case 1:
		m.round = RoundDown
	case 2:
		m.round = RoundToZero
	case 3:
		m.round = RoundNearest
	case 4:
		m.round = RoundCompatible
	case 5:
		m.round = ck.rt().env.DefaultOutputRoundingMode
	default:
		signalBadKeyword(&v.base().handler, "ROUND", keyword, roundKeywords)
		return false
	}
	return true
}

var signKeywords = []string{"PLUS", "SUPPRESS", "PROCESSOR_DEFINED"}

// SetSign handles SIGN=. The processor default is sign suppression.
func (ck *Cookie) SetSign(keyword string) bool {
	v := ck.forCall("SetSign")
	switch identifyValue(keyword, signKeywords) {
	case 0:
		v.base().modes.setFlag(signPlus, true)
		return true
	case 1, 2:
		v.base().modes.setFlag(signPlus, false)
		return true
	default:
		signalBadKeyword(&v.base().handler, "SIGN", keyword, signKeywords)
		return false
	}
}

var accessKeywords = []string{"SEQUENTIAL", "DIRECT", "STREAM", "APPEND"}

// SetAccess handles ACCESS= on an OPEN statement. ACCESS='APPEND' is a
// compatibility alias for POSITION='APPEND'.
func (ck *Cookie) SetAccess(keyword string) bool {
	open := ck.openStmtFor("SetAccess")
	if open == nil {
		return false
	}
	switch identifyValue(keyword, accessKeywords) {
	case 0:
		open.hasAccess, open.access = true, AccessSequential
	case 1:
		open.hasAccess, open.access = true, AccessDirect
	case 2:
		open.hasAccess, open.access = true, AccessStream
	case 3:
		open.hasPosition, open.position = true, PositionAppend
	default:
		signalBadKeyword(&open.handler, "ACCESS", keyword, accessKeywords)
	}
	return true
}

var actionKeywords = []string{"READ", "WRITE", "READWRITE"}

// SetAction handles ACTION= on an OPEN statement. On a unit that is already
// open the action may not change the established capabilities.
func (ck *Cookie) SetAction(keyword string) bool {
	open := ck.openStmtFor("SetAction")
	if open == nil {
		return false
	}
	var mayRead, mayWrite bool
	switch identifyValue(keyword, actionKeywords) {
	case 0:
		mayRead, mayWrite = true, false
	case 1:
		mayRead, mayWrite = false, true
	case 2:
		mayRead, mayWrite = true, true
	default:
		signalBadKeyword(&open.handler, "ACTION", keyword, actionKeywords)
		return false
	}
	if open.wasExtant && (mayRead != open.u.mayRead || mayWrite != open.u.mayWrite) {
		open.handler.Signal("ACTION= may not be changed on an open unit")
	}
	open.hasAction, open.mayRead, open.mayWrite = true, mayRead, mayWrite
	return true
}

// SetAsynchronous handles ASYNCHRONOUS= on OPEN (permitting asynchronous
// transfers on the unit) and on transfer statements (flagging this transfer
// as asynchronous, which the unit must permit).
func (ck *Cookie) SetAsynchronous(keyword string) bool {
	v := ck.forCall("SetAsynchronous")
	h := &v.base().handler
	isYes := yesOrNo(keyword, "ASYNCHRONOUS", h)
	switch s := v.(type) {
	case *openStmt:
		if s.completed {
			h.Crash("SetAsynchronous() called after the OPEN statement completed")
		}
		s.hasAsync, s.mayAsync = true, isYes
	case *noopStmt, *erroneousStmt:
		// absorbed
	default:
		ext, ok := v.(externalVariant)
		if !ok {
			h.Crash("SetAsynchronous() called when not in an OPEN or external I/O statement")
		}
		if isYes {
			e := ext.extBase()
			if e.u.mayAsync {
				e.SetAsynchronous()
			} else {
				h.SignalErrorStat(iostat.BadAsynchronous)
			}
		}
	}
	return !h.InError()
}

var carriagecontrolKeywords = []string{"LIST", "FORTRAN", "NONE"}

// SetCarriagecontrol handles CARRIAGECONTROL= on an OPEN statement. Only
// the default LIST control is implemented.
func (ck *Cookie) SetCarriagecontrol(keyword string) bool {
	open := ck.openStmtFor("SetCarriagecontrol")
	if open == nil {
		return false
	}
	switch identifyValue(keyword, carriagecontrolKeywords) {
	case 0:
		return true
	case 1, 2:
		open.handler.SignalError(iostat.ErrorInKeyword,
			"Unimplemented CARRIAGECONTROL='%s'", keyword)
		return false
	default:
		signalBadKeyword(&open.handler, "CARRIAGECONTROL", keyword, carriagecontrolKeywords)
		return false
	}
}

var convertKeywords = []string{"UNKNOWN", "NATIVE", "LITTLE_ENDIAN", "BIG_ENDIAN", "SWAP"}

// SetConvert handles CONVERT= on an OPEN statement.
func (ck *Cookie) SetConvert(keyword string) bool {
	open := ck.openStmtFor("SetConvert")
	if open == nil {
		return false
	}
	switch identifyValue(keyword, convertKeywords) {
	case 0:
		open.hasConvert, open.convert = true, ConvertUnknown
	case 1:
		open.hasConvert, open.convert = true, ConvertNative
	case 2:
		open.hasConvert, open.convert = true, ConvertLittleEndian
	case 3:
		open.hasConvert, open.convert = true, ConvertBigEndian
	case 4:
		open.hasConvert, open.convert = true, ConvertSwap
	default:
		signalBadKeyword(&open.handler, "CONVERT", keyword, convertKeywords)
		return false
	}
	return true
}

var encodingKeywords = []string{"UTF-8", "DEFAULT"}

// SetEncoding handles ENCODING= on an OPEN statement. The encoding may be
// changed on an open unit.
func (ck *Cookie) SetEncoding(keyword string) bool {
	open := ck.openStmtFor("SetEncoding")
	if open == nil {
		return false
	}
	switch identifyValue(keyword, encodingKeywords) {
	case 0:
		open.hasEncoding, open.isUTF8 = true, true
	case 1:
		open.hasEncoding, open.isUTF8 = true, false
	default:
		signalBadKeyword(&open.handler, "ENCODING", keyword, encodingKeywords)
	}
	return true
}

var formKeywords = []string{"FORMATTED", "UNFORMATTED"}

// SetForm handles FORM= on an OPEN statement.
func (ck *Cookie) SetForm(keyword string) bool {
	open := ck.openStmtFor("SetForm")
	if open == nil {
		return false
	}
	switch identifyValue(keyword, formKeywords) {
	case 0:
		open.hasForm, open.form = true, FormattedUnit
	case 1:
		open.hasForm, open.form = true, UnformattedUnit
	default:
		signalBadKeyword(&open.handler, "FORM", keyword, formKeywords)
	}
	return true
}

var positionKeywords = []string{"ASIS", "REWIND", "APPEND"}

// SetPosition handles POSITION= on an OPEN statement.
func (ck *Cookie) SetPosition(keyword string) bool {
	open := ck.openStmtFor("SetPosition")
	if open == nil {
		return false
	}
	switch identifyValue(keyword, positionKeywords) {
	case 0:
		open.hasPosition, open.position = true, PositionAsIs
	case 1:
		open.hasPosition, open.position = true, PositionRewind
	case 2:
		open.hasPosition, open.position = true, PositionAppend
	default:
		signalBadKeyword(&open.handler, "POSITION", keyword, positionKeywords)
	}
	return true
}

// SetRecl handles RECL= on an OPEN statement. RECL must be positive, and may
// not change on a unit that is already open.
func (ck *Cookie) SetRecl(n int64) bool {
	open := ck.openStmtFor("SetRecl")
	if open == nil {
		return false
	}
	switch {
	case n <= 0:
		open.handler.SignalError(iostat.OpenBadRecl, "RECL= must be greater than zero")
		return false
	case open.wasExtant && open.u.openRecl != 0 && open.u.openRecl != n:
		open.handler.Signal("RECL= may not be changed for an open unit")
		return false
	default:
		open.hasRecl, open.recl = true, n
		return true
	}
}

var openStatusKeywords = []string{"OLD", "NEW", "SCRATCH", "REPLACE", "UNKNOWN"}
var closeStatusKeywords = []string{"KEEP", "DELETE"}

// SetStatus handles STATUS= on OPEN and CLOSE statements.
func (ck *Cookie) SetStatus(keyword string) bool {
	switch s := ck.forCall("SetStatus").(type) {
	case *openStmt:
		if s.completed {
			s.handler.Crash("SetStatus() called after the OPEN statement completed")
		}
		switch identifyValue(keyword, openStatusKeywords) {
		case 0:
			s.hasStatus, s.status = true, OpenStatusOld
		case 1:
			s.hasStatus, s.status = true, OpenStatusNew
		case 2:
			s.hasStatus, s.status = true, OpenStatusScratch
		case 3:
			s.hasStatus, s.status = true, OpenStatusReplace
		case 4:
			s.hasStatus, s.status = true, OpenStatusUnknown
		default:
			signalBadKeyword(&s.handler, "STATUS", keyword, openStatusKeywords)
			return false
		}
		return true
	case *closeStmt:
		switch identifyValue(keyword, closeStatusKeywords) {
		case 0:
			s.status = CloseStatusKeep
		case 1:
			s.status = CloseStatusDelete
		default:
			signalBadKeyword(&s.handler, "STATUS", keyword, closeStatusKeywords)
			return false
		}
		return true
	case *noopStmt, *erroneousStmt:
		// Don't bother validating STATUS= in a no-op CLOSE.
		return true
	default:
		ck.v.base().handler.Crash("SetStatus() called when not in an OPEN or CLOSE statement")
	}
	return false
}

// SetFile handles FILE= on an OPEN statement. Trailing blanks are not
// significant.
func (ck *Cookie) SetFile(path string) bool {
	open := ck.openStmtFor("SetFile")
	if open == nil {
		return false
	}
	open.hasPath, open.path = true, strings.TrimRight(path, " ")
	return true
}

// GetNewUnit completes an OPEN(NEWUNIT=) and stores the allocated unit
// number. A failed OPEN does not modify the result.
func (ck *Cookie) GetNewUnit(result *int) bool {
	v := ck.forCall("GetNewUnit")
	open, isOpen := v.(*openStmt)
	if !isOpen {
		switch v.(type) {
		case *noopStmt, *erroneousStmt:
		default:
			v.base().handler.Crash("GetNewUnit() called when not in an OPEN statement")
		}
		return false
	}
	if !open.handler.InError() {
		open.CompleteOperation()
	}
	if open.handler.InError() {
		return false
	}
	*result = open.u.unitNumber
	return true
}

// rt fetches the owning runtime through whatever variant is live.
func (ck *Cookie) rt() *Runtime {
	return ck.v.base().handler.rt
}
