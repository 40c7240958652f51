package fio

import (
	"fmt"

	"github.com/soypat/go-fortran-io/iostat"
)

// Severity of a condition raised while driving an I/O statement.
//
//   - SeverityOk: nothing happened.
//   - SeverityRecoverable: a data- or environment-driven condition. It
//     attaches an Iostat to the statement and is surfaced at EndIoStatement
//     according to the IOSTAT/ERR/END/EOR/IOMSG flags registered for the
//     statement. Never terminates the process.
//   - SeverityFatal: a contract violation by the generated calling code
//     (e.g. an OPEN-only setter invoked outside an OPEN). Terminates the
//     process unconditionally with a diagnostic.
type Severity int

const (
	SeverityOk Severity = iota
	SeverityRecoverable
	SeverityFatal
)

// Terminator crashes the process with a source-located diagnostic. It is the
// fatal half of the error model and is kept separate from the recoverable
// [iostat.Iostat] taxonomy so a code generator bug can never masquerade as a
// user-facing I/O error.
type Terminator struct {
	rt         *Runtime
	sourceFile string
	sourceLine int
}

func (t Terminator) SourceFileName() string { return t.sourceFile }
func (t Terminator) SourceLine() int        { return t.sourceLine }

// Crash reports a contract violation and terminates. It does not return
// unless the runtime's crash hook was replaced with one that panics (tests).
func (t Terminator) Crash(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if t.sourceFile != "" {
		msg = fmt.Sprintf("%s:%d: %s", t.sourceFile, t.sourceLine, msg)
	}
	t.rt.crash("fatal Fortran runtime I/O error: " + msg)
	panic("unreachable: crash hook returned") // crash hooks must not return
}

type handlerFlag uint8

const (
	hasIoStat handlerFlag = 1 << iota
	hasErr
	hasEnd
	hasEor
	hasIoMsg
)

// ErrorHandler buffers the first recoverable condition signaled on one
// statement. The first error wins; later signals are ignored. Flags are
// registered once at the start of the statement and govern what surfaces at
// finalize time.
type ErrorHandler struct {
	Terminator
	stat         iostat.Iostat
	flags        handlerFlag
	msg          string // formatted diagnostic, empty means use stat.Msg()
	pendingError iostat.Iostat
}

func (h *ErrorHandler) HasIoStat()   { h.flags |= hasIoStat }
func (h *ErrorHandler) HasErrLabel() { h.flags |= hasErr }
func (h *ErrorHandler) HasEndLabel() { h.flags |= hasEnd }
func (h *ErrorHandler) HasEorLabel() { h.flags |= hasEor }
func (h *ErrorHandler) HasIoMsg()    { h.flags |= hasIoMsg }

func (h *ErrorHandler) InError() bool {
	return h.stat != iostat.Ok || h.pendingError != iostat.Ok
}

// SignalError attaches a recoverable condition. The first error on a
// statement wins: a pending Begin-time condition is promoted before the new
// code is considered, and a second signal is dropped.
func (h *ErrorHandler) SignalError(stat iostat.Iostat, format string, args ...any) {
	h.takePending()
	if stat == iostat.Ok || h.stat != iostat.Ok {
		return
	}
	h.stat = stat
	if format != "" {
		h.msg = fmt.Sprintf(format, args...)
	}
	if h.rt != nil {
		h.rt.log.Debug("I/O statement error", "iostat", stat, "msg", h.GetIoMsgString())
	}
}

// SignalErrorStat attaches stat with its default message.
func (h *ErrorHandler) SignalErrorStat(stat iostat.Iostat) {
	h.SignalError(stat, "")
}

// Signal attaches the free-form GenericError code with a caller message.
func (h *ErrorHandler) Signal(format string, args ...any) {
	h.SignalError(iostat.GenericError, format, args...)
}

// SignalEnd attaches the end-of-file condition.
func (h *ErrorHandler) SignalEnd() { h.SignalErrorStat(iostat.End) }

// SignalEor attaches the end-of-record condition.
func (h *ErrorHandler) SignalEor() { h.SignalErrorStat(iostat.Eor) }

// SetPendingError records a condition detected at Begin time, before any
// other call on the statement can run. It is folded into the statement's
// state by the next Check or finalize.
func (h *ErrorHandler) SetPendingError(stat iostat.Iostat) {
	if h.pendingError == iostat.Ok {
		h.pendingError = stat
	}
}

// takePending promotes a pending Begin-time error into the signaled state.
func (h *ErrorHandler) takePending() {
	if h.pendingError != iostat.Ok {
		p := h.pendingError
		h.pendingError = iostat.Ok
		h.SignalErrorStat(p)
	}
}

func (h *ErrorHandler) GetIoStat() iostat.Iostat {
	h.takePending()
	return h.stat
}

// GetIoMsgString returns the diagnostic for the retained condition.
func (h *ErrorHandler) GetIoMsgString() string {
	if h.msg != "" {
		return h.msg
	}
	return h.stat.Msg()
}

// GetIoMsg copies the diagnostic into dst, truncating rather than
// overflowing, and returns the number of bytes copied. Trailing bytes of dst
// are blank-filled in the Fortran CHARACTER assignment manner.
func (h *ErrorHandler) GetIoMsg(dst []byte) int {
	h.takePending()
	msg := h.GetIoMsgString()
	n := copy(dst, msg)
	for i := n; i < len(dst); i++ {
		dst[i] = ' '
	}
	return n
}
