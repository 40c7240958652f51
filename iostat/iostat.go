// Package iostat defines the status code taxonomy surfaced by Fortran I/O
// statements. Ok is the only non-error value. Codes here are recoverable
// conditions attached to a statement's error handler; internal contract
// violations are not represented and terminate the process instead.
package iostat

type Iostat int

// List of all statement status codes.
// When adding a new code add it in between blocks since we use comparison
// functions to check properties of codes.
const (
	// Successful completion of the statement.
	Ok Iostat = 0

	// End-of-file and end-of-record conditions are negative per the Fortran
	// standard so that IOSTAT= tests of the form (stat < 0) work.
	End Iostat = -1
	Eor Iostat = -2

	// ==================== UNIT RESOLUTION ====================

	BadUnitNumber Iostat = iota + 8
	UnitOverflow

	// ==================== FORMATTING CONSISTENCY ====================

	FormattedIoOnUnformattedUnit
	UnformattedIoOnFormattedUnit
	ListIoOnDirectAccessUnit

	// ==================== NESTING ====================

	BadOpOnChildUnit

	// ==================== ASYNCHRONOUS ====================

	BadWaitId
	BadWaitUnit
	BadAsynchronous

	// ==================== POSITIONING ====================

	BadFlushUnit
	BadBackspaceUnit
	CannotBackspaceUnformattedStream

	// ==================== CONTROL LIST ====================

	ErrorInKeyword
	OpenBadRecl
	OpenBadAppend
	ReadFromWriteOnly
	WriteToReadOnly

	// Free-form error signaled with a caller-supplied message.
	GenericError

	numCodes
)

// IsError returns true for every code except Ok. End-of-file and
// end-of-record count as errors for first-error-wins retention even though
// they are surfaced through END=/EOR= rather than ERR=.
func (s Iostat) IsError() bool { return s != Ok }

// IsEnd reports the end-of-file condition.
func (s Iostat) IsEnd() bool { return s == End }

// IsEor reports the end-of-record condition.
func (s Iostat) IsEor() bool { return s == Eor }

// IsUnitError returns true if the code concerns unit number resolution.
func (s Iostat) IsUnitError() bool { return s == BadUnitNumber || s == UnitOverflow }

// Msg returns the default diagnostic text for the code. Statements that
// signal a code with an explicit formatted message override this text.
func (s Iostat) Msg() string {
	switch s {
	case Ok:
		return ""
	case End:
		return "end of file"
	case Eor:
		return "end of record"
	case BadUnitNumber:
		return "bad unit number in I/O statement"
	case UnitOverflow:
		return "UNIT number is out of range"
	case FormattedIoOnUnformattedUnit:
		return "attempted formatted I/O on unformatted file"
	case UnformattedIoOnFormattedUnit:
		return "attempted unformatted I/O on formatted file"
	case ListIoOnDirectAccessUnit:
		return "attempted list-directed I/O on direct access file"
	case BadOpOnChildUnit:
		return "invalid operation on child I/O unit"
	case BadWaitId:
		return "unknown ID= in WAIT statement"
	case BadWaitUnit:
		return "bad unit number in WAIT statement"
	case BadAsynchronous:
		return "ASYNCHRONOUS='YES' not allowed on this unit"
	case BadFlushUnit:
		return "bad unit number in FLUSH statement"
	case BadBackspaceUnit:
		return "cannot BACKSPACE an unconnected unit"
	case CannotBackspaceUnformattedStream:
		return "cannot BACKSPACE an unformatted stream file"
	case ErrorInKeyword:
		return "bad keyword value in I/O control list"
	case OpenBadRecl:
		return "RECL= is invalid"
	case OpenBadAppend:
		return "cannot position unit for appending"
	case ReadFromWriteOnly:
		return "attempted input from write-only unit"
	case WriteToReadOnly:
		return "attempted output to read-only unit"
	case GenericError:
		return "I/O error"
	}
	return "invalid I/O status code"
}

func (s Iostat) String() string {
	switch s {
	case Ok:
		return "Ok"
	case End:
		return "End"
	case Eor:
		return "Eor"
	case BadUnitNumber:
		return "BadUnitNumber"
	case UnitOverflow:
		return "UnitOverflow"
	case FormattedIoOnUnformattedUnit:
		return "FormattedIoOnUnformattedUnit"
	case UnformattedIoOnFormattedUnit:
		return "UnformattedIoOnFormattedUnit"
	case ListIoOnDirectAccessUnit:
		return "ListIoOnDirectAccessUnit"
	case BadOpOnChildUnit:
		return "BadOpOnChildUnit"
	case BadWaitId:
		return "BadWaitId"
	case BadWaitUnit:
		return "BadWaitUnit"
	case BadAsynchronous:
		return "BadAsynchronous"
	case BadFlushUnit:
		return "BadFlushUnit"
	case BadBackspaceUnit:
		return "BadBackspaceUnit"
	case CannotBackspaceUnformattedStream:
		return "CannotBackspaceUnformattedStream"
	case ErrorInKeyword:
		return "ErrorInKeyword"
	case OpenBadRecl:
		return "OpenBadRecl"
	case OpenBadAppend:
		return "OpenBadAppend"
	case ReadFromWriteOnly:
		return "ReadFromWriteOnly"
	case WriteToReadOnly:
		return "WriteToReadOnly"
	case GenericError:
		return "GenericError"
	}
	return "Iostat(" + itoa(int(s)) + ")"
}

// itoa avoids importing strconv for the one malformed-code path.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b [20]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		b[i] = '-'
	}
	return string(b[i:])
}
