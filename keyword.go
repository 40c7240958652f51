package fio

import (
	"github.com/agnivade/levenshtein"
	"github.com/soypat/go-fortran-io/iostat"
)

// identifyValue matches value against a fixed keyword table by exact
// whole-string, case-sensitive comparison. No abbreviations, no case
// folding. Returns the index of the match or -1.
func identifyValue(value string, keywords []string) int {
	for i, kw := range keywords {
		if value == kw {
			return i
		}
	}
	return -1
}

// suggestKeyword returns the closest table entry within two edits of value,
// for the ErrorInKeyword diagnostic. Empty when nothing is close.
func suggestKeyword(value string, keywords []string) string {
	best, bestDist := "", 3
	for _, kw := range keywords {
		if d := levenshtein.ComputeDistance(value, kw); d < bestDist {
			best, bestDist = kw, d
		}
	}
	return best
}

// signalBadKeyword raises ErrorInKeyword naming the control list item and
// the rejected value.
func signalBadKeyword(handler *ErrorHandler, what, value string, keywords []string) {
	if hint := suggestKeyword(value, keywords); hint != "" {
		handler.SignalError(iostat.ErrorInKeyword,
			"Invalid %s='%s', did you mean '%s'?", what, value, hint)
	} else {
		handler.SignalError(iostat.ErrorInKeyword, "Invalid %s='%s'", what, value)
	}
}

var yesOrNoKeywords = []string{"YES", "NO"}

// yesOrNo decodes a YES/NO control list value, raising ErrorInKeyword on
// anything else and defaulting to false.
func yesOrNo(value, what string, handler *ErrorHandler) bool {
	switch identifyValue(value, yesOrNoKeywords) {
	case 0:
		return true
	case 1:
		return false
	default:
		signalBadKeyword(handler, what, value, yesOrNoKeywords)
		return false
	}
}
