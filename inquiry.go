package fio

import "os"

// INQUIRE answers. Generated code identifies the inquiry by a compact
// base-26 hash of the keyword rather than by string, so the hash can be
// computed at compile time; the runtime decodes it back before dispatching
// to the live statement variant. Keywords that do not apply to the variant
// raise a recoverable error and leave the result in its undefined form.

// InquiryKeywordHash is the base-26 encoding of an INQUIRE keyword.
type InquiryKeywordHash int64

// HashInquiryKeyword encodes an alphabetic keyword, case-insensitively.
// Returns 0 for anything that is not a keyword-shaped string.
func HashInquiryKeyword(keyword string) InquiryKeywordHash {
	if len(keyword) == 0 || len(keyword) > 13 {
		return 0 // 13 letters is all a 64-bit hash can carry
	}
	hash := int64(1)
	for i := 0; i < len(keyword); i++ {
		c := keyword[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c < 'A' || c > 'Z' {
			return 0
		}
		hash = hash*26 + int64(c-'A')
	}
	return InquiryKeywordHash(hash)
}

// Decode recovers the keyword text from its hash.
func (h InquiryKeywordHash) Decode() (string, bool) {
	v := int64(h)
	if v <= 1 {
		return "", false
	}
	var buf [13]byte
	i := len(buf)
	for v > 1 {
		if i == 0 {
			return "", false
		}
		i--
		buf[i] = byte('A' + v%26)
		v /= 26
	}
	return string(buf[i:]), true
}

func yesOrNoAnswer(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

// ---- INQUIRE(UNIT=) of a connected unit ----

func (q *inquireUnitStmt) inquireStr(keyword string) (string, bool) {
	u := q.u
	switch keyword {
	case "ACCESS":
		return u.access.String(), true
	case "ACTION":
		switch {
		case u.mayRead && u.mayWrite:
			return "READWRITE", true
		case u.mayRead:
			return "READ", true
		default:
			return "WRITE", true
		}
	case "ASYNCHRONOUS":
		return yesOrNoAnswer(u.mayAsync), true
	case "BLANK":
		if u.formatting != FormattedUnit {
			return "UNDEFINED", true
		}
		if u.modes.flag(blankZero) {
			return "ZERO", true
		}
		return "NULL", true
	case "DECIMAL":
		if u.formatting != FormattedUnit {
			return "UNDEFINED", true
		}
		if u.modes.flag(decimalComma) {
			return "COMMA", true
		}
		return "POINT", true
	case "DELIM":
		switch u.modes.delim {
		case '\'':
			return "APOSTROPHE", true
		case '"':
			return "QUOTE", true
		default:
			return "NONE", true
		}
	case "DIRECT":
		return yesOrNoAnswer(u.access == AccessDirect), true
	case "ENCODING":
		if u.isUTF8 {
			return "UTF-8", true
		}
		return "UNKNOWN", true
	case "FORM":
		switch u.formatting {
		case FormattedUnit:
			return "FORMATTED", true
		case UnformattedUnit:
			return "UNFORMATTED", true
		default:
			return "UNDEFINED", true
		}
	case "FORMATTED":
		switch u.formatting {
		case FormattingUnset:
			return "UNKNOWN", true
		default:
			return yesOrNoAnswer(u.formatting == FormattedUnit), true
		}
	case "NAME":
		if u.path == "" {
			return "UNDEFINED", true
		}
		return u.path, true
	case "PAD":
		return yesOrNoAnswer(u.modes.pad), true
	case "POSITION":
		if u.access == AccessDirect {
			return "UNDEFINED", true
		}
		switch u.position {
		case PositionRewind:
			return "REWIND", true
		case PositionAppend:
			return "APPEND", true
		default:
			return "ASIS", true
		}
	case "READ":
		return yesOrNoAnswer(u.mayRead), true
	case "READWRITE":
		return yesOrNoAnswer(u.mayRead && u.mayWrite), true
	case "ROUND":
		return u.modes.round.String(), true
	case "SEQUENTIAL":
		return yesOrNoAnswer(u.access == AccessSequential), true
	case "SIGN":
		if u.modes.flag(signPlus) {
			return "PLUS", true
		}
		return "SUPPRESS", true
	case "STREAM":
		return yesOrNoAnswer(u.access == AccessStream), true
	case "UNFORMATTED":
		switch u.formatting {
		case FormattingUnset:
			return "UNKNOWN", true
		default:
			return yesOrNoAnswer(u.formatting == UnformattedUnit), true
		}
	case "WRITE":
		return yesOrNoAnswer(u.mayWrite), true
	}
	return "", false
}

func (q *inquireUnitStmt) inquireLogical(keyword string) (bool, bool) {
	switch keyword {
	case "EXIST":
		return true, true
	case "NAMED":
		return q.u.path != "", true
	case "OPENED":
		return q.u.IsConnected(), true
	case "PENDING":
		return len(q.u.pendingIDs) > 0, true
	}
	return false, false
}

func (q *inquireUnitStmt) inquireInt(keyword string) (int64, bool) {
	u := q.u
	switch keyword {
	case "NEXTREC":
		if u.access != AccessDirect {
			return 0, false
		}
		return u.directRec, true
	case "NUMBER":
		return int64(u.unitNumber), true
	case "POS":
		return u.filePos + 1, true
	case "RECL":
		if u.openRecl <= 0 {
			return -1, true
		}
		return u.openRecl, true
	case "SIZE":
		if u.file == nil {
			return -1, true
		}
		return u.file.Size(), true
	}
	return 0, false
}

// ---- INQUIRE(UNIT=) of an unrecognized unit number ----

func (q *inquireNoUnitStmt) inquireStr(keyword string) (string, bool) {
	switch keyword {
	case "ACCESS", "ACTION", "ASYNCHRONOUS", "BLANK", "DECIMAL", "DELIM",
		"ENCODING", "FORM", "NAME", "PAD", "POSITION", "ROUND", "SIGN":
		return "UNDEFINED", true
	case "DIRECT", "FORMATTED", "READ", "READWRITE", "SEQUENTIAL", "STREAM",
		"UNFORMATTED", "WRITE":
		return "UNKNOWN", true
	}
	return "", false
}

func (q *inquireNoUnitStmt) inquireLogical(keyword string) (bool, bool) {
	switch keyword {
	case "EXIST":
		return validUnitNumber(q.unitNumber) || q.unitNumber < 0, true
	case "NAMED", "OPENED", "PENDING":
		return false, true
	}
	return false, false
}

func (q *inquireNoUnitStmt) inquireInt(keyword string) (int64, bool) {
	switch keyword {
	case "NUMBER":
		return int64(q.unitNumber), true
	case "RECL", "SIZE":
		return -1, true
	}
	return 0, false
}

// ---- INQUIRE(FILE=) of a file with no connected unit ----

func (q *inquireUnconnectedFileStmt) inquireStr(keyword string) (string, bool) {
	switch keyword {
	case "ACCESS", "ACTION", "ASYNCHRONOUS", "BLANK", "DECIMAL", "DELIM",
		"ENCODING", "FORM", "PAD", "POSITION", "ROUND", "SIGN":
		return "UNDEFINED", true
	case "DIRECT", "FORMATTED", "SEQUENTIAL", "STREAM", "UNFORMATTED":
		return "UNKNOWN", true
	case "READ", "READWRITE", "WRITE":
		return "UNKNOWN", true
	case "NAME":
		return q.path, true
	}
	return "", false
}

func (q *inquireUnconnectedFileStmt) inquireLogical(keyword string) (bool, bool) {
	switch keyword {
	case "EXIST":
		_, err := os.Stat(q.path)
		return err == nil, true
	case "NAMED":
		return true, true
	case "OPENED", "PENDING":
		return false, true
	}
	return false, false
}

func (q *inquireUnconnectedFileStmt) inquireInt(keyword string) (int64, bool) {
	switch keyword {
	case "RECL":
		return -1, true
	case "SIZE":
		info, err := os.Stat(q.path)
		if err != nil {
			return -1, true
		}
		return info.Size(), true
	}
	return 0, false
}

// ---- Cookie-level inquiry calls ----

func (ck *Cookie) decodeInquiry(name string, inquiry InquiryKeywordHash) (string, stmtVariant) {
	v := ck.forCall(name)
	keyword, ok := inquiry.Decode()
	if !ok {
		v.base().handler.Crash("%s(): bad inquiry keyword hash %d", name, inquiry)
	}
	return keyword, v
}

// InquireCharacter answers a character-valued inquiry into result, which is
// blank-filled past the answer.
func (ck *Cookie) InquireCharacter(inquiry InquiryKeywordHash, result []byte) bool {
	keyword, v := ck.decodeInquiry("InquireCharacter", inquiry)
	s, ok := v.inquireStr(keyword)
	if !ok {
		v.base().handler.Signal("bad inquiry keyword '%s' for this I/O statement", keyword)
		s = ""
	}
	n := copy(result, s)
	for i := n; i < len(result); i++ {
		result[i] = ' '
	}
	return ok
}

// InquireLogical answers a logical-valued inquiry.
func (ck *Cookie) InquireLogical(inquiry InquiryKeywordHash, result *bool) bool {
	keyword, v := ck.decodeInquiry("InquireLogical", inquiry)
	b, ok := v.inquireLogical(keyword)
	if !ok {
		v.base().handler.Signal("bad inquiry keyword '%s' for this I/O statement", keyword)
	}
	*result = b
	return ok
}

// InquireInteger64 answers an integer-valued inquiry.
func (ck *Cookie) InquireInteger64(inquiry InquiryKeywordHash, result *int64) bool {
	keyword, v := ck.decodeInquiry("InquireInteger64", inquiry)
	n, ok := v.inquireInt(keyword)
	if !ok {
		v.base().handler.Signal("bad inquiry keyword '%s' for this I/O statement", keyword)
		return false
	}
	*result = n
	return true
}

// InquirePendingId answers INQUIRE(ID=, PENDING=) for one asynchronous
// transfer marker.
func (ck *Cookie) InquirePendingId(id int64, result *bool) bool {
	v := ck.forCall("InquirePendingId")
	if u := v.unit(); u != nil {
		*result = u.isPending(id)
		return true
	}
	*result = false
	return true
}
