package fio

// RoundingMode selects the rounding applied by numeric output editing.
type RoundingMode int8

const (
	RoundNearest RoundingMode = iota
	RoundUp
	RoundDown
	RoundToZero
	RoundCompatible
)

func (r RoundingMode) String() string {
	switch r {
	case RoundNearest:
		return "NEAREST"
	case RoundUp:
		return "UP"
	case RoundDown:
		return "DOWN"
	case RoundToZero:
		return "ZERO"
	case RoundCompatible:
		return "COMPATIBLE"
	}
	return "UNDEFINED"
}

// Editing flag bits held in [Modes].
const (
	blankZero    uint8 = 1 << iota // BLANK='ZERO'
	decimalComma                   // DECIMAL='COMMA'
	signPlus                       // SIGN='PLUS'
)

// Modes is the per-statement snapshot of control list options that affect
// editing. It is seeded from the unit's persistent defaults at Begin and
// discarded at End; OPEN-scoped options persist on the unit instead.
type Modes struct {
	editingFlags uint8
	delim        byte // '\'', '"', or 0 for DELIM='NONE'
	round        RoundingMode
	pad          bool
	nonAdvancing bool
}

func defaultModes() Modes {
	return Modes{pad: true}
}

func (m *Modes) flag(mask uint8) bool { return m.editingFlags&mask != 0 }

func (m *Modes) setFlag(mask uint8, on bool) {
	if on {
		m.editingFlags |= mask
	} else {
		m.editingFlags &^= mask
	}
}
