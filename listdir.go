package fio

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/soypat/go-fortran-io/descriptor"
)

// ErrEndOfRecord is returned by an EditEngine's Parse when the remaining
// input holds no further value. The transfer surface converts it into the
// statement's end condition.
var ErrEndOfRecord = errors.New("input list exhausted before the item")

// EditEngine converts between in-memory values and their formatted record
// text. The dispatch layer owns statement sequencing and record structure;
// editing is delegated here so a full format interpreter can be plugged in
// with WithEditEngine. format is the statement's FMT= string, empty for
// list-directed statements.
type EditEngine interface {
	// Render appends the edited form of the value described by d to dst.
	Render(dst []byte, d descriptor.Descriptor, m *Modes, format string) ([]byte, error)
	// Parse edits the value described by d out of src, storing through the
	// descriptor, and returns the unconsumed remainder.
	Parse(src string, d descriptor.Descriptor, m *Modes, format string) (rest string, err error)
}

// ListEngine is the built-in EditEngine. It edits every value in its
// list-directed form, honoring the DECIMAL=, DELIM=, SIGN= and PAD= modes;
// an explicit FMT= string is edited the same way, by value type. Rounding
// modes only affect width-limited descriptors and are ignored here.
type ListEngine struct{}

var _ EditEngine = ListEngine{}

// valueSeparator is what separates input list values. DECIMAL='COMMA' frees
// the comma to serve as the decimal symbol and promotes the semicolon.
func valueSeparator(m *Modes) byte {
	if m.flag(decimalComma) {
		return ';'
	}
	return ','
}

func decimalSymbol(m *Modes) byte {
	if m.flag(decimalComma) {
		return ','
	}
	return '.'
}

func (ListEngine) Render(dst []byte, d descriptor.Descriptor, m *Modes, format string) ([]byte, error) {
	switch d.Cat {
	case descriptor.Integer:
		return renderInts(dst, d, m)
	case descriptor.Real:
		return renderReals(dst, d, m)
	case descriptor.Complex:
		return renderComplexes(dst, d, m)
	case descriptor.Logical:
		return renderLogicals(dst, d)
	case descriptor.Character:
		return renderCharacter(dst, d, m)
	}
	return dst, fmt.Errorf("cannot edit a %s value", d.Cat)
}

func renderInts(dst []byte, d descriptor.Descriptor, m *Modes) ([]byte, error) {
	each := func(v int64) {
		dst = append(dst, ' ')
		if v >= 0 && m.flag(signPlus) {
			dst = append(dst, '+')
		}
		dst = strconv.AppendInt(dst, v, 10)
	}
	switch data := d.Data.(type) {
	case *int8:
		each(int64(*data))
	case *int16:
		each(int64(*data))
	case *int32:
		each(int64(*data))
	case *int64:
		each(*data)
	case []int16:
		for _, v := range data {
			each(int64(v))
		}
	case []int32:
		for _, v := range data {
			each(int64(v))
		}
	case []int64:
		for _, v := range data {
			each(v)
		}
	default:
		return dst, fmt.Errorf("cannot edit %T as INTEGER", d.Data)
	}
	return dst, nil
}

// realText is the list-directed form of one real value of the given bit
// width, with the mode's decimal symbol applied.
func realText(v float64, bits int, m *Modes) string {
	s := strconv.FormatFloat(v, 'G', -1, bits)
	// A whole-number G result carries no decimal symbol; supply one so the
	// text reads back as REAL.
	if !strings.ContainsAny(s, ".Ee") && !strings.Contains(s, "Inf") && !strings.Contains(s, "NaN") {
		s += "."
	}
	if m.flag(decimalComma) {
		s = strings.Replace(s, ".", ",", 1)
	}
	if v >= 0 && m.flag(signPlus) {
		s = "+" + s
	}
	return s
}

func renderReals(dst []byte, d descriptor.Descriptor, m *Modes) ([]byte, error) {
	each := func(v float64, bits int) {
		dst = append(dst, ' ')
		dst = append(dst, realText(v, bits, m)...)
	}
	switch data := d.Data.(type) {
	case *float32:
		each(float64(*data), 32)
	case *float64:
		each(*data, 64)
	case []float32:
		for _, v := range data {
			each(float64(v), 32)
		}
	case []float64:
		for _, v := range data {
			each(v, 64)
		}
	default:
		return dst, fmt.Errorf("cannot edit %T as REAL", d.Data)
	}
	return dst, nil
}

func renderComplexes(dst []byte, d descriptor.Descriptor, m *Modes) ([]byte, error) {
	each := func(re, im float64, bits int) {
		dst = append(dst, ' ', '(')
		dst = append(dst, realText(re, bits, m)...)
		dst = append(dst, valueSeparator(m))
		dst = append(dst, realText(im, bits, m)...)
		dst = append(dst, ')')
	}
	switch data := d.Data.(type) {
	case *complex64:
		each(float64(real(*data)), float64(imag(*data)), 32)
	case *complex128:
		each(real(*data), imag(*data), 64)
	case []complex64:
		for _, v := range data {
			each(float64(real(v)), float64(imag(v)), 32)
		}
	case []complex128:
		for _, v := range data {
			each(real(v), imag(v), 64)
		}
	default:
		return dst, fmt.Errorf("cannot edit %T as COMPLEX", d.Data)
	}
	return dst, nil
}

func renderLogicals(dst []byte, d descriptor.Descriptor) ([]byte, error) {
	each := func(b bool) {
		if b {
			dst = append(dst, ' ', 'T')
		} else {
			dst = append(dst, ' ', 'F')
		}
	}
	switch data := d.Data.(type) {
	case *bool:
		each(*data)
	case []bool:
		for _, v := range data {
			each(v)
		}
	default:
		return dst, fmt.Errorf("cannot edit %T as LOGICAL", d.Data)
	}
	return dst, nil
}

// renderCharacter edits character data, delimited and escaped when DELIM=
// names a quote. Undelimited character values carry no separating blank so
// adjacent strings concatenate, as list-directed output does.
func renderCharacter(dst []byte, d descriptor.Descriptor, m *Modes) ([]byte, error) {
	var s string
	switch data := d.Data.(type) {
	case string:
		s = data
	case *string:
		s = *data
	case []byte:
		s = string(data)
	default:
		return dst, fmt.Errorf("cannot edit %T as CHARACTER", d.Data)
	}
	if m.delim == 0 {
		return append(dst, s...), nil
	}
	dst = append(dst, ' ', m.delim)
	for i := 0; i < len(s); i++ {
		dst = append(dst, s[i])
		if s[i] == m.delim {
			dst = append(dst, m.delim)
		}
	}
	return append(dst, m.delim), nil
}

func (ListEngine) Parse(src string, d descriptor.Descriptor, m *Modes, format string) (string, error) {
	switch d.Cat {
	case descriptor.Integer:
		return parseInt(src, d, m)
	case descriptor.Real:
		return parseReal(src, d, m)
	case descriptor.Complex:
		return parseComplex(src, d, m)
	case descriptor.Logical:
		return parseLogical(src, d, m)
	case descriptor.Character:
		if format != "" {
			return parseCharacterField(src, d, m)
		}
		return parseCharacter(src, d, m)
	}
	return src, fmt.Errorf("cannot edit a %s value", d.Cat)
}

// parseCharacterField is A editing under an explicit format: the field is
// taken verbatim from the record, as wide as the item.
func parseCharacterField(src string, d descriptor.Descriptor, m *Modes) (string, error) {
	n := min(d.Elems*d.Kind, len(src))
	if err := storeCharacter(d, src[:n], m); err != nil {
		return src, err
	}
	return src[n:], nil
}

// skipSeparator consumes blanks and at most one value separator.
func skipSeparator(src string, m *Modes) string {
	src = strings.TrimLeft(src, " \t")
	if len(src) > 0 && src[0] == valueSeparator(m) {
		src = strings.TrimLeft(src[1:], " \t")
	}
	return src
}

// nextToken slices the next unquoted value off src.
func nextToken(src string, m *Modes) (tok, rest string, err error) {
	src = skipSeparator(src, m)
	if src == "" {
		return "", "", ErrEndOfRecord
	}
	end := 0
	for end < len(src) && src[end] != ' ' && src[end] != '\t' && src[end] != valueSeparator(m) {
		end++
	}
	return src[:end], src[end:], nil
}

func parseInt(src string, d descriptor.Descriptor, m *Modes) (string, error) {
	tok, rest, err := nextToken(src, m)
	if err != nil {
		return src, err
	}
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return src, fmt.Errorf("bad INTEGER value '%s'", tok)
	}
	if err := storeInt(d, v); err != nil {
		return src, err
	}
	return rest, nil
}

// parseRealText converts one real token, accepting Fortran exponent letters
// and the mode's decimal symbol.
func parseRealText(tok string, m *Modes) (float64, error) {
	s := tok
	if m.flag(decimalComma) {
		s = strings.Replace(s, ",", ".", 1)
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case 'd', 'D':
			return 'e'
		case 'E':
			return 'e'
		}
		return r
	}, s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad REAL value '%s'", tok)
	}
	return v, nil
}

func parseReal(src string, d descriptor.Descriptor, m *Modes) (string, error) {
	tok, rest, err := nextToken(src, m)
	if err != nil {
		return src, err
	}
	v, err := parseRealText(tok, m)
	if err != nil {
		return src, err
	}
	if err := storeReal(d, v); err != nil {
		return src, err
	}
	return rest, nil
}

func parseComplex(src string, d descriptor.Descriptor, m *Modes) (string, error) {
	s := skipSeparator(src, m)
	if s == "" {
		return src, ErrEndOfRecord
	}
	if s[0] != '(' {
		return src, fmt.Errorf("bad COMPLEX value: missing '('")
	}
	close := strings.IndexByte(s, ')')
	if close < 0 {
		return src, fmt.Errorf("bad COMPLEX value: missing ')'")
	}
	parts := strings.Split(s[1:close], string(valueSeparator(m)))
	if len(parts) != 2 {
		return src, fmt.Errorf("bad COMPLEX value '%s'", s[:close+1])
	}
	re, err := parseRealText(strings.TrimSpace(parts[0]), m)
	if err != nil {
		return src, err
	}
	im, err := parseRealText(strings.TrimSpace(parts[1]), m)
	if err != nil {
		return src, err
	}
	if err := storeComplex(d, re, im); err != nil {
		return src, err
	}
	return s[close+1:], nil
}

func parseLogical(src string, d descriptor.Descriptor, m *Modes) (string, error) {
	tok, rest, err := nextToken(src, m)
	if err != nil {
		return src, err
	}
	t := strings.TrimPrefix(tok, ".")
	var v bool
	switch {
	case len(t) > 0 && (t[0] == 'T' || t[0] == 't'):
		v = true
	case len(t) > 0 && (t[0] == 'F' || t[0] == 'f'):
		v = false
	default:
		return src, fmt.Errorf("bad LOGICAL value '%s'", tok)
	}
	if err := storeLogical(d, v); err != nil {
		return src, err
	}
	return rest, nil
}

// parseCharacter edits one character value: a quoted string with doubled
// embedded quotes, or a bare token.
func parseCharacter(src string, d descriptor.Descriptor, m *Modes) (string, error) {
	s := skipSeparator(src, m)
	if s == "" {
		return src, ErrEndOfRecord
	}
	var value, rest string
	if q := s[0]; q == '\'' || q == '"' {
		var b strings.Builder
		i := 1
		for {
			if i >= len(s) {
				return src, fmt.Errorf("unterminated character value")
			}
			if s[i] == q {
				if i+1 < len(s) && s[i+1] == q {
					b.WriteByte(q)
					i += 2
					continue
				}
				i++
				break
			}
			b.WriteByte(s[i])
			i++
		}
		value, rest = b.String(), s[i:]
	} else {
		var err error
		value, rest, err = nextToken(s, m)
		if err != nil {
			return src, err
		}
	}
	if err := storeCharacter(d, value, m); err != nil {
		return src, err
	}
	return rest, nil
}

// ---- stores through the descriptor ----

func storeInt(d descriptor.Descriptor, v int64) error {
	switch data := d.Data.(type) {
	case *int8:
		*data = int8(v)
	case *int16:
		*data = int16(v)
	case *int32:
		*data = int32(v)
	case *int64:
		*data = v
	default:
		return fmt.Errorf("cannot store an INTEGER into %T", d.Data)
	}
	return nil
}

func storeReal(d descriptor.Descriptor, v float64) error {
	switch data := d.Data.(type) {
	case *float32:
		*data = float32(v)
	case *float64:
		*data = v
	default:
		return fmt.Errorf("cannot store a REAL into %T", d.Data)
	}
	return nil
}

func storeComplex(d descriptor.Descriptor, re, im float64) error {
	switch data := d.Data.(type) {
	case *complex64:
		*data = complex(float32(re), float32(im))
	case *complex128:
		*data = complex(re, im)
	default:
		return fmt.Errorf("cannot store a COMPLEX into %T", d.Data)
	}
	return nil
}

func storeLogical(d descriptor.Descriptor, v bool) error {
	switch data := d.Data.(type) {
	case *bool:
		*data = v
	default:
		return fmt.Errorf("cannot store a LOGICAL into %T", d.Data)
	}
	return nil
}

// storeCharacter fills the target, blank-padding the unused tail under PAD=
// and rejecting a short field otherwise.
func storeCharacter(d descriptor.Descriptor, value string, m *Modes) error {
	switch data := d.Data.(type) {
	case *string:
		*data = value
	case []byte:
		n := copy(data, value)
		if n < len(data) {
			if !m.pad {
				return fmt.Errorf("CHARACTER value shorter than the input item")
			}
			for i := n; i < len(data); i++ {
				data[i] = ' '
			}
		}
	default:
		return fmt.Errorf("cannot store a CHARACTER into %T", d.Data)
	}
	return nil
}
