package fio

import (
	"errors"
	"testing"

	"github.com/soypat/go-fortran-io/descriptor"
)

func render(t *testing.T, d descriptor.Descriptor, m *Modes) string {
	t.Helper()
	out, err := ListEngine{}.Render(nil, d, m, "")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	return string(out)
}

func TestRenderValues(t *testing.T) {
	m := defaultModes()
	n := int32(-42)
	if got := render(t, descriptor.Establish(descriptor.Integer, 4, &n), &m); got != " -42" {
		t.Errorf("integer = %q", got)
	}
	x := 3.0
	if got := render(t, descriptor.Establish(descriptor.Real, 8, &x), &m); got != " 3." {
		t.Errorf("whole real = %q, want a decimal symbol", got)
	}
	z := complex128(complex(1.5, -2))
	if got := render(t, descriptor.Establish(descriptor.Complex, 8, &z), &m); got != " (1.5,-2.)" {
		t.Errorf("complex = %q", got)
	}
	b := false
	if got := render(t, descriptor.Establish(descriptor.Logical, 4, &b), &m); got != " F" {
		t.Errorf("logical = %q", got)
	}
}

func TestRenderArray(t *testing.T) {
	m := defaultModes()
	vals := []int64{1, 2, 3}
	d := descriptor.EstablishArray(descriptor.Integer, 8, vals, len(vals))
	if got := render(t, d, &m); got != " 1 2 3" {
		t.Errorf("array = %q", got)
	}
}

func TestRenderSignPlus(t *testing.T) {
	m := defaultModes()
	m.setFlag(signPlus, true)
	n := int64(5)
	if got := render(t, descriptor.Establish(descriptor.Integer, 8, &n), &m); got != " +5" {
		t.Errorf("SIGN='PLUS' integer = %q", got)
	}
}

func TestRenderDecimalComma(t *testing.T) {
	m := defaultModes()
	m.setFlag(decimalComma, true)
	x := 1.5
	if got := render(t, descriptor.Establish(descriptor.Real, 8, &x), &m); got != " 1,5" {
		t.Errorf("DECIMAL='COMMA' real = %q", got)
	}
	z := complex128(complex(1.5, 2.5))
	if got := render(t, descriptor.Establish(descriptor.Complex, 8, &z), &m); got != " (1,5;2,5)" {
		t.Errorf("DECIMAL='COMMA' complex = %q", got)
	}
}

func TestRenderDelimitedCharacter(t *testing.T) {
	m := defaultModes()
	m.delim = '\''
	d := descriptor.Establish(descriptor.Character, 1, "it's")
	if got := render(t, d, &m); got != " 'it''s'" {
		t.Errorf("delimited character = %q", got)
	}
	m.delim = 0
	if got := render(t, d, &m); got != "it's" {
		t.Errorf("undelimited character = %q", got)
	}
}

func parseOne(t *testing.T, src string, d descriptor.Descriptor, m *Modes) string {
	t.Helper()
	rest, err := ListEngine{}.Parse(src, d, m, "")
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return rest
}

func TestParseValues(t *testing.T) {
	m := defaultModes()
	var n int64
	rest := parseOne(t, "  42, next", descriptor.Establish(descriptor.Integer, 8, &n), &m)
	if n != 42 || rest != ", next" {
		t.Errorf("integer: n=%d rest=%q", n, rest)
	}
	var x float64
	parseOne(t, " 1.5D2", descriptor.Establish(descriptor.Real, 8, &x), &m)
	if x != 150 {
		t.Errorf("D exponent: x=%v", x)
	}
	var z complex128
	parseOne(t, " (1.5, -2.0)", descriptor.Establish(descriptor.Complex, 8, &z), &m)
	if z != complex(1.5, -2) {
		t.Errorf("complex: z=%v", z)
	}
	var b bool
	parseOne(t, " .TRUE.", descriptor.Establish(descriptor.Logical, 4, &b), &m)
	if !b {
		t.Error(".TRUE. parsed as false")
	}
	parseOne(t, " f", descriptor.Establish(descriptor.Logical, 4, &b), &m)
	if b {
		t.Error("f parsed as true")
	}
}

func TestParseQuotedCharacter(t *testing.T) {
	m := defaultModes()
	dst := make([]byte, 6)
	d := descriptor.EstablishArray(descriptor.Character, 1, dst, len(dst))
	rest := parseOne(t, ` 'it''s' more`, d, &m)
	if string(dst) != "it's  " {
		t.Errorf("quoted value = %q", dst)
	}
	if rest != " more" {
		t.Errorf("rest = %q", rest)
	}
}

func TestParseShortFieldWithoutPad(t *testing.T) {
	m := defaultModes()
	m.pad = false
	dst := make([]byte, 8)
	d := descriptor.EstablishArray(descriptor.Character, 1, dst, len(dst))
	if _, err := (ListEngine{}.Parse("abc", d, &m, "")); err == nil {
		t.Error("short field accepted with PAD='NO'")
	}
}

func TestParseExhaustedInput(t *testing.T) {
	m := defaultModes()
	var n int64
	_, err := ListEngine{}.Parse("   ", descriptor.Establish(descriptor.Integer, 8, &n), &m, "")
	if !errors.Is(err, ErrEndOfRecord) {
		t.Errorf("err = %v, want ErrEndOfRecord", err)
	}
}

func TestParseDecimalComma(t *testing.T) {
	m := defaultModes()
	m.setFlag(decimalComma, true)
	var x float64
	rest := parseOne(t, " 1,5; 2", descriptor.Establish(descriptor.Real, 8, &x), &m)
	if x != 1.5 {
		t.Errorf("x = %v, want 1.5", x)
	}
	if rest != "; 2" {
		t.Errorf("rest = %q", rest)
	}
}
