package iostat

import "testing"

func TestWellKnownValues(t *testing.T) {
	// Generated code and user programs test IOSTAT= against these values
	// directly; they are load-bearing constants.
	if Ok != 0 {
		t.Errorf("Ok = %d, want 0", Ok)
	}
	if End != -1 {
		t.Errorf("End = %d, want -1", End)
	}
	if Eor != -2 {
		t.Errorf("Eor = %d, want -2", Eor)
	}
	if BadUnitNumber <= Ok {
		t.Errorf("BadUnitNumber = %d, want a positive code", BadUnitNumber)
	}
}

func TestClassification(t *testing.T) {
	if Ok.IsError() {
		t.Error("Ok classified as an error")
	}
	if !End.IsError() || !End.IsEnd() || End.IsEor() {
		t.Error("End misclassified")
	}
	if !Eor.IsError() || !Eor.IsEor() || Eor.IsEnd() {
		t.Error("Eor misclassified")
	}
	if !BadUnitNumber.IsUnitError() || !UnitOverflow.IsUnitError() {
		t.Error("unit resolution codes not recognized as unit errors")
	}
	if BadWaitId.IsUnitError() {
		t.Error("BadWaitId classified as a unit error")
	}
}

func TestEveryCodeHasText(t *testing.T) {
	for code := BadUnitNumber; code < numCodes; code++ {
		if code.Msg() == "" {
			t.Errorf("%s has no default message", code)
		}
		if code.String() == "" {
			t.Errorf("code %d has no name", code)
		}
	}
	if got := Iostat(9999).Msg(); got != "invalid I/O status code" {
		t.Errorf("malformed code Msg = %q", got)
	}
	if got := Iostat(9999).String(); got != "Iostat(9999)" {
		t.Errorf("malformed code String = %q", got)
	}
}
