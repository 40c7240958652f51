package fio

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// RuntimeEnv carries the process-environment defaults consulted by a
// [Runtime], read once at construction. Mirrors the FORT_* variables of the
// usual Fortran runtime environment.
type RuntimeEnv struct {
	// Convert is the default byte-order conversion applied to unformatted
	// units that do not specify CONVERT= at OPEN. From FORT_CONVERT.
	Convert Convert
	// ScratchDir is where STATUS='SCRATCH' files are created. From
	// FORT_SCRATCH_DIR, falling back to the OS temp directory.
	ScratchDir string
	// Debug enables debug logging of unit table and dispatch activity.
	// From FORT_DEBUG (any non-empty, non-"0" value).
	Debug bool
	// DefaultOutputRoundingMode backs ROUND='PROCESSOR_DEFINED'.
	DefaultOutputRoundingMode RoundingMode
}

// ReadEnv captures the FORT_* environment.
func ReadEnv() RuntimeEnv {
	v := viper.New()
	v.SetEnvPrefix("FORT")
	v.AutomaticEnv()
	for _, key := range []string{"convert", "scratch_dir", "debug"} {
		// AutomaticEnv resolves on Get; binding makes IsSet reliable too.
		v.BindEnv(key) //nolint:errcheck // only errors on empty key
	}
	env := RuntimeEnv{
		ScratchDir:                os.TempDir(),
		Convert:                   ConvertUnknown,
		DefaultOutputRoundingMode: RoundNearest,
	}
	if s := v.GetString("convert"); s != "" {
		if c, ok := convertFromString(s); ok {
			env.Convert = c
		}
	}
	if s := v.GetString("scratch_dir"); s != "" {
		env.ScratchDir = s
	}
	if s := v.GetString("debug"); s != "" && s != "0" {
		env.Debug = true
	}
	return env
}

// convertFromString recognizes the CONVERT values accepted from the
// environment. Deliberately laxer than the SetConvert keyword table, which
// matches exactly like every other control list item.
func convertFromString(s string) (Convert, bool) {
	switch strings.ToUpper(s) {
	case "UNKNOWN":
		return ConvertUnknown, true
	case "NATIVE":
		return ConvertNative, true
	case "LITTLE_ENDIAN", "LITTLEENDIAN":
		return ConvertLittleEndian, true
	case "BIG_ENDIAN", "BIGENDIAN":
		return ConvertBigEndian, true
	case "SWAP":
		return ConvertSwap, true
	}
	return ConvertUnknown, false
}
