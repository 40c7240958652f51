// fortcat prints the records of a Fortran data file, driving the statement
// dispatch runtime the same way compiled Fortran code would.
//
// Usage:
//
//	fortcat [flags] file.dat [file2.dat ...]
//
// Flags:
//
//	-n        show record numbers
//	-w num    formatted record buffer width in characters (default 256)
//	-u        treat files as unformatted sequential and print record lengths
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	fio "github.com/soypat/go-fortran-io"
)

var (
	flagRecordNumbers = flag.Bool("n", false, "show record numbers")
	flagWidth         = flag.Int("w", 256, "formatted record buffer width in characters")
	flagUnformatted   = flag.Bool("u", false, "treat files as unformatted sequential and print record lengths")
)

func main() {
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: fortcat [flags] file.dat [file2.dat ...]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	rt := fio.NewRuntime()
	exitCode := 0
	for _, path := range flag.Args() {
		if err := catFile(rt, path); err != nil {
			fmt.Fprintf(os.Stderr, "fortcat: %s: %v\n", path, err)
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}

func catFile(rt *fio.Runtime, path string) error {
	open := rt.BeginOpenNewUnit("fortcat", 0)
	open.EnableHandlers(true, false, false, false, true)
	open.SetFile(path)
	open.SetStatus("OLD")
	open.SetAction("READ")
	if *flagUnformatted {
		open.SetForm("UNFORMATTED")
	} else {
		open.SetForm("FORMATTED")
	}
	var unit int
	if !open.GetNewUnit(&unit) {
		msg := make([]byte, 256)
		open.GetIoMsg(msg)
		open.EndIoStatement()
		return fmt.Errorf("%s", strings.TrimRight(string(msg), " "))
	}
	open.EndIoStatement()
	defer rt.BeginClose(unit, "fortcat", 0).EndIoStatement()

	if *flagUnformatted {
		return catUnformatted(rt, unit)
	}
	return catFormatted(rt, unit)
}

func catFormatted(rt *fio.Runtime, unit int) error {
	buf := make([]byte, *flagWidth)
	for recNum := 1; ; recNum++ {
		ck := rt.BeginExternalFormattedInput("(A)", unit, "fortcat", 0)
		ck.EnableHandlers(true, false, true, false, true)
		ok := ck.InputCharacter(buf)
		stat := ck.EndIoStatement()
		if !ok {
			if stat.IsEnd() {
				return nil
			}
			return fmt.Errorf("record %d: %s", recNum, stat.Msg())
		}
		printRecord(recNum, strings.TrimRight(string(buf), " "))
	}
}

// catUnformatted measures each record by draining it byte by byte; the
// end-of-record condition marks the record boundary and end-of-file ends the
// walk.
func catUnformatted(rt *fio.Runtime, unit int) error {
	var one [1]byte
	for recNum := 1; ; recNum++ {
		ck := rt.BeginUnformattedInput(unit, "fortcat", 0)
		ck.EnableHandlers(true, false, true, true, true)
		length := 0
		for ck.InputUnformattedBlock(one[:]) {
			length++
		}
		stat := ck.EndIoStatement()
		switch {
		case stat.IsEnd():
			return nil
		case stat.IsEor():
			printRecord(recNum, fmt.Sprintf("record of %d bytes", length))
		default:
			return fmt.Errorf("record %d: %s", recNum, stat.Msg())
		}
	}
}

func printRecord(num int, text string) {
	if *flagRecordNumbers {
		fmt.Printf("%6d\t%s\n", num, text)
	} else {
		fmt.Println(text)
	}
}
