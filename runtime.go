// Package fio implements the statement dispatch layer of a Fortran runtime's
// I/O subsystem: the Begin*/Set*/transfer/End procedure surface driven by
// generated code. A [Runtime] owns the table of connected units; every
// statement is driven through an opaque [Cookie] from Begin to
// EndIoStatement, exactly once, on every code path.
package fio

import (
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// Runtime is one independent instance of the I/O subsystem. The unit table
// is owned here rather than living in package-level state so several
// runtimes can coexist in a process (the tests rely on this).
//
// A Runtime assumes a single driving execution context per unit. The unit
// table itself is guarded so distinct units may be driven from distinct
// goroutines, but concurrent statements on one unit must be serialized by
// the caller.
type Runtime struct {
	mu       sync.Mutex
	units    map[int]*ExternalFileUnit
	nextUnit int // NEWUNIT= allocation counter, counts down

	env   RuntimeEnv
	log   *log.Logger
	edit  EditEngine
	crash func(msg string)
}

// Option configures a [Runtime] at construction.
type Option func(*Runtime)

// WithEnv overrides the environment captured by [ReadEnv].
func WithEnv(env RuntimeEnv) Option { return func(rt *Runtime) { rt.env = env } }

// WithLogger replaces the runtime's logger.
func WithLogger(l *log.Logger) Option { return func(rt *Runtime) { rt.log = l } }

// WithEditEngine replaces the default list-directed edit engine. The full
// numeric edit descriptor interpreter of a complete Fortran runtime plugs in
// here.
func WithEditEngine(e EditEngine) Option { return func(rt *Runtime) { rt.edit = e } }

// WithCrashHandler replaces process termination on contract violations.
// The replacement must not return; tests install one that panics.
func WithCrashHandler(f func(msg string)) Option { return func(rt *Runtime) { rt.crash = f } }

// NewRuntime creates a runtime with an empty unit table. Units 5 and 6 are
// preconnected lazily on first use.
func NewRuntime(opts ...Option) *Runtime {
	rt := &Runtime{
		units:    make(map[int]*ExternalFileUnit),
		nextUnit: firstNewUnit,
		env:      ReadEnv(),
		edit:     ListEngine{},
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.log == nil {
		rt.log = log.NewWithOptions(os.Stderr, log.Options{Prefix: "fio"})
		if rt.env.Debug {
			rt.log.SetLevel(log.DebugLevel)
		}
	}
	if rt.crash == nil {
		rt.crash = func(msg string) {
			rt.log.Error(msg)
			os.Exit(1)
		}
	}
	return rt
}

// Env returns the environment the runtime was constructed with.
func (rt *Runtime) Env() RuntimeEnv { return rt.env }

func (rt *Runtime) terminator(sourceFile string, sourceLine int) Terminator {
	return Terminator{rt: rt, sourceFile: sourceFile, sourceLine: sourceLine}
}

// Well-known external unit numbers.
const (
	// DefaultUnit is the unit number of an unspecified unit ("*"): stdin for
	// input statements and stdout for output statements.
	DefaultUnit = -1
	stdinUnit   = 5
	stdoutUnit  = 6

	// NEWUNIT= numbers are allocated downward from here so they can never
	// collide with a unit number a program could name in source.
	firstNewUnit = -10
)
