package fio

import "github.com/soypat/go-fortran-io/iostat"

// ChildIo is the nested-statement context pushed on a unit while a
// user-defined derived type transfer procedure runs. The child borrows the
// parent's connection; it never appears in the unit table on its own and
// only validates that nested statements agree with the parent's formatting
// and direction.
type ChildIo struct {
	unit     *ExternalFileUnit
	previous *ChildIo // nesting stack
	parent   *Cookie  // the statement that spawned the defined I/O call

	// Effective formatting and direction inherited at push time.
	unformatted bool
	dir         Direction
}

// PushChildIo begins a nested context on u for the duration of one defined
// I/O procedure call. parent is the statement driving the transfer.
func (u *ExternalFileUnit) PushChildIo(parent *Cookie) *ChildIo {
	child := &ChildIo{
		unit:        u,
		previous:    u.child,
		parent:      parent,
		unformatted: u.formatting == UnformattedUnit,
		dir:         u.direction,
	}
	u.child = child
	return child
}

// PopChildIo ends the nested context. Crashes on mismatched push/pop, which
// can only come from the runtime itself.
func (u *ExternalFileUnit) PopChildIo(child *ChildIo, handler *ErrorHandler) {
	if u.child != child {
		handler.Crash("PopChildIo() does not match active child I/O")
	}
	u.child = child.previous
}

// CheckFormattingAndDirection compares a nested statement's request against
// the inherited connection properties. Any disagreement is BadOpOnChildUnit,
// raised before a single byte moves.
func (c *ChildIo) CheckFormattingAndDirection(unformatted bool, dir Direction) iostat.Iostat {
	if unformatted != c.unformatted {
		return iostat.BadOpOnChildUnit
	}
	if dir != c.dir {
		return iostat.BadOpOnChildUnit
	}
	return iostat.Ok
}
