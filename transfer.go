package fio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/soypat/go-fortran-io/descriptor"
	"github.com/soypat/go-fortran-io/iostat"
)

// Data transfer surface. Every typed call routes through descriptorIO, which
// dispatches on the live statement variant: formatted statements hand the
// element to the edit engine, unformatted statements move raw bytes in the
// connection's byte order, child statements forward into the parent's record,
// and INQUIRE(IOLENGTH=) only measures. Calling a transfer against the wrong
// statement kind or direction is a contract violation and crashes; an
// erroneous statement absorbs the call and returns false.

// DefinedIoProc is one user-defined derived type I/O procedure. It receives
// the runtime and the parent connection's unit number; transfer statements it
// begins on that unit run as child statements of the parent.
type DefinedIoProc func(rt *Runtime, unitNumber int, d descriptor.Descriptor) iostat.Iostat

type definedIoKey struct {
	typeName    string
	dir         Direction
	unformatted bool
}

// DefinedIoTable maps derived type names to their defined I/O procedures,
// keyed by transfer direction and formatting.
type DefinedIoTable struct {
	procs map[definedIoKey]DefinedIoProc
}

// Register installs proc for typeName. A later registration for the same key
// replaces the earlier one.
func (t *DefinedIoTable) Register(typeName string, dir Direction, unformatted bool, proc DefinedIoProc) {
	if t.procs == nil {
		t.procs = make(map[definedIoKey]DefinedIoProc)
	}
	t.procs[definedIoKey{typeName: typeName, dir: dir, unformatted: unformatted}] = proc
}

func (t *DefinedIoTable) lookup(typeName string, dir Direction, unformatted bool) DefinedIoProc {
	if t == nil {
		return nil
	}
	return t.procs[definedIoKey{typeName: typeName, dir: dir, unformatted: unformatted}]
}

// rootExt walks a child chain to the outermost external statement, whose
// record buffer and input cursor all nested transfers share.
func rootExt(v stmtVariant) *externalStmtBase {
	for {
		switch s := v.(type) {
		case *childListStmt:
			v = s.parentExternal()
		case *childFormattedStmt:
			v = s.parentExternal()
		case *childUnformattedStmt:
			v = s.parentExternal()
		default:
			if ext, ok := v.(externalVariant); ok {
				return ext.extBase()
			}
			return nil
		}
	}
}

// descriptorIO moves one descriptor's worth of data through the statement
// named by ck. name is the public entry point, used in crash diagnostics.
func descriptorIO(ck *Cookie, name string, dir Direction, d descriptor.Descriptor, table *DefinedIoTable) bool {
	v := ck.forCall(name)
	h := &v.base().handler
	switch s := v.(type) {
	case *noopStmt:
		return !h.InError()
	case *erroneousStmt:
		return false
	case *inquireIOLengthStmt:
		if dir != DirOutput {
			h.Crash("%s() called for input in INQUIRE(IOLENGTH=)", name)
		}
		if h.InError() {
			return false
		}
		s.bytes += d.SizeInBytes()
		return true
	}
	if h.InError() {
		return false
	}
	if d.Cat == descriptor.Derived {
		return definedIO(ck, v, dir, d, table)
	}
	switch s := v.(type) {
	case *internalListStmt:
		return internalElement(&s.internalStmtBase, "", dir, d, name)
	case *internalFormattedStmt:
		return internalElement(&s.internalStmtBase, s.format, dir, d, name)
	case *externalListStmt:
		return externalElement(&s.externalStmtBase, s.dir, "", dir, d, name)
	case *externalFormattedStmt:
		return externalElement(&s.externalStmtBase, s.dir, s.format, dir, d, name)
	case *externalUnformattedStmt:
		if s.dir != dir {
			h.Crash("%s() called for a %s statement", name, s.dir)
		}
		return unformattedElement(s, dir, d)
	case *childListStmt:
		return childElement(&s.childStmtBase, "", dir, d, name)
	case *childFormattedStmt:
		return childElement(&s.childStmtBase, s.format, dir, d, name)
	case *childUnformattedStmt:
		if s.dir != dir {
			h.Crash("%s() called for a %s statement", name, s.dir)
		}
		return childUnformattedElement(s, dir, d)
	default:
		h.Crash("%s() called during an OPEN, CLOSE or INQUIRE statement", name)
	}
	return false
}

// definedIO runs the user procedure for a derived type element under a child
// I/O context on the statement's unit.
func definedIO(ck *Cookie, v stmtVariant, dir Direction, d descriptor.Descriptor, table *DefinedIoTable) bool {
	h := &v.base().handler
	u := v.unit()
	if u == nil {
		h.Crash("derived type transfer on an internal unit")
	}
	var unformatted bool
	switch v.(type) {
	case *externalUnformattedStmt, *childUnformattedStmt:
		unformatted = true
	}
	proc := table.lookup(d.TypeName, dir, unformatted)
	if proc == nil {
		h.Signal("no defined %s procedure for derived type '%s'", dir, d.TypeName)
		return false
	}
	child := u.PushChildIo(ck)
	stat := proc(u.rt, u.unitNumber, d)
	u.PopChildIo(child, h)
	if stat != iostat.Ok {
		h.SignalErrorStat(stat)
		return false
	}
	return !h.InError()
}

// renderElement edits one output element and appends it to the record.
func renderElement(h *ErrorHandler, emit func([]byte) bool, m *Modes, format string, d descriptor.Descriptor) bool {
	out, err := h.rt.edit.Render(nil, d, m, format)
	if err != nil {
		h.Signal("%v", err)
		return false
	}
	return emit(out)
}

// parseElement edits one input element out of the cursor's remaining record.
func parseElement(h *ErrorHandler, cur *inputCursor, m *Modes, format string, d descriptor.Descriptor) bool {
	rest, err := h.rt.edit.Parse(cur.rest(), d, m, format)
	if err != nil {
		if errors.Is(err, ErrEndOfRecord) {
			h.SignalEnd()
		} else {
			h.Signal("%v", err)
		}
		return false
	}
	cur.consume(rest)
	return true
}

func internalElement(s *internalStmtBase, format string, dir Direction, d descriptor.Descriptor, name string) bool {
	h := &s.handler
	if s.dir != dir {
		h.Crash("%s() called for a %s statement", name, s.dir)
	}
	if dir == DirOutput {
		return renderElement(h, s.emit, &s.modes, format, d)
	}
	return parseElement(h, &s.cursor, &s.modes, format, d)
}

func externalElement(s *externalStmtBase, sdir Direction, format string, dir Direction, d descriptor.Descriptor, name string) bool {
	h := &s.handler
	if sdir != dir {
		h.Crash("%s() called for a %s statement", name, sdir)
	}
	if dir == DirOutput {
		return renderElement(h, s.emit, &s.modes, format, d)
	}
	s.beginReadingRecord(true)
	if h.InError() {
		return false
	}
	return parseElement(h, &s.cursor, &s.modes, format, d)
}

// childElement runs a formatted element of a nested statement against the
// outermost parent's record, using the child's own modes and format.
func childElement(s *childStmtBase, format string, dir Direction, d descriptor.Descriptor, name string) bool {
	h := &s.handler
	if s.dir != dir {
		h.Crash("%s() called for a %s statement", name, s.dir)
	}
	root := rootExt(s.parentExternal())
	if root == nil {
		h.Crash("child transfer without an external parent statement")
	}
	if dir == DirOutput {
		return renderElement(h, root.emit, &s.modes, format, d)
	}
	root.beginReadingRecord(true)
	if stat := root.handler.GetIoStat(); stat != iostat.Ok {
		h.SignalErrorStat(stat)
		return false
	}
	return parseElement(h, &root.cursor, &s.modes, format, d)
}

func unformattedElement(s *externalUnformattedStmt, dir Direction, d descriptor.Descriptor) bool {
	order := s.u.byteOrder()
	if dir == DirOutput {
		raw, err := encodeDescriptor(d, order)
		if err != nil {
			s.handler.Signal("%v", err)
			return false
		}
		return s.Emit(raw)
	}
	raw := make([]byte, d.SizeInBytes())
	if !s.Receive(raw) {
		return false
	}
	if err := decodeDescriptor(d, order, raw); err != nil {
		s.handler.Signal("%v", err)
		return false
	}
	return true
}

func childUnformattedElement(s *childUnformattedStmt, dir Direction, d descriptor.Descriptor) bool {
	h := &s.handler
	order := s.child.unit.byteOrder()
	if dir == DirOutput {
		raw, err := encodeDescriptor(d, order)
		if err != nil {
			h.Signal("%v", err)
			return false
		}
		return s.Emit(raw)
	}
	raw := make([]byte, d.SizeInBytes())
	if !s.receiveFromParent(raw) {
		return false
	}
	if err := decodeDescriptor(d, order, raw); err != nil {
		h.Signal("%v", err)
		return false
	}
	return true
}

// receiveFromParent copies raw bytes out of the outermost parent's record,
// mirroring end conditions onto the child's own handler.
func (s *childUnformattedStmt) receiveFromParent(p []byte) bool {
	root := rootExt(s.parentExternal())
	if root == nil {
		s.handler.Crash("child unformatted input without an unformatted parent")
	}
	root.beginReadingRecord(false)
	if stat := root.handler.GetIoStat(); stat != iostat.Ok {
		s.handler.SignalErrorStat(stat)
		return false
	}
	if root.cursor.off+len(p) > len(root.recordBuf) {
		s.handler.SignalEor()
		return false
	}
	copy(p, root.recordBuf[root.cursor.off:])
	root.cursor.off += len(p)
	return true
}

// ---- raw element codec ----

func putUint(dst []byte, order binary.ByteOrder, v uint64, width int) {
	switch width {
	case 1:
		dst[0] = byte(v)
	case 2:
		order.PutUint16(dst, uint16(v))
	case 4:
		order.PutUint32(dst, uint32(v))
	default:
		order.PutUint64(dst, v)
	}
}

func getUint(src []byte, order binary.ByteOrder, width int) uint64 {
	switch width {
	case 1:
		return uint64(src[0])
	case 2:
		return uint64(order.Uint16(src))
	case 4:
		return uint64(order.Uint32(src))
	default:
		return order.Uint64(src)
	}
}

func signExtend(v uint64, width int) int64 {
	shift := uint(64 - 8*width)
	return int64(v<<shift) >> shift
}

// encodeDescriptor lays the described value out as raw unformatted bytes in
// the connection's byte order. Integer and logical widths follow d.Kind.
func encodeDescriptor(d descriptor.Descriptor, order binary.ByteOrder) ([]byte, error) {
	buf := make([]byte, 0, d.SizeInBytes())
	appendInt := func(v int64, width int) {
		var w [8]byte
		putUint(w[:], order, uint64(v), width)
		buf = append(buf, w[:width]...)
	}
	appendF32 := func(x float32) {
		var w [4]byte
		order.PutUint32(w[:], math.Float32bits(x))
		buf = append(buf, w[:]...)
	}
	appendF64 := func(x float64) {
		var w [8]byte
		order.PutUint64(w[:], math.Float64bits(x))
		buf = append(buf, w[:]...)
	}
	b2i := func(b bool) int64 {
		if b {
			return 1
		}
		return 0
	}
	switch data := d.Data.(type) {
	case *int8:
		appendInt(int64(*data), d.Kind)
	case *int16:
		appendInt(int64(*data), d.Kind)
	case *int32:
		appendInt(int64(*data), d.Kind)
	case *int64:
		appendInt(*data, d.Kind)
	case []int16:
		for _, v := range data {
			appendInt(int64(v), d.Kind)
		}
	case []int32:
		for _, v := range data {
			appendInt(int64(v), d.Kind)
		}
	case []int64:
		for _, v := range data {
			appendInt(v, d.Kind)
		}
	case *float32:
		appendF32(*data)
	case []float32:
		for _, v := range data {
			appendF32(v)
		}
	case *float64:
		appendF64(*data)
	case []float64:
		for _, v := range data {
			appendF64(v)
		}
	case *complex64:
		appendF32(real(*data))
		appendF32(imag(*data))
	case []complex64:
		for _, v := range data {
			appendF32(real(v))
			appendF32(imag(v))
		}
	case *complex128:
		appendF64(real(*data))
		appendF64(imag(*data))
	case []complex128:
		for _, v := range data {
			appendF64(real(v))
			appendF64(imag(v))
		}
	case *bool:
		appendInt(b2i(*data), d.Kind)
	case []bool:
		for _, v := range data {
			appendInt(b2i(v), d.Kind)
		}
	case string:
		buf = append(buf, data...)
	case *string:
		buf = append(buf, *data...)
	case []byte:
		buf = append(buf, data...)
	default:
		return nil, fmt.Errorf("cannot transfer %T unformatted", d.Data)
	}
	return buf, nil
}

// decodeDescriptor stores raw unformatted bytes through the described
// storage. src holds exactly d.SizeInBytes() bytes.
func decodeDescriptor(d descriptor.Descriptor, order binary.ByteOrder, src []byte) error {
	off := 0
	readInt := func(width int) int64 {
		v := getUint(src[off:], order, width)
		off += width
		return signExtend(v, width)
	}
	readF32 := func() float32 {
		x := math.Float32frombits(order.Uint32(src[off:]))
		off += 4
		return x
	}
	readF64 := func() float64 {
		x := math.Float64frombits(order.Uint64(src[off:]))
		off += 8
		return x
	}
	switch data := d.Data.(type) {
	case *int8:
		*data = int8(readInt(d.Kind))
	case *int16:
		*data = int16(readInt(d.Kind))
	case *int32:
		*data = int32(readInt(d.Kind))
	case *int64:
		*data = readInt(d.Kind)
	case []int16:
		for i := range data {
			data[i] = int16(readInt(d.Kind))
		}
	case []int32:
		for i := range data {
			data[i] = int32(readInt(d.Kind))
		}
	case []int64:
		for i := range data {
			data[i] = readInt(d.Kind)
		}
	case *float32:
		*data = readF32()
	case []float32:
		for i := range data {
			data[i] = readF32()
		}
	case *float64:
		*data = readF64()
	case []float64:
		for i := range data {
			data[i] = readF64()
		}
	case *complex64:
		*data = complex(readF32(), readF32())
	case []complex64:
		for i := range data {
			data[i] = complex(readF32(), readF32())
		}
	case *complex128:
		*data = complex(readF64(), readF64())
	case []complex128:
		for i := range data {
			data[i] = complex(readF64(), readF64())
		}
	case *bool:
		*data = readInt(d.Kind) != 0
	case []bool:
		for i := range data {
			data[i] = readInt(d.Kind) != 0
		}
	case []byte:
		copy(data, src)
	case *string:
		*data = string(src)
	default:
		return fmt.Errorf("cannot receive %T unformatted", d.Data)
	}
	return nil
}

// ---- typed output list items ----

// OutputInteger8 transfers one INTEGER(1) output list item.
func (ck *Cookie) OutputInteger8(n int8) bool {
	return descriptorIO(ck, "OutputInteger8", DirOutput, descriptor.Establish(descriptor.Integer, 1, &n), nil)
}

// OutputInteger16 transfers one INTEGER(2) output list item.
func (ck *Cookie) OutputInteger16(n int16) bool {
	return descriptorIO(ck, "OutputInteger16", DirOutput, descriptor.Establish(descriptor.Integer, 2, &n), nil)
}

// OutputInteger32 transfers one INTEGER(4) output list item.
func (ck *Cookie) OutputInteger32(n int32) bool {
	return descriptorIO(ck, "OutputInteger32", DirOutput, descriptor.Establish(descriptor.Integer, 4, &n), nil)
}

// OutputInteger64 transfers one INTEGER(8) output list item.
func (ck *Cookie) OutputInteger64(n int64) bool {
	return descriptorIO(ck, "OutputInteger64", DirOutput, descriptor.Establish(descriptor.Integer, 8, &n), nil)
}

// OutputReal32 transfers one REAL(4) output list item.
func (ck *Cookie) OutputReal32(x float32) bool {
	return descriptorIO(ck, "OutputReal32", DirOutput, descriptor.Establish(descriptor.Real, 4, &x), nil)
}

// OutputReal64 transfers one REAL(8) output list item.
func (ck *Cookie) OutputReal64(x float64) bool {
	return descriptorIO(ck, "OutputReal64", DirOutput, descriptor.Establish(descriptor.Real, 8, &x), nil)
}

// OutputComplex32 transfers one COMPLEX(4) output list item.
func (ck *Cookie) OutputComplex32(z complex64) bool {
	return descriptorIO(ck, "OutputComplex32", DirOutput, descriptor.Establish(descriptor.Complex, 4, &z), nil)
}

// OutputComplex64 transfers one COMPLEX(8) output list item.
func (ck *Cookie) OutputComplex64(z complex128) bool {
	return descriptorIO(ck, "OutputComplex64", DirOutput, descriptor.Establish(descriptor.Complex, 8, &z), nil)
}

// OutputCharacter transfers one CHARACTER output list item.
func (ck *Cookie) OutputCharacter(s string) bool {
	return descriptorIO(ck, "OutputCharacter", DirOutput, descriptor.EstablishArray(descriptor.Character, 1, s, len(s)), nil)
}

// OutputAscii is OutputCharacter for default-kind character data.
func (ck *Cookie) OutputAscii(s string) bool {
	return descriptorIO(ck, "OutputAscii", DirOutput, descriptor.EstablishArray(descriptor.Character, 1, s, len(s)), nil)
}

// OutputLogical transfers one default LOGICAL output list item.
func (ck *Cookie) OutputLogical(b bool) bool {
	return descriptorIO(ck, "OutputLogical", DirOutput, descriptor.Establish(descriptor.Logical, 4, &b), nil)
}

// OutputDescriptor transfers every element described by d as output.
func (ck *Cookie) OutputDescriptor(d descriptor.Descriptor) bool {
	return descriptorIO(ck, "OutputDescriptor", DirOutput, d, nil)
}

// OutputDerivedType transfers one derived type output list item, routing
// through the defined I/O procedure registered in table.
func (ck *Cookie) OutputDerivedType(d descriptor.Descriptor, table *DefinedIoTable) bool {
	return descriptorIO(ck, "OutputDerivedType", DirOutput, d, table)
}

// ---- typed input list items ----

// InputInteger transfers one INTEGER input list item of the given kind.
func (ck *Cookie) InputInteger(n *int64, kind int) bool {
	return descriptorIO(ck, "InputInteger", DirInput, descriptor.Establish(descriptor.Integer, kind, n), nil)
}

// InputReal32 transfers one REAL(4) input list item.
func (ck *Cookie) InputReal32(x *float32) bool {
	return descriptorIO(ck, "InputReal32", DirInput, descriptor.Establish(descriptor.Real, 4, x), nil)
}

// InputReal64 transfers one REAL(8) input list item.
func (ck *Cookie) InputReal64(x *float64) bool {
	return descriptorIO(ck, "InputReal64", DirInput, descriptor.Establish(descriptor.Real, 8, x), nil)
}

// InputComplex32 transfers one COMPLEX(4) input list item.
func (ck *Cookie) InputComplex32(z *complex64) bool {
	return descriptorIO(ck, "InputComplex32", DirInput, descriptor.Establish(descriptor.Complex, 4, z), nil)
}

// InputComplex64 transfers one COMPLEX(8) input list item.
func (ck *Cookie) InputComplex64(z *complex128) bool {
	return descriptorIO(ck, "InputComplex64", DirInput, descriptor.Establish(descriptor.Complex, 8, z), nil)
}

// InputCharacter transfers one CHARACTER input list item into dst, which is
// blank-filled past the data actually read.
func (ck *Cookie) InputCharacter(dst []byte) bool {
	return descriptorIO(ck, "InputCharacter", DirInput, descriptor.EstablishArray(descriptor.Character, 1, dst, len(dst)), nil)
}

// InputAscii is InputCharacter for default-kind character data.
func (ck *Cookie) InputAscii(dst []byte) bool {
	return descriptorIO(ck, "InputAscii", DirInput, descriptor.EstablishArray(descriptor.Character, 1, dst, len(dst)), nil)
}

// InputLogical transfers one default LOGICAL input list item.
func (ck *Cookie) InputLogical(b *bool) bool {
	return descriptorIO(ck, "InputLogical", DirInput, descriptor.Establish(descriptor.Logical, 4, b), nil)
}

// InputDescriptor transfers every element described by d as input.
func (ck *Cookie) InputDescriptor(d descriptor.Descriptor) bool {
	return descriptorIO(ck, "InputDescriptor", DirInput, d, nil)
}

// InputDerivedType transfers one derived type input list item, routing
// through the defined I/O procedure registered in table.
func (ck *Cookie) InputDerivedType(d descriptor.Descriptor, table *DefinedIoTable) bool {
	return descriptorIO(ck, "InputDerivedType", DirInput, d, table)
}

// ---- raw block transfers ----

// OutputUnformattedBlock appends raw bytes to the unformatted record in
// progress. Only unformatted statements and INQUIRE(IOLENGTH=) accept it.
func (ck *Cookie) OutputUnformattedBlock(p []byte) bool {
	switch s := ck.forCall("OutputUnformattedBlock").(type) {
	case *externalUnformattedStmt:
		return s.Emit(p)
	case *childUnformattedStmt:
		if s.dir != DirOutput {
			s.handler.Crash("OutputUnformattedBlock() called for a READ statement")
		}
		return s.Emit(p)
	case *inquireIOLengthStmt:
		return s.Emit(p)
	case *noopStmt:
		return !s.handler.InError()
	case *erroneousStmt:
		return false
	default:
		ck.v.base().handler.Crash("OutputUnformattedBlock() called for a formatted I/O statement")
	}
	return false
}

// InputUnformattedBlock copies the next raw bytes of the current unformatted
// record into p.
func (ck *Cookie) InputUnformattedBlock(p []byte) bool {
	switch s := ck.forCall("InputUnformattedBlock").(type) {
	case *externalUnformattedStmt:
		return s.Receive(p)
	case *childUnformattedStmt:
		if s.dir != DirInput {
			s.handler.Crash("InputUnformattedBlock() called for a WRITE statement")
		}
		if s.handler.InError() {
			return false
		}
		return s.receiveFromParent(p)
	case *noopStmt:
		return !s.handler.InError()
	case *erroneousStmt:
		return false
	default:
		ck.v.base().handler.Crash("InputUnformattedBlock() called for a formatted I/O statement")
	}
	return false
}

// ---- statement measurements ----

// GetSize reports the number of characters edited by the input statement so
// far, for SIZE=.
func (ck *Cookie) GetSize() int64 {
	v := ck.forCall("GetSize")
	switch s := v.(type) {
	case *internalListStmt:
		return int64(s.cursor.chars)
	case *internalFormattedStmt:
		return int64(s.cursor.chars)
	case *externalListStmt:
		return int64(s.cursor.chars)
	case *externalFormattedStmt:
		return int64(s.cursor.chars)
	case *childListStmt, *childFormattedStmt:
		if root := rootExt(v); root != nil {
			return int64(root.cursor.chars)
		}
	case *noopStmt, *erroneousStmt:
		return 0
	}
	v.base().handler.Crash("GetSize() called for an I/O statement that is not a formatted READ")
	return 0
}

// GetIoLength reports the measured unformatted byte length of the output
// list of an INQUIRE(IOLENGTH=) statement.
func (ck *Cookie) GetIoLength() int64 {
	switch s := ck.forCall("GetIoLength").(type) {
	case *inquireIOLengthStmt:
		return int64(s.bytes)
	case *erroneousStmt:
		return 0
	default:
		ck.v.base().handler.Crash("GetIoLength() called for an I/O statement that is not INQUIRE(IOLENGTH=)")
	}
	return 0
}

// GetIoMsg copies the statement's diagnostic into ioMsg, blank-filling the
// tail, and returns the number of bytes copied.
func (ck *Cookie) GetIoMsg(ioMsg []byte) int {
	return ck.forCall("GetIoMsg").base().handler.GetIoMsg(ioMsg)
}

// GetAsynchronousId reports the wait marker allocated for an asynchronous
// transfer, 0 when the statement is synchronous.
func (ck *Cookie) GetAsynchronousId() int64 {
	v := ck.forCall("GetAsynchronousId")
	if ext, ok := v.(externalVariant); ok {
		return ext.extBase().asyncID
	}
	switch v.(type) {
	case *noopStmt, *erroneousStmt:
		return 0
	}
	v.base().handler.Crash("GetAsynchronousId() called for an internal I/O statement")
	return 0
}
