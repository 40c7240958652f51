package fio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"
	"github.com/soypat/go-fortran-io/iostat"
)

// Access is the ACCESS= mode of a connection.
type Access int8

const (
	AccessSequential Access = iota
	AccessDirect
	AccessStream
)

func (a Access) String() string {
	switch a {
	case AccessSequential:
		return "SEQUENTIAL"
	case AccessDirect:
		return "DIRECT"
	case AccessStream:
		return "STREAM"
	}
	return "UNDEFINED"
}

// Formatting is a connection's formatted/unformatted state. It is Unset
// until fixed by OPEN(FORM=) or by the first real transfer, after which a
// statement requesting the opposite is rejected, never reinterpreted.
type Formatting int8

const (
	FormattingUnset Formatting = iota
	FormattedUnit
	UnformattedUnit
)

// Direction of data transfer.
type Direction int8

const (
	DirectionUnset Direction = iota
	DirOutput
	DirInput
)

func (d Direction) String() string {
	switch d {
	case DirOutput:
		return "WRITE"
	case DirInput:
		return "READ"
	}
	return "UNDEFINED"
}

// Position is the POSITION= policy applied when a connection is made.
type Position int8

const (
	PositionAsIs Position = iota
	PositionRewind
	PositionAppend
)

// Convert is the byte-order conversion mode of an unformatted connection.
type Convert int8

const (
	ConvertUnknown Convert = iota
	ConvertNative
	ConvertLittleEndian
	ConvertBigEndian
	ConvertSwap
)

// OpenStatus is the STATUS= value of an OPEN statement.
type OpenStatus int8

const (
	OpenStatusUnknown OpenStatus = iota
	OpenStatusOld
	OpenStatusNew
	OpenStatusScratch
	OpenStatusReplace
)

// CloseStatus is the STATUS= value of a CLOSE statement.
type CloseStatus int8

const (
	CloseStatusKeep CloseStatus = iota
	CloseStatusDelete
)

// unitFile is the byte-level access the dispatch layer requires of the
// physical I/O collaborator: positioned reads and writes plus size and
// truncation. Record structure lives above this interface.
type unitFile interface {
	io.ReaderAt
	io.WriterAt
	Size() int64
	Truncate(size int64) error
	Close() error
}

// memFile is an in-memory unitFile used for scratch-like and anonymous
// connections and throughout the tests.
type memFile struct {
	buf []byte
}

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memFile) WriteAt(p []byte, off int64) (int, error) {
	end := off + int64(len(p))
	if end > int64(len(m.buf)) {
		m.buf = append(m.buf, make([]byte, end-int64(len(m.buf)))...)
	}
	copy(m.buf[off:end], p)
	return len(p), nil
}

func (m *memFile) Size() int64 { return int64(len(m.buf)) }

func (m *memFile) Truncate(size int64) error {
	if size < int64(len(m.buf)) {
		m.buf = m.buf[:size]
	}
	return nil
}

func (m *memFile) Close() error { return nil }

// osFile adapts an operating system file to unitFile.
type osFile struct {
	f *os.File
}

func (o osFile) ReadAt(p []byte, off int64) (int, error)  { return o.f.ReadAt(p, off) }
func (o osFile) WriteAt(p []byte, off int64) (int, error) { return o.f.WriteAt(p, off) }
func (o osFile) Truncate(size int64) error                { return o.f.Truncate(size) }
func (o osFile) Close() error                             { return o.f.Close() }
func (o osFile) Size() int64 {
	info, err := o.f.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

// streamFile adapts a non-seekable stream (stdin, stdout) to unitFile.
// Offsets are ignored; transfers happen in call order, which matches the
// single-driving-context model.
type streamFile struct {
	r io.Reader
	w io.Writer
}

func (s streamFile) ReadAt(p []byte, _ int64) (int, error) {
	if s.r == nil {
		return 0, errors.New("unit is not readable")
	}
	return s.r.Read(p)
}

func (s streamFile) WriteAt(p []byte, _ int64) (int, error) {
	if s.w == nil {
		return 0, errors.New("unit is not writable")
	}
	return s.w.Write(p)
}

func (s streamFile) Size() int64               { return 0 }
func (s streamFile) Truncate(size int64) error { return nil }
func (s streamFile) Close() error              { return nil }

// ExternalFileUnit is the connection record for one unit number. At most one
// exists per live number; the runtime's unit table owns it from creation
// (explicit OPEN or first use) until CLOSE removes it.
type ExternalFileUnit struct {
	rt         *Runtime
	unitNumber int
	path       string

	access     Access
	formatting Formatting
	direction  Direction
	position   Position
	convert    Convert
	isUTF8     bool
	mayRead    bool
	mayWrite   bool
	mayAsync   bool
	openRecl   int64 // fixed record length for direct access, 0 = unset

	file      unitFile
	isStdio   bool
	isScratch bool

	// Record position state. filePos is the byte offset of the next record;
	// recordStarts remembers prior record offsets for BACKSPACE.
	filePos      int64
	recordStarts []int64
	directRec    int64 // current record for direct access, 1-based
	// recordLength is the length of the unformatted record in progress,
	// unset (-1) until the record is complete. A BACKSPACE leaves the prior
	// record's length here; the next output transfer must discard it.
	recordLength int64

	// pendingOutput holds the partial record left by non-advancing output
	// until a later advancing statement terminates it.
	pendingOutput []byte

	// modes are the connection's persistent mode defaults. Statements seed
	// their editable snapshot from here; OPEN-scoped options write back.
	modes Modes

	pendingIDs []int64
	lastID     int64

	child *ChildIo
}

func newUnit(rt *Runtime, number int) *ExternalFileUnit {
	return &ExternalFileUnit{
		rt:           rt,
		unitNumber:   number,
		mayRead:      true,
		mayWrite:     true,
		recordLength: -1,
		directRec:    1,
		modes:        defaultModes(),
	}
}

func (u *ExternalFileUnit) UnitNumber() int         { return u.unitNumber }
func (u *ExternalFileUnit) Path() string            { return u.path }
func (u *ExternalFileUnit) Access() Access          { return u.access }
func (u *ExternalFileUnit) Formatting() Formatting  { return u.formatting }
func (u *ExternalFileUnit) Direction() Direction    { return u.direction }
func (u *ExternalFileUnit) MayRead() bool           { return u.mayRead }
func (u *ExternalFileUnit) MayWrite() bool          { return u.mayWrite }
func (u *ExternalFileUnit) MayAsynchronous() bool   { return u.mayAsync }
func (u *ExternalFileUnit) GetChildIo() *ChildIo    { return u.child }
func (u *ExternalFileUnit) OpenRecl() int64         { return u.openRecl }
func (u *ExternalFileUnit) IsConnected() bool       { return u.file != nil }

// adoptFormatting fixes an unset formatting to the requested value and
// reports whether the (possibly pre-existing) formatting now disagrees with
// the request.
func (u *ExternalFileUnit) adoptFormatting(f Formatting) (mismatch bool) {
	if u.formatting == FormattingUnset {
		u.formatting = f
	}
	return u.formatting != f
}

// SetDirection validates dir against ACTION= capabilities and fixes the
// unit's transfer direction.
func (u *ExternalFileUnit) SetDirection(dir Direction) iostat.Iostat {
	switch dir {
	case DirInput:
		if !u.mayRead {
			return iostat.ReadFromWriteOnly
		}
	case DirOutput:
		if !u.mayWrite {
			return iostat.WriteToReadOnly
		}
	}
	u.direction = dir
	return iostat.Ok
}

// SetStreamPos handles POS=. Only stream access units may position by byte.
func (u *ExternalFileUnit) SetStreamPos(pos int64, handler *ErrorHandler) bool {
	if u.access != AccessStream {
		handler.Signal("POS= may not appear unless ACCESS='STREAM'")
		return false
	}
	if pos < 1 { // POS=1 is the beginning of the file
		handler.Signal("POS=%d is invalid", pos)
		return false
	}
	u.filePos = pos - 1
	u.recordStarts = u.recordStarts[:0]
	return true
}

// SetDirectRec handles REC=. Only direct access units may position by record.
func (u *ExternalFileUnit) SetDirectRec(rec int64, handler *ErrorHandler) bool {
	if u.access != AccessDirect {
		handler.Signal("REC= may not appear unless ACCESS='DIRECT'")
		return false
	}
	if u.openRecl <= 0 {
		handler.Signal("RECL= was not specified for this direct access unit")
		return false
	}
	if rec < 1 {
		handler.Signal("REC=%d is invalid", rec)
		return false
	}
	u.directRec = rec
	u.filePos = (rec - 1) * u.openRecl
	return true
}

// Wait resolves a WAIT statement against the outstanding asynchronous IDs.
// id 0 waits for everything. Transfers complete eagerly in this runtime, so
// waiting only retires the markers.
func (u *ExternalFileUnit) Wait(id int64) bool {
	if id == 0 {
		u.pendingIDs = u.pendingIDs[:0]
		return true
	}
	i := slices.Index(u.pendingIDs, id)
	if i < 0 {
		return false
	}
	u.pendingIDs = slices.Delete(u.pendingIDs, i, i+1)
	return true
}

// nextAsyncID records a new outstanding transfer marker.
func (u *ExternalFileUnit) nextAsyncID() int64 {
	u.lastID++
	u.pendingIDs = append(u.pendingIDs, u.lastID)
	return u.lastID
}

// isPending reports whether an asynchronous transfer marker is outstanding.
func (u *ExternalFileUnit) isPending(id int64) bool {
	return slices.Contains(u.pendingIDs, id)
}

// connectAnonymous attaches backing storage for a unit first referenced by a
// transfer statement rather than an OPEN. Units 5 and 6 preconnect to the
// process's standard streams; other numbers get in-memory storage, since the
// physical naming convention for implicitly opened files belongs to the
// excluded file layer.
func (u *ExternalFileUnit) connectAnonymous(dir Direction) {
	switch u.unitNumber {
	case stdinUnit:
		u.file = streamFile{r: os.Stdin}
		u.isStdio = true
		u.mayWrite = false
		u.formatting = FormattedUnit
	case stdoutUnit:
		u.file = streamFile{w: os.Stdout}
		u.isStdio = true
		u.mayRead = false
		u.formatting = FormattedUnit
	default:
		u.file = &memFile{}
	}
	u.access = AccessSequential
	u.convert = u.rt.env.Convert
	u.rt.log.Debug("preconnected unit", "unit", u.unitNumber, "direction", dir)
}

// writeRecord completes one formatted record: payload plus newline for
// sequential and stream access, or a blank-padded fixed cell for direct
// access.
func (u *ExternalFileUnit) writeRecord(payload []byte, handler *ErrorHandler) {
	if u.access == AccessDirect {
		if int64(len(payload)) > u.openRecl {
			handler.Signal("record is longer than RECL=%d", u.openRecl)
			return
		}
		cell := make([]byte, u.openRecl)
		for i := range cell {
			cell[i] = ' '
		}
		copy(cell, payload)
		if _, err := u.file.WriteAt(cell, u.filePos); err != nil {
			handler.Signal("write error: %v", err)
			return
		}
		u.directRec++
		u.filePos += u.openRecl
		return
	}
	rec := make([]byte, 0, len(payload)+1)
	rec = append(rec, payload...)
	rec = append(rec, '\n')
	if _, err := u.file.WriteAt(rec, u.filePos); err != nil {
		handler.Signal("write error: %v", err)
		return
	}
	u.recordStarts = append(u.recordStarts, u.filePos)
	u.filePos += int64(len(rec))
}

// writeUnformattedRecord completes one unformatted sequential record with
// its length header and footer. The payload's first four bytes are the
// placeholder reserved at Begin time.
func (u *ExternalFileUnit) writeUnformattedRecord(payload []byte, handler *ErrorHandler) {
	if u.access == AccessSequential {
		if len(payload) < unformattedHeaderBytes {
			handler.Crash("unformatted record shorter than its reserved header")
		}
		n := uint32(len(payload) - unformattedHeaderBytes)
		u.byteOrder().PutUint32(payload[:unformattedHeaderBytes], n)
		var footer [unformattedHeaderBytes]byte
		u.byteOrder().PutUint32(footer[:], n)
		payload = append(payload, footer[:]...)
	}
	if u.access == AccessDirect && int64(len(payload)) > u.openRecl {
		handler.Signal("record is longer than RECL=%d", u.openRecl)
		return
	}
	if _, err := u.file.WriteAt(payload, u.filePos); err != nil {
		handler.Signal("write error: %v", err)
		return
	}
	u.recordStarts = append(u.recordStarts, u.filePos)
	if u.access == AccessDirect {
		u.directRec++
		u.filePos += u.openRecl
	} else {
		u.filePos += int64(len(payload))
	}
	u.recordLength = -1
}

const unformattedHeaderBytes = 4

func (u *ExternalFileUnit) byteOrder() binary.ByteOrder {
	switch u.convert {
	case ConvertBigEndian, ConvertSwap:
		// Swap relative to the usual little-endian hosts this runtime
		// targets; a fuller host detection belongs to the file layer.
		return binary.BigEndian
	default:
		return binary.LittleEndian
	}
}

// readRecord reads the next formatted record. ok is false with the
// end-of-file condition signaled when there is nothing left.
func (u *ExternalFileUnit) readRecord(handler *ErrorHandler) (rec []byte, ok bool) {
	if u.access == AccessDirect {
		cell := make([]byte, u.openRecl)
		if _, err := u.file.ReadAt(cell, u.filePos); err != nil && err != io.EOF {
			handler.SignalEnd()
			return nil, false
		}
		u.directRec++
		u.filePos += u.openRecl
		return cell, true
	}
	if u.filePos >= u.file.Size() && !u.isStdio {
		handler.SignalEnd()
		return nil, false
	}
	// Record sizes are unknown up front; grow until the terminator shows up.
	var buf []byte
	chunk := make([]byte, 128)
	off := u.filePos
	for {
		n, err := u.file.ReadAt(chunk, off)
		buf = append(buf, chunk[:n]...)
		if i := bytes.IndexByte(buf, '\n'); i >= 0 {
			u.recordStarts = append(u.recordStarts, u.filePos)
			u.filePos += int64(i) + 1
			return buf[:i], true
		}
		off += int64(n)
		if err != nil {
			if len(buf) == 0 {
				handler.SignalEnd()
				return nil, false
			}
			// Final record without terminator.
			u.recordStarts = append(u.recordStarts, u.filePos)
			u.filePos += int64(len(buf))
			return buf, true
		}
	}
}

// readUnformattedRecord reads the next unformatted record payload.
func (u *ExternalFileUnit) readUnformattedRecord(handler *ErrorHandler) (rec []byte, ok bool) {
	if u.access == AccessDirect {
		cell := make([]byte, u.openRecl)
		if _, err := u.file.ReadAt(cell, u.filePos); err != nil && err != io.EOF {
			handler.SignalEnd()
			return nil, false
		}
		u.directRec++
		u.filePos += u.openRecl
		return cell, true
	}
	var hdr [unformattedHeaderBytes]byte
	if _, err := u.file.ReadAt(hdr[:], u.filePos); err != nil {
		handler.SignalEnd()
		return nil, false
	}
	n := int64(u.byteOrder().Uint32(hdr[:]))
	payload := make([]byte, n)
	if _, err := u.file.ReadAt(payload, u.filePos+unformattedHeaderBytes); err != nil && err != io.EOF {
		handler.SignalEnd()
		return nil, false
	}
	u.recordStarts = append(u.recordStarts, u.filePos)
	u.filePos += unformattedHeaderBytes + n + unformattedHeaderBytes
	u.recordLength = n
	return payload, true
}

// backspace moves the connection before the previous record.
func (u *ExternalFileUnit) backspace(handler *ErrorHandler) {
	if u.access == AccessDirect {
		handler.Signal("BACKSPACE may not appear on a direct access unit")
		return
	}
	if u.formatting == UnformattedUnit && u.access == AccessStream {
		handler.SignalErrorStat(iostat.CannotBackspaceUnformattedStream)
		return
	}
	if n := len(u.recordStarts); n > 0 {
		u.filePos = u.recordStarts[n-1]
		u.recordStarts = u.recordStarts[:n-1]
	} else {
		u.filePos = 0
	}
	// A subsequent output transfer must not reuse this record's length.
	if u.formatting == UnformattedUnit {
		var hdr [unformattedHeaderBytes]byte
		if _, err := u.file.ReadAt(hdr[:], u.filePos); err == nil {
			u.recordLength = int64(u.byteOrder().Uint32(hdr[:]))
		}
	}
}

// rewind repositions the connection to its initial point.
func (u *ExternalFileUnit) rewind() {
	u.filePos = 0
	u.directRec = 1
	u.recordStarts = u.recordStarts[:0]
	u.recordLength = -1
}

// endfile truncates the connection at the current position.
func (u *ExternalFileUnit) endfile(handler *ErrorHandler) {
	if u.access == AccessDirect {
		handler.Signal("ENDFILE may not appear on a direct access unit")
		return
	}
	if err := u.file.Truncate(u.filePos); err != nil {
		handler.Signal("ENDFILE: %v", err)
	}
}

// DestroyClosed releases the backing storage. The caller must already have
// removed the unit from the table.
func (u *ExternalFileUnit) DestroyClosed() {
	if u.file != nil {
		u.file.Close()
		u.file = nil
	}
}

// ---- unit table ----
// The table is owned by the Runtime. Two lookups for the same number with no
// intervening close always yield the same identity.

// LookUp returns the connected unit for number, or nil.
func (rt *Runtime) LookUp(number int) *ExternalFileUnit {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.units[number]
}

// LookUpByPath returns the connected unit whose file path matches, or nil.
func (rt *Runtime) LookUpByPath(path string) *ExternalFileUnit {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for _, u := range rt.units {
		if u.path != "" && u.path == path {
			return u
		}
	}
	return nil
}

// LookUpOrCreate returns the unit for number, creating an unconnected record
// when absent. wasExtant reports whether the unit already existed. A live
// unit resolves whatever its number, so NEWUNIT allocations from the reserved
// negative range are found; only creation of a fresh record requires a number
// a program may name, and other numbers fail (nil).
func (rt *Runtime) LookUpOrCreate(number int) (u *ExternalFileUnit, wasExtant bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if u := rt.units[number]; u != nil {
		return u, true
	}
	if !validUnitNumber(number) {
		return nil, false
	}
	u = newUnit(rt, number)
	rt.units[number] = u
	rt.log.Debug("created unit", "unit", number)
	return u, false
}

// LookUpOrCreateAnonymous resolves a unit referenced by a transfer statement
// without a prior OPEN, preconnecting it on first use. Returns nil when the
// unit number is not usable.
func (rt *Runtime) LookUpOrCreateAnonymous(number int, dir Direction, formatting Formatting) *ExternalFileUnit {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if u := rt.units[number]; u != nil {
		return u
	}
	if !validUnitNumber(number) {
		return nil
	}
	u := newUnit(rt, number)
	u.formatting = formatting
	u.connectAnonymous(dir)
	rt.units[number] = u
	return u
}

// NewUnit allocates a fresh unit for OPEN(NEWUNIT=). The numbers come from a
// reserved negative range and are never handed out twice by one runtime.
func (rt *Runtime) NewUnit() *ExternalFileUnit {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for rt.units[rt.nextUnit] != nil {
		rt.nextUnit--
	}
	u := newUnit(rt, rt.nextUnit)
	rt.units[rt.nextUnit] = u
	rt.nextUnit--
	rt.log.Debug("allocated NEWUNIT", "unit", u.unitNumber)
	return u
}

// LookUpForClose returns the unit a CLOSE statement should finalize, nil for
// an unconnected number (CLOSE of which is a successful no-op).
func (rt *Runtime) LookUpForClose(number int) *ExternalFileUnit {
	return rt.LookUp(number)
}

// removeUnit takes the unit out of the table. Its number may be reused by a
// later OPEN.
func (rt *Runtime) removeUnit(u *ExternalFileUnit) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.units[u.unitNumber] == u {
		delete(rt.units, u.unitNumber)
	}
	rt.log.Debug("closed unit", "unit", u.unitNumber)
}

// validUnitNumber rejects numbers a program may not name in a creating
// reference: negatives (the NEWUNIT range is runtime-reserved) and values too
// wide for a default-kind integer. Lookups of live units never consult it.
func validUnitNumber(number int) bool {
	return number >= 0 && number <= 1<<30
}

// openConnection resolves STATUS=/FILE= and attaches backing storage. Called
// from the OPEN statement's completion.
func (u *ExternalFileUnit) openConnection(status OpenStatus, path string, handler *ErrorHandler) {
	env := u.rt.env
	switch status {
	case OpenStatusScratch:
		if path != "" {
			handler.Signal("FILE= must not appear with STATUS='SCRATCH'")
			return
		}
		path = filepath.Join(env.ScratchDir, "fort-scratch-"+uuid.NewString())
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			handler.Signal("could not create scratch file: %v", err)
			return
		}
		u.replaceFile(osFile{f: f}, path)
		u.isScratch = true
		return
	case OpenStatusOld:
		if path == "" {
			if u.file == nil {
				handler.Signal("OPEN(STATUS='OLD') on an unconnected unit requires FILE=")
			}
			return // re-OPEN of a connected unit, keep the connection
		}
		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			handler.Signal("OPEN(STATUS='OLD'): %v", err)
			return
		}
		u.replaceFile(osFile{f: f}, path)
	case OpenStatusNew:
		if path == "" {
			handler.Signal("OPEN(STATUS='NEW') requires FILE=")
			return
		}
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
		if err != nil {
			handler.Signal("OPEN(STATUS='NEW'): %v", err)
			return
		}
		u.replaceFile(osFile{f: f}, path)
	case OpenStatusReplace:
		if path == "" {
			handler.Signal("OPEN(STATUS='REPLACE') requires FILE=")
			return
		}
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
		if err != nil {
			handler.Signal("OPEN(STATUS='REPLACE'): %v", err)
			return
		}
		u.replaceFile(osFile{f: f}, path)
	case OpenStatusUnknown:
		if path == "" {
			if u.file == nil {
				// Connection without a name; keep it in memory, the naming
				// convention for unnamed units belongs to the file layer.
				u.file = &memFile{}
			}
			return
		}
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o666)
		if err != nil {
			handler.Signal("OPEN: %v", err)
			return
		}
		u.replaceFile(osFile{f: f}, path)
	}
}

func (u *ExternalFileUnit) replaceFile(f unitFile, path string) {
	if u.file != nil {
		u.file.Close()
	}
	u.file = f
	u.path = path
	u.rewind()
}

// closeConnection finalizes a CLOSE: applies STATUS= and releases storage.
// Scratch files never survive a close.
func (u *ExternalFileUnit) closeConnection(status CloseStatus) {
	doDelete := status == CloseStatusDelete || u.isScratch
	if u.file != nil {
		u.file.Close()
		u.file = nil
	}
	if doDelete && u.path != "" {
		os.Remove(u.path)
	}
	u.rt.removeUnit(u)
}
