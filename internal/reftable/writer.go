package reftable

import (
	"bytes"
	"fmt"
	"io"

	"github.com/untoldecay/reftable/internal/refhash"
)

// Writer accumulates one table's worth of ref and log records and
// serializes them on Close. Callers must call SetLimits before adding any
// records (Stack.NewAddition sets [ts, ts] for every addition, per
// spec.md §4.6 step 1), must add all ref records before any
// log records (spec.md §3 invariants), and must add both in ascending
// sort order.
type Writer struct {
	dest      io.Writer
	algo      refhash.Algorithm
	blockSize uint32

	minIndex, maxIndex uint64
	limitsSet          bool

	refBuf bytes.Buffer
	logBuf bytes.Buffer

	lastRefName string
	haveLastRef bool

	lastLogName  string
	lastLogIndex uint64
	haveLastLog  bool

	closed bool
}

// NewWriter returns a Writer that will serialize to dest once Close is
// called.
func NewWriter(dest io.Writer, algo refhash.Algorithm, blockSize uint32) *Writer {
	return &Writer{dest: dest, algo: algo, blockSize: blockSize}
}

// SetLimits fixes the inclusive update-index range this table will carry.
func (w *Writer) SetLimits(min, max uint64) {
	w.minIndex, w.maxIndex = min, max
	w.limitsSet = true
}

// MinUpdateIndex returns the table's minimum update index.
func (w *Writer) MinUpdateIndex() uint64 { return w.minIndex }

// MaxUpdateIndex returns the table's maximum update index.
func (w *Writer) MaxUpdateIndex() uint64 { return w.maxIndex }

// AddRef appends one ref record. Records must arrive in strictly
// ascending name order within a single table (spec.md §3 invariant);
// duplicate names are rejected.
func (w *Writer) AddRef(r RefRecord) error {
	if !w.limitsSet {
		return fmt.Errorf("reftable: AddRef before SetLimits")
	}
	if w.logBuf.Len() > 0 {
		return fmt.Errorf("reftable: ref record %q added after log records", r.Name)
	}
	if w.haveLastRef {
		if r.Name == w.lastRefName {
			return fmt.Errorf("reftable: duplicate ref record %q in one table", r.Name)
		}
		if r.Name < w.lastRefName {
			return fmt.Errorf("reftable: ref record %q out of order after %q", r.Name, w.lastRefName)
		}
	}
	encodeRef(&w.refBuf, r, w.algo.Size())
	w.lastRefName = r.Name
	w.haveLastRef = true
	return nil
}

// AddLog appends one log record. Records must be grouped by ref name
// (ascending) and, within a ref name, ordered by update index descending,
// matching spec.md §3's log ordering rule.
func (w *Writer) AddLog(l LogRecord) error {
	if !w.limitsSet {
		return fmt.Errorf("reftable: AddLog before SetLimits")
	}
	if w.haveLastLog {
		switch {
		case l.RefName < w.lastLogName:
			return fmt.Errorf("reftable: log record for %q out of order after %q", l.RefName, w.lastLogName)
		case l.RefName == w.lastLogName && l.UpdateIndex > w.lastLogIndex:
			return fmt.Errorf("reftable: log record for %q update index %d out of order after %d", l.RefName, l.UpdateIndex, w.lastLogIndex)
		}
	}
	encodeLog(&w.logBuf, l, w.algo.Size())
	w.lastLogName = l.RefName
	w.lastLogIndex = l.UpdateIndex
	w.haveLastLog = true
	return nil
}

// Close serializes the accumulated records to dest. It is an error to
// call Close twice.
func (w *Writer) Close() error {
	if w.closed {
		return fmt.Errorf("reftable: writer already closed")
	}
	w.closed = true
	if !w.limitsSet {
		return fmt.Errorf("reftable: Close before SetLimits")
	}

	hdr := header{
		Version:        formatVersion,
		BlockSize:      w.blockSize,
		MinUpdateIndex: w.minIndex,
		MaxUpdateIndex: w.maxIndex,
		HashID:         w.algo.WireID(),
	}
	hdrBytes := encodeHeader(hdr)

	var body bytes.Buffer
	body.Write(hdrBytes)

	body.WriteByte('r')
	putVarint(&body, uint64(w.refBuf.Len()))
	body.Write(w.refBuf.Bytes())

	body.WriteByte('g')
	putVarint(&body, uint64(w.logBuf.Len()))
	body.Write(w.logBuf.Bytes())

	// Footer repeats the header so a reader can validate it was not
	// truncated, then appends a CRC32 over everything preceding it.
	footer := append([]byte{}, hdrBytes...)
	crc := footerCRC(append(body.Bytes(), footer...))
	footer = appendUint32(footer, crc)
	body.Write(footer)

	_, err := w.dest.Write(body.Bytes())
	return err
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
