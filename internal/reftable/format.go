package reftable

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/untoldecay/reftable/internal/refhash"
)

var magic = [4]byte{'R', 'F', 'T', 'B'}

const formatVersion = 2
const headerSize = 28 // magic(4) + version(1) + blocksize(3) + min(8) + max(8) + hashid(4)

type header struct {
	Version        uint8
	BlockSize      uint32 // only low 24 bits are significant on the wire
	MinUpdateIndex uint64
	MaxUpdateIndex uint64
	HashID         [4]byte
}

func encodeHeader(h header) []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], magic[:])
	buf[4] = h.Version
	buf[5] = byte(h.BlockSize >> 16)
	buf[6] = byte(h.BlockSize >> 8)
	buf[7] = byte(h.BlockSize)
	binary.BigEndian.PutUint64(buf[8:16], h.MinUpdateIndex)
	binary.BigEndian.PutUint64(buf[16:24], h.MaxUpdateIndex)
	copy(buf[24:28], h.HashID[:])
	return buf
}

func decodeHeader(buf []byte) (header, error) {
	if len(buf) < headerSize {
		return header{}, fmt.Errorf("reftable: short header (%d bytes)", len(buf))
	}
	var m [4]byte
	copy(m[:], buf[0:4])
	if m != magic {
		return header{}, fmt.Errorf("reftable: bad magic %q", m[:])
	}
	h := header{
		Version:        buf[4],
		BlockSize:      uint32(buf[5])<<16 | uint32(buf[6])<<8 | uint32(buf[7]),
		MinUpdateIndex: binary.BigEndian.Uint64(buf[8:16]),
		MaxUpdateIndex: binary.BigEndian.Uint64(buf[16:24]),
	}
	copy(h.HashID[:], buf[24:28])
	if h.Version != formatVersion {
		return header{}, fmt.Errorf("reftable: unsupported version %d", h.Version)
	}
	return h, nil
}

// encodeRef serializes one ref record. hashSize is the algorithm's object
// ID width (20 for SHA-1, 32 for SHA-256).
func encodeRef(buf *bytes.Buffer, r RefRecord, hashSize int) {
	putVarint(buf, uint64(len(r.Name)))
	buf.WriteString(r.Name)
	putVarint(buf, r.UpdateIndex)

	switch {
	case r.IsDeletion():
		buf.WriteByte(0)
	case r.IsSymref:
		buf.WriteByte(3)
		putVarint(buf, uint64(len(r.Target)))
		buf.WriteString(r.Target)
	case !r.TargetValue.Zero():
		buf.WriteByte(2)
		writeFixedHash(buf, r.Value, hashSize)
		writeFixedHash(buf, r.TargetValue, hashSize)
	default:
		buf.WriteByte(1)
		writeFixedHash(buf, r.Value, hashSize)
	}
}

func writeFixedHash(buf *bytes.Buffer, id refhash.ID, size int) {
	b := id.Bytes()
	if len(b) == size {
		buf.Write(b)
		return
	}
	// Zero object (e.g. a not-yet-set peeled value) still occupies a
	// fixed-width slot on the wire.
	var zero [32]byte
	buf.Write(zero[:size])
}

func decodeRef(src []byte, off int, hashSize int) (RefRecord, int, error) {
	nameLen, off, err := getVarint(src, off)
	if err != nil {
		return RefRecord{}, 0, err
	}
	if off+int(nameLen) > len(src) {
		return RefRecord{}, 0, fmt.Errorf("reftable: truncated ref name")
	}
	name := string(src[off : off+int(nameLen)])
	off += int(nameLen)

	updateIndex, off, err := getVarint(src, off)
	if err != nil {
		return RefRecord{}, 0, err
	}
	if off >= len(src) {
		return RefRecord{}, 0, fmt.Errorf("reftable: truncated ref record")
	}
	kind := src[off]
	off++

	rec := RefRecord{Name: name, UpdateIndex: updateIndex}
	switch kind {
	case 0:
		// deletion: no payload
	case 1:
		if off+hashSize > len(src) {
			return RefRecord{}, 0, fmt.Errorf("reftable: truncated ref hash")
		}
		rec.Value = refhash.New(src[off : off+hashSize])
		off += hashSize
	case 2:
		if off+2*hashSize > len(src) {
			return RefRecord{}, 0, fmt.Errorf("reftable: truncated peeled ref hash")
		}
		rec.Value = refhash.New(src[off : off+hashSize])
		off += hashSize
		rec.TargetValue = refhash.New(src[off : off+hashSize])
		off += hashSize
	case 3:
		targetLen, o2, err := getVarint(src, off)
		if err != nil {
			return RefRecord{}, 0, err
		}
		off = o2
		if off+int(targetLen) > len(src) {
			return RefRecord{}, 0, fmt.Errorf("reftable: truncated symref target")
		}
		rec.IsSymref = true
		rec.Target = string(src[off : off+int(targetLen)])
		off += int(targetLen)
	default:
		return RefRecord{}, 0, fmt.Errorf("reftable: unknown ref record kind %d", kind)
	}
	return rec, off, nil
}

func encodeLog(buf *bytes.Buffer, l LogRecord, hashSize int) {
	putVarint(buf, uint64(len(l.RefName)))
	buf.WriteString(l.RefName)
	// The update index is stored as-is; the ref-name ascending,
	// update-index descending order of logs is enforced by Writer.AddLog,
	// not by this encoding.
	putVarint(buf, l.UpdateIndex)
	writeFixedHash(buf, l.Old, hashSize)
	writeFixedHash(buf, l.New, hashSize)
	putVarint(buf, uint64(len(l.Name)))
	buf.WriteString(l.Name)
	putVarint(buf, uint64(len(l.Email)))
	buf.WriteString(l.Email)
	putVarint(buf, uint64(l.TimeSec))
	// tzOffset is whole minutes in git's model; zigzag-encode so negative
	// offsets don't blow up the varint.
	zz := zigzag(int64(l.TZOffset / 60))
	putVarint(buf, zz)
	putVarint(buf, uint64(len(l.Message)))
	buf.WriteString(l.Message)
}

func decodeLog(src []byte, off int, hashSize int) (LogRecord, int, error) {
	refLen, off, err := getVarint(src, off)
	if err != nil {
		return LogRecord{}, 0, err
	}
	if off+int(refLen) > len(src) {
		return LogRecord{}, 0, fmt.Errorf("reftable: truncated log refname")
	}
	refName := string(src[off : off+int(refLen)])
	off += int(refLen)

	updateIndex, off, err := getVarint(src, off)
	if err != nil {
		return LogRecord{}, 0, err
	}

	if off+2*hashSize > len(src) {
		return LogRecord{}, 0, fmt.Errorf("reftable: truncated log hashes")
	}
	oldID := refhash.New(src[off : off+hashSize])
	off += hashSize
	newID := refhash.New(src[off : off+hashSize])
	off += hashSize

	nameLen, off, err := getVarint(src, off)
	if err != nil {
		return LogRecord{}, 0, err
	}
	if off+int(nameLen) > len(src) {
		return LogRecord{}, 0, fmt.Errorf("reftable: truncated log name")
	}
	name := string(src[off : off+int(nameLen)])
	off += int(nameLen)

	emailLen, off, err := getVarint(src, off)
	if err != nil {
		return LogRecord{}, 0, err
	}
	if off+int(emailLen) > len(src) {
		return LogRecord{}, 0, fmt.Errorf("reftable: truncated log email")
	}
	email := string(src[off : off+int(emailLen)])
	off += int(emailLen)

	timeSec, off, err := getVarint(src, off)
	if err != nil {
		return LogRecord{}, 0, err
	}

	zz, off, err := getVarint(src, off)
	if err != nil {
		return LogRecord{}, 0, err
	}
	tzMinutes := unzigzag(zz)

	msgLen, off, err := getVarint(src, off)
	if err != nil {
		return LogRecord{}, 0, err
	}
	if off+int(msgLen) > len(src) {
		return LogRecord{}, 0, fmt.Errorf("reftable: truncated log message")
	}
	message := string(src[off : off+int(msgLen)])
	off += int(msgLen)

	return LogRecord{
		RefName:     refName,
		UpdateIndex: updateIndex,
		Old:         oldID,
		New:         newID,
		Name:        name,
		Email:       email,
		TimeSec:     int64(timeSec),
		TZOffset:    int(tzMinutes) * 60,
		Message:     message,
	}, off, nil
}

func zigzag(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func unzigzag(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

func footerCRC(body []byte) uint32 {
	return crc32.ChecksumIEEE(body)
}
