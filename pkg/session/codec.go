package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
)

// Record format, big-endian:
//
//	revision          1 byte
//	entry count       3 bytes, 0..16,777,215
//	per entry:
//	  key length      2 bytes, 0..65,535
//	  key             UTF-8 bytes
//	  value length    4 bytes, 0..2,147,483,647
//	  value           bytes
const (
	RecordRevision byte = 1

	maxEntryCount  = 0xFFFFFF
	maxValueLength = math.MaxInt32

	// Larger values are read incrementally so a corrupt length field cannot
	// force one huge allocation.
	readChunkSize = 64 << 10
)

// EncodeRecord serializes r into a new byte slice.
func EncodeRecord(r *Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteRecord(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteRecord serializes r to w.
func WriteRecord(w io.Writer, r *Record) error {
	if err := writeUint(w, RecordRevision, 1); err != nil {
		return err
	}

	count := 0
	if r != nil {
		count = r.Len()
	}
	if count > maxEntryCount {
		return fmt.Errorf("%w: %d entries", ErrLengthOverflow, count)
	}
	if err := writeUint(w, uint32(count), 3); err != nil {
		return err
	}
	if count == 0 {
		return nil
	}

	var err error
	r.Range(func(key *EncodedKey, value []byte) bool {
		err = writeEntry(w, key, value)
		return err == nil
	})
	return err
}

func writeEntry(w io.Writer, key *EncodedKey, value []byte) error {
	if key.Len() > MaxKeyLength {
		return fmt.Errorf("%w: key of %d bytes", ErrLengthOverflow, key.Len())
	}
	if len(value) > maxValueLength {
		return fmt.Errorf("%w: value of %d bytes", ErrLengthOverflow, len(value))
	}

	if err := writeUint(w, uint32(key.Len()), 2); err != nil {
		return err
	}
	if _, err := io.WriteString(w, key.raw); err != nil {
		return err
	}
	if err := writeUint(w, uint32(len(value)), 4); err != nil {
		return err
	}
	_, err := w.Write(value)
	return err
}

func writeUint[T uint32 | byte](w io.Writer, v T, width int) error {
	var b [4]byte
	n := uint32(v)
	for i := width - 1; i >= 0; i-- {
		b[i] = byte(n)
		n >>= 8
	}
	_, err := w.Write(b[:width])
	return err
}

// DecodeRecord parses data produced by EncodeRecord. On error an empty
// record is returned together with ErrUnsupportedRevision, ErrTruncatedStream
// or ErrLengthOverflow.
func DecodeRecord(data []byte) (*Record, error) {
	return ReadRecord(bytes.NewReader(data))
}

// ReadRecord parses one record from src. Short reads are retried until the
// requested count is satisfied or src is exhausted.
func ReadRecord(src io.Reader) (*Record, error) {
	rev, err := readUint(src, 1)
	if err != nil || byte(rev) != RecordRevision {
		return NewRecord(), ErrUnsupportedRevision
	}

	count, err := readUint(src, 3)
	if err != nil {
		return NewRecord(), err
	}

	r := NewRecord()
	for range count {
		keyLen, err := readUint(src, 2)
		if err != nil {
			return NewRecord(), err
		}
		keyBytes, err := readBytes(src, int(keyLen))
		if err != nil {
			return NewRecord(), err
		}

		valueLen, err := readUint(src, 4)
		if err != nil {
			return NewRecord(), err
		}
		if valueLen > maxValueLength {
			return NewRecord(), fmt.Errorf("%w: value of %d bytes", ErrLengthOverflow, valueLen)
		}
		value, err := readBytes(src, int(valueLen))
		if err != nil {
			return NewRecord(), err
		}

		r.put(DecodeKey(keyBytes), value)
	}

	return r, nil
}

func readUint(src io.Reader, width int) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(src, b[:width]); err != nil {
		return 0, truncated(err)
	}
	var n uint32
	for i := range width {
		n = n<<8 | uint32(b[i])
	}
	return n, nil
}

func readBytes(src io.Reader, n int) ([]byte, error) {
	if l, ok := src.(interface{ Len() int }); ok && l.Len() < n {
		return nil, ErrTruncatedStream
	}

	if n <= readChunkSize {
		out := make([]byte, n)
		if _, err := io.ReadFull(src, out); err != nil {
			return nil, truncated(err)
		}
		return out, nil
	}

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, src, int64(n)); err != nil {
		return nil, truncated(err)
	}
	return buf.Bytes(), nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncatedStream
	}
	return errors.Join(ErrTruncatedStream, err)
}
