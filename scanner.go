package bmff

import (
	"errors"
	"fmt"
	"io"
)

// ScanEntry is a top-level box found by a Scanner.
type ScanEntry struct {
	Type       BoxType
	Offset     int64 // from the start of the stream
	Size       int64 // header included
	HeaderSize int
}

// DataSize returns the body length.
func (e ScanEntry) DataSize() int64 { return e.Size - int64(e.HeaderSize) }

// Scanner lists the top-level boxes of a seekable file, seeking over
// bodies instead of reading them. It suits files whose moov sits after a
// large mdat: scan, then ReadBody the boxes worth a NewReader.
//
//	sc := bmff.NewScanner(f)
//	for sc.Next() {
//	    if e := sc.Entry(); e.Type == bmff.TypeMoov {
//	        body := make([]byte, e.DataSize())
//	        if err := sc.ReadBody(body); err != nil { ... }
//	        r := bmff.NewReader(body)
//	        ...
//	    }
//	}
//	if err := sc.Err(); err != nil { ... }
type Scanner struct {
	rs    io.ReadSeeker
	hdr   [16]byte
	entry ScanEntry
	next  int64 // offset of the following box
	err   error
}

// NewScanner returns a Scanner positioned at the start of rs.
func NewScanner(rs io.ReadSeeker) Scanner {
	return Scanner{rs: rs}
}

// Next moves to the next box. It returns false at the end of the file or
// on an error, which Err reports. A file ending inside a header is treated
// as ending before it.
func (s *Scanner) Next() bool {
	if s.err != nil {
		return false
	}
	start := s.next
	if _, err := s.rs.Seek(start, io.SeekStart); err != nil {
		s.err = err
		return false
	}
	h, err := s.header()
	if err != nil {
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			s.err = err
		}
		return false
	}

	size := int64(h.Size)
	if h.Size == 0 {
		end, err := s.rs.Seek(0, io.SeekEnd)
		if err != nil {
			s.err = err
			return false
		}
		size = end - start
	} else if h.Size > 1<<62 {
		s.err = fmt.Errorf("bmff: box %s at %d declares size %d", h.Type, start, h.Size)
		return false
	}
	s.entry = ScanEntry{Type: h.Type, Offset: start, Size: size, HeaderSize: h.HeaderSize}
	s.next = start + size
	return true
}

// header reads 8 header bytes, and 8 more for a 64-bit size.
func (s *Scanner) header() (Header, error) {
	if _, err := io.ReadFull(s.rs, s.hdr[:8]); err != nil {
		return Header{}, err
	}
	h, err := ParseHeader(s.hdr[:8])
	if errors.Is(err, ErrInsufficientData) {
		if _, err := io.ReadFull(s.rs, s.hdr[8:16]); err != nil {
			return Header{}, err
		}
		h, err = ParseHeader(s.hdr[:16])
	}
	if err != nil {
		return h, fmt.Errorf("bmff: box at %d: %w", s.next, err)
	}
	return h, nil
}

// Entry returns the box found by the last successful Next.
func (s *Scanner) Entry() ScanEntry { return s.entry }

// Err returns the first error other than reaching the end of the file.
func (s *Scanner) Err() error { return s.err }

// ReadBody fills buf, which must be DataSize bytes long, with the body of
// the current box.
func (s *Scanner) ReadBody(buf []byte) error {
	if _, err := s.rs.Seek(s.entry.Offset+int64(s.entry.HeaderSize), io.SeekStart); err != nil {
		return err
	}
	_, err := io.ReadFull(s.rs, buf)
	return err
}
