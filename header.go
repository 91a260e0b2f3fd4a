package bmff

import (
	"errors"
	"fmt"
)

// ErrBadSize reports a declared box size smaller than the header holding it.
var ErrBadSize = errors.New("bmff: box size smaller than its header")

// Header is a decoded box header.
type Header struct {
	Type BoxType
	// Size is the declared total size. 0 means the box extends to the end
	// of its parent, or of the stream at top level.
	Size       uint64
	HeaderSize int // 8, or 16 with a 64-bit size
}

// ParseHeader decodes the box header at the start of b. It returns
// ErrInsufficientData when b ends inside the header; callers reading
// incrementally offer the first 8 bytes, then 16 once they know a 64-bit
// size follows. On ErrBadSize the returned header still carries the type
// and declared size.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < 8 {
		return Header{}, ErrInsufficientData
	}
	h := Header{
		Type:       BoxType(b[4:8]),
		Size:       uint64(be.Uint32(b)),
		HeaderSize: 8,
	}
	switch {
	case h.Size == 1:
		if len(b) < 16 {
			return h, ErrInsufficientData
		}
		h.Size = be.Uint64(b[8:16])
		h.HeaderSize = 16
		if h.Size < 16 {
			return h, fmt.Errorf("%w: %s declares %d", ErrBadSize, h.Type, h.Size)
		}
	case h.Size != 0 && h.Size < 8:
		return h, fmt.Errorf("%w: %s declares %d", ErrBadSize, h.Type, h.Size)
	}
	return h, nil
}

// The decoders below take the body of a full box after its version and
// flags field. They report false when data is too short for the leading
// fields; trailing fields missing from a short body stay zero.

// MvhdInfo holds the movie header fields the tools use.
type MvhdInfo struct {
	TimeScale   uint32
	Duration    uint64
	NextTrackID uint32
}

// ParseMvhd decodes an mvhd body.
func ParseMvhd(version uint8, data []byte) (MvhdInfo, bool) {
	var m MvhdInfo
	// version 1 widens creation and modification time and duration
	next := 92
	if version == 1 {
		if len(data) < 28 {
			return m, false
		}
		m.TimeScale = be.Uint32(data[16:20])
		m.Duration = be.Uint64(data[20:28])
		next = 104
	} else {
		if len(data) < 16 {
			return m, false
		}
		m.TimeScale = be.Uint32(data[8:12])
		m.Duration = uint64(be.Uint32(data[12:16]))
	}
	// rate, volume, reserved, matrix and pre_defined precede next_track_ID
	if len(data) >= next+4 {
		m.NextTrackID = be.Uint32(data[next:])
	}
	return m, true
}

// TkhdInfo holds the track header fields the tools use. Width and Height
// are 16.16 fixed point.
type TkhdInfo struct {
	TrackID  uint32
	Duration uint64
	Width    uint32
	Height   uint32
}

// ParseTkhd decodes a tkhd body. Only the track ID is required.
func ParseTkhd(version uint8, data []byte) (TkhdInfo, bool) {
	var t TkhdInfo
	sizeAt := 72
	if version == 1 {
		if len(data) < 20 {
			return t, false
		}
		t.TrackID = be.Uint32(data[16:20])
		if len(data) >= 32 {
			t.Duration = be.Uint64(data[24:32])
		}
		sizeAt = 84
	} else {
		if len(data) < 12 {
			return t, false
		}
		t.TrackID = be.Uint32(data[8:12])
		if len(data) >= 20 {
			t.Duration = uint64(be.Uint32(data[16:20]))
		}
	}
	if len(data) >= sizeAt+8 {
		t.Width = be.Uint32(data[sizeAt:])
		t.Height = be.Uint32(data[sizeAt+4:])
	}
	return t, true
}

// MdhdInfo holds the media header fields. Language is the packed
// ISO-639-2/T code.
type MdhdInfo struct {
	TimeScale uint32
	Duration  uint64
	Language  uint16
}

// ParseMdhd decodes an mdhd body. Time scale and duration are required.
func ParseMdhd(version uint8, data []byte) (MdhdInfo, bool) {
	var m MdhdInfo
	langAt := 16
	if version == 1 {
		if len(data) < 28 {
			return m, false
		}
		m.TimeScale = be.Uint32(data[16:20])
		m.Duration = be.Uint64(data[20:28])
		langAt = 28
	} else {
		if len(data) < 16 {
			return m, false
		}
		m.TimeScale = be.Uint32(data[8:12])
		m.Duration = uint64(be.Uint32(data[12:16]))
	}
	if len(data) >= langAt+2 {
		m.Language = be.Uint16(data[langAt:])
	}
	return m, true
}

// HdlrInfo holds the handler type and name.
type HdlrInfo struct {
	Type BoxType
	Name string
}

// ParseHdlr decodes an hdlr body. The name is read up to its first NUL.
func ParseHdlr(data []byte) (HdlrInfo, bool) {
	if len(data) < 8 {
		return HdlrInfo{}, false
	}
	// pre_defined or QuickTime component type comes first
	h := HdlrInfo{Type: BoxType(data[4:8])}
	if len(data) > 20 {
		name := data[20:]
		for i, c := range name {
			if c == 0 {
				name = name[:i]
				break
			}
		}
		h.Name = string(name)
	}
	return h, true
}
