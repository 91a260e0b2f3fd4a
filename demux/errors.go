package demux

import (
	"errors"
	"fmt"
	"io"

	bmff "github.com/tetsuo/mp4demux"
)

var (
	// ErrUnsupportedStructure reports a valid but unsupported layout, such as
	// an audio sample description with more than one entry.
	ErrUnsupportedStructure = errors.New("unsupported structure")
	// ErrMalformedHeader reports a box header that cannot describe a box:
	// sizes 2 to 7, a child overrunning its parent, or nesting too deep.
	ErrMalformedHeader = errors.New("malformed box header")
	// ErrMalformedBox reports a box body too short for the fields it must hold.
	ErrMalformedBox = errors.New("malformed box body")
	// ErrTruncated reports that the stream ended while a step still needed
	// bytes. It wraps io.ErrUnexpectedEOF.
	ErrTruncated = fmt.Errorf("truncated stream: %w", io.ErrUnexpectedEOF)

	errUnknownTrack = errors.New("write to unregistered track")
)

// StructureError is a fatal parse error located in the box tree.
type StructureError struct {
	Path   bmff.Path // enclosing boxes, outermost first
	Offset int64     // absolute stream offset of the failing box
	Err    error
}

func (e *StructureError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("demux: at offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("demux: %s at offset %d: %v", e.Path, e.Offset, e.Err)
}

func (e *StructureError) Unwrap() error { return e.Err }
