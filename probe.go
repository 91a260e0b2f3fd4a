package bmff

import "slices"

// knownBrands are the major brands Probe accepts.
// See http://mp4ra.org/filetype.html for a complete list.
var knownBrands = []BoxType{
	NewBoxType("M4A "),
	NewBoxType("M4P "),
	NewBoxType("M4B "),
	NewBoxType("M4V "),
	NewBoxType("isom"),
	NewBoxType("mp42"),
	NewBoxType("qt  "),
	NewBoxType("mp41"),
	NewBoxType("iso2"),
}

// Probe reports whether b starts with an ftyp box whose major brand is a
// known MP4/QuickTime file type. It needs at least 12 bytes.
func Probe(b []byte) bool {
	if len(b) < 12 || BoxType(b[4:8]) != TypeFtyp {
		return false
	}
	return slices.Contains(knownBrands, BoxType(b[8:12]))
}
