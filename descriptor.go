package bmff

// MPEG-4 descriptor tags used inside esds.
const (
	TagESDescriptor            = 0x03
	TagDecoderConfigDescriptor = 0x04
	TagDecoderSpecificInfo     = 0x05
)

// ESDescriptor holds the fields of an esds descriptor chain the demuxer uses.
type ESDescriptor struct {
	// ObjectType is the DecoderConfigDescriptor object type indication
	// (0x40 for MPEG-4 audio). Zero when no decoder config was found.
	ObjectType uint8
	// DecoderSpecificInfo is the opaque codec configuration, e.g. an AAC
	// AudioSpecificConfig. It aliases data.
	DecoderSpecificInfo []byte
}

// ReadESDescriptor walks the descriptor chain of esds box data (after the
// version and flags field). Truncated or unexpected descriptors end the walk
// early; whatever was found up to that point is returned.
func ReadESDescriptor(data []byte) ESDescriptor {
	var d ESDescriptor
	end := len(data)

	tag, _, ptr, ok := readDescriptorHeader(data, 0, end)
	if !ok {
		return d
	}
	if tag == TagESDescriptor {
		if ptr+3 > end {
			return d
		}
		// ES_ID (2 bytes) + stream dependency flags (1 byte)
		flags := data[ptr+2]
		ptr += 3
		if flags&0x80 != 0 { // streamDependenceFlag
			ptr += 2
		}
		if flags&0x40 != 0 { // URL_Flag
			if ptr >= end {
				return d
			}
			ptr += 1 + int(data[ptr])
		}
		if flags&0x20 != 0 { // OCRstreamFlag
			ptr += 2
		}
	} else {
		ptr += 2 // id
	}

	tag, _, ptr, ok = readDescriptorHeader(data, ptr, end)
	if !ok || tag != TagDecoderConfigDescriptor {
		return d
	}
	// OTI(1)+streamType(1)+bufferSizeDB(3)+maxBitrate(4)+avgBitrate(4) = 13
	if ptr+13 > end {
		return d
	}
	d.ObjectType = data[ptr]
	ptr += 13

	tag, n, ptr, ok := readDescriptorHeader(data, ptr, end)
	if !ok || tag != TagDecoderSpecificInfo || ptr+n > end {
		return d
	}
	d.DecoderSpecificInfo = data[ptr : ptr+n]
	return d
}

// readDescriptorHeader reads a tag byte and its variable-length size:
// up to 4 bytes of 7 bits each, high bit set on all but the last.
// Returns the tag, the payload length and the payload position.
func readDescriptorHeader(data []byte, ptr, end int) (tag byte, length, next int, ok bool) {
	if ptr < 0 || ptr >= end {
		return 0, 0, ptr, false
	}
	tag = data[ptr]
	ptr++
	for i := 0; i < 4; i++ {
		if ptr >= end {
			return 0, 0, ptr, false
		}
		b := data[ptr]
		ptr++
		length = length<<7 | int(b&0x7f)
		if b&0x80 == 0 {
			break
		}
	}
	return tag, length, ptr, true
}
