package bmff

import (
	"bytes"
	"testing"
)

func TestReadESDescriptor(t *testing.T) {
	asc := []byte{0x12, 0x10}
	data := boxData(t, func(w *Writer) { w.WriteEsds(0x40, asc) })
	d := ReadESDescriptor(data)
	if d.ObjectType != 0x40 {
		t.Errorf("ObjectType = %#x", d.ObjectType)
	}
	if !bytes.Equal(d.DecoderSpecificInfo, asc) {
		t.Errorf("DecoderSpecificInfo = %x, want %x", d.DecoderSpecificInfo, asc)
	}
}

func TestReadESDescriptor_LongLengths(t *testing.T) {
	// lengths padded to four bytes, as some encoders write them
	data := []byte{
		TagESDescriptor, 0x80, 0x80, 0x80, 0x19,
		0x00, 0x01, 0x00,
		TagDecoderConfigDescriptor, 0x80, 0x80, 0x80, 0x11,
		0x40, 0x15, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		TagDecoderSpecificInfo, 0x80, 0x80, 0x80, 0x02,
		0x11, 0x90,
	}
	d := ReadESDescriptor(data)
	if !bytes.Equal(d.DecoderSpecificInfo, []byte{0x11, 0x90}) {
		t.Fatalf("DecoderSpecificInfo = %x", d.DecoderSpecificInfo)
	}
}

func TestReadESDescriptor_OptionalFields(t *testing.T) {
	data := []byte{
		TagESDescriptor, 0x20,
		0x00, 0x01, 0xe0, // stream dependence, URL and OCR flags
		0x00, 0x02, // depends on ES_ID
		0x03, 'a', 'b', 'c', // URL
		0x00, 0x03, // OCR ES_ID
		TagDecoderConfigDescriptor, 0x10,
		0x6b, 0x15, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
	d := ReadESDescriptor(data)
	if d.ObjectType != 0x6b {
		t.Fatalf("ObjectType = %#x", d.ObjectType)
	}
	if d.DecoderSpecificInfo != nil {
		t.Errorf("DecoderSpecificInfo = %x, want none", d.DecoderSpecificInfo)
	}
}

func TestReadESDescriptor_Truncated(t *testing.T) {
	asc := []byte{0x12, 0x10}
	data := boxData(t, func(w *Writer) { w.WriteEsds(0x40, asc) })
	for n := range len(data) {
		// must not panic on any prefix
		ReadESDescriptor(data[:n])
	}
}
