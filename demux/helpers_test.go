package demux

import (
	"errors"
	"log/slog"

	bmff "github.com/tetsuo/mp4demux"
	"github.com/tetsuo/mp4demux/internal/synth"
)

var quiet = slog.New(slog.DiscardHandler)

// run is the outcome of feeding a file to a demuxer.
type run struct {
	c           *Collector
	d           *Demuxer
	buf         *bmff.Buffer
	steps       int
	maxRetained int
}

// feed writes file into a Buffer frag bytes at a time, one fragment each
// time the demuxer asks for more data, and closes the buffer at the end.
func feed(file []byte, frag int, opts ...Option) (*run, error) {
	r := &run{c: &Collector{}, buf: bmff.NewBuffer()}
	r.d = New(r.buf, r.c, append([]Option{WithLogger(quiet)}, opts...)...)
	off := 0
	limit := 16*len(file) + 1000
	for {
		st, err := r.d.Step()
		r.steps++
		r.maxRetained = max(r.maxRetained, r.buf.Retained())
		switch st {
		case StatusDone:
			return r, nil
		case StatusFailed:
			return r, err
		case StatusNeedData:
			if off == len(file) {
				r.buf.Close()
				continue
			}
			n := min(frag, len(file)-off)
			r.buf.Write(file[off : off+n])
			off += n
		}
		if r.steps > limit {
			return r, errors.New("demuxer made no progress")
		}
	}
}

// samples returns n samples of size bytes with distinct contents.
func samples(n, size int, seed byte) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		s := make([]byte, size)
		for j := range s {
			s[j] = seed + byte(i*size+j)
		}
		out[i] = s
	}
	return out
}

func lpcmTrack(id uint32, s [][]byte, perChunk int) synth.Track {
	return synth.Track{
		ID:              id,
		Handler:         "soun",
		Format:          "sowt",
		Channels:        1,
		BitsPerCh:       16,
		SampleRate:      8000,
		TimeScale:       8000,
		Samples:         s,
		SampleDuration:  1,
		SamplesPerChunk: perChunk,
	}
}

func concat(s [][]byte) []byte {
	var out []byte
	for _, p := range s {
		out = append(out, p...)
	}
	return out
}

// mdatBody returns the body offset of the first top-level mdat box.
func mdatBody(file []byte) int64 {
	r := bmff.NewReader(file)
	for r.Next() {
		if r.Type() == bmff.TypeMdat {
			return int64(r.DataOffset())
		}
	}
	return -1
}
