package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	bmff "github.com/tetsuo/mp4demux"
	"github.com/tetsuo/mp4demux/demux"
)

var errNotMP4 = errors.New("not an MP4 file")

// demuxFile feeds the file at path through a demuxer fragSize bytes at a
// time, the way a network reader would, and returns the tracks it found.
func demuxFile(ctx context.Context, path string, fragSize int, sink demux.Sink, log *slog.Logger) ([]*demux.Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return demuxReader(ctx, f, fragSize, sink, log.With("file", path))
}

func demuxReader(ctx context.Context, r io.Reader, fragSize int, sink demux.Sink, log *slog.Logger) ([]*demux.Track, error) {
	br := bufio.NewReaderSize(r, max(fragSize, 16))
	head, _ := br.Peek(12)
	if !bmff.Probe(head) {
		return nil, errNotMP4
	}

	buf := bmff.NewBuffer()
	d := demux.New(buf, sink, demux.WithLogger(log))
	p := make([]byte, fragSize)
	for {
		st, err := d.Step()
		switch st {
		case demux.StatusDone:
			return d.Tracks(), nil
		case demux.StatusFailed:
			return d.Tracks(), err
		case demux.StatusNeedData:
			if err := ctx.Err(); err != nil {
				return d.Tracks(), err
			}
			n, rerr := io.ReadFull(br, p)
			if n > 0 {
				buf.Write(p[:n])
			}
			switch {
			case rerr == io.EOF || rerr == io.ErrUnexpectedEOF:
				buf.Close()
			case rerr != nil:
				return d.Tracks(), fmt.Errorf("read: %w", rerr)
			}
		}
	}
}

// reportSink counts payload bytes and keeps metadata without retaining
// any payload.
type reportSink struct {
	bytes  map[*demux.Track]int64
	events []demux.MetadataEvent
}

func newReportSink() *reportSink {
	return &reportSink{bytes: make(map[*demux.Track]int64)}
}

func (s *reportSink) AddTrack(t *demux.Track) error {
	s.bytes[t] = 0
	return nil
}

func (s *reportSink) Write(t *demux.Track, p []byte) error {
	s.bytes[t] += int64(len(p))
	return nil
}

func (s *reportSink) Metadata(t *demux.Track, m demux.Metadata) error {
	ev := demux.MetadataEvent{Fields: m}
	if t != nil {
		ev.TrackID = t.ID
	}
	s.events = append(s.events, ev)
	return nil
}
