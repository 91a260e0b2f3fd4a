package demux

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	bmff "github.com/tetsuo/mp4demux"
)

// Chunk is a physically contiguous run of one track's samples.
type Chunk struct {
	Track  *Track
	Offset int64
	Length int64
}

// buildChunks projects the seek points of all tracks onto one list sorted by
// file offset, joining samples of the same track that follow each other
// directly. Ties keep track order, so the result is deterministic.
func buildChunks(tracks []*Track) []Chunk {
	var n int
	for _, t := range tracks {
		n += len(t.SeekPoints)
	}
	chunks := make([]Chunk, 0, n)
	for _, t := range tracks {
		for _, p := range t.SeekPoints {
			chunks = append(chunks, Chunk{Track: t, Offset: p.Offset, Length: int64(p.Length)})
		}
	}
	slices.SortStableFunc(chunks, func(a, b Chunk) int {
		return cmp.Compare(a.Offset, b.Offset)
	})

	out := chunks[:0]
	for _, c := range chunks {
		if k := len(out) - 1; k >= 0 && out[k].Track == c.Track && out[k].Offset+out[k].Length == c.Offset {
			out[k].Length += c.Length
			continue
		}
		out = append(out, c)
	}
	return slices.Clip(out)
}

func (d *Demuxer) afterMoov() error {
	d.moovDone = true
	d.chunks = buildChunks(d.tracks)
	d.log.Debug("movie box complete", "tracks", len(d.tracks), "chunks", len(d.chunks))
	if d.mdatSeen {
		d.log.Debug("rewinding to media data", "offset", d.mdatStart)
		return d.src.Seek(d.mdatStart)
	}
	return nil
}

// readMdat streams the media data box. Before the movie box is known the
// box is skipped as it arrives and its position remembered; afterwards each
// step delivers as much of the next chunk as is buffered.
func (d *Demuxer) readMdat() error {
	f := d.top()
	if !d.moovDone {
		if err := d.skipBody(); err != nil {
			return err
		}
		if !d.mdatSeen {
			d.mdatSeen = true
			d.mdatStart = f.start
			d.log.Debug("media data before movie box", "offset", f.start)
		}
		return nil
	}

	for d.chunkIndex < len(d.chunks) && d.chunks[d.chunkIndex].Offset+d.chunkPos < f.body {
		c := d.chunks[d.chunkIndex]
		d.log.Warn("chunk outside media data", "track", c.Track.ID, "offset", c.Offset, "length", c.Length)
		d.chunkIndex++
		d.chunkPos = 0
	}
	if d.chunkIndex == len(d.chunks) || d.chunks[d.chunkIndex].Offset >= f.end {
		// nothing left in this box; later chunks belong to a later one
		return d.skipBody()
	}

	c := d.chunks[d.chunkIndex]
	want := c.Length - d.chunkPos
	if want == 0 {
		// a zero-size sample has nothing to deliver
		d.chunkIndex++
		d.chunkPos = 0
		return nil
	}
	if err := d.src.Seek(c.Offset + d.chunkPos); err != nil {
		return err
	}
	p := d.src.ReadUpTo(int(min(want, math.MaxInt32)))
	if len(p) == 0 {
		return bmff.ErrInsufficientData
	}
	if err := d.sink.Write(c.Track, p); err != nil {
		return fmt.Errorf("write track %d: %w", c.Track.ID, err)
	}
	if int64(len(p)) == want {
		d.chunkIndex++
		d.chunkPos = 0
	} else {
		d.chunkPos += int64(len(p))
	}
	return nil
}
