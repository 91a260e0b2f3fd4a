package demux

// Sink receives what the demuxer extracts. Calls arrive in file order from
// the goroutine driving Step. Any error is fatal to the parse.
type Sink interface {
	// AddTrack is called once per trak box, after its whole subtree.
	AddTrack(t *Track) error
	// Write delivers consecutive payload bytes of t. p is never modified
	// afterwards by a bmff.Buffer source and may be retained.
	Write(t *Track, p []byte) error
	// Metadata is called once per meta box. t is nil for movie level
	// metadata.
	Metadata(t *Track, m Metadata) error
}

// MetadataEvent is one Metadata call recorded by a Collector.
type MetadataEvent struct {
	TrackID uint32 // 0 for movie level metadata
	Fields  Metadata
}

// Collector is a Sink that keeps everything in memory.
type Collector struct {
	Tracks   []*Track
	Payloads [][]byte // indexed like Tracks
	Events   []MetadataEvent

	index map[*Track]int
}

var _ Sink = (*Collector)(nil)

// AddTrack records t and opens an empty payload for it.
func (c *Collector) AddTrack(t *Track) error {
	if c.index == nil {
		c.index = make(map[*Track]int)
	}
	c.index[t] = len(c.Tracks)
	c.Tracks = append(c.Tracks, t)
	c.Payloads = append(c.Payloads, nil)
	return nil
}

// Write appends p to the payload of t.
func (c *Collector) Write(t *Track, p []byte) error {
	i, ok := c.index[t]
	if !ok {
		return errUnknownTrack
	}
	c.Payloads[i] = append(c.Payloads[i], p...)
	return nil
}

// Metadata records m as an event of t, or of the movie when t is nil.
func (c *Collector) Metadata(t *Track, m Metadata) error {
	ev := MetadataEvent{Fields: m}
	if t != nil {
		ev.TrackID = t.ID
	}
	c.Events = append(c.Events, ev)
	return nil
}

// Payload returns the bytes delivered for the track with the given id.
func (c *Collector) Payload(id uint32) []byte {
	for i, t := range c.Tracks {
		if t.ID == id {
			return c.Payloads[i]
		}
	}
	return nil
}
