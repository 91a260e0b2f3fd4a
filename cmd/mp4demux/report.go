package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/tetsuo/mp4demux/demux"
)

// fileReport is what tracks and meta print for one file.
type fileReport struct {
	File     string        `yaml:"file"`
	Error    string        `yaml:"error,omitempty"`
	Probe    *bool         `yaml:"mp4,omitempty"`
	Tracks   []trackReport `yaml:"tracks,omitempty"`
	Metadata []metaReport  `yaml:"metadata,omitempty"`
}

type trackReport struct {
	ID         uint32   `yaml:"id"`
	Type       string   `yaml:"type"`
	Codec      string   `yaml:"codec,omitempty"`
	Channels   uint16   `yaml:"channels,omitempty"`
	Bits       uint16   `yaml:"bits,omitempty"`
	SampleRate uint32   `yaml:"sample_rate,omitempty"`
	TimeScale  uint32   `yaml:"timescale"`
	DurationMs uint64   `yaml:"duration_ms"`
	Samples    int      `yaml:"samples"`
	Bytes      int64    `yaml:"bytes"`
	Chapters   []uint32 `yaml:"chapters,omitempty"`
}

type metaReport struct {
	Track  uint32         `yaml:"track,omitempty"`
	Fields map[string]any `yaml:"fields"`
}

func newTrackReport(t *demux.Track, delivered int64) trackReport {
	return trackReport{
		ID:         t.ID,
		Type:       t.Type.String(),
		Codec:      t.Format.Codec(),
		Channels:   t.Format.ChannelsPerFrame,
		Bits:       t.Format.BitsPerChannel,
		SampleRate: t.Format.SampleRate,
		TimeScale:  t.TimeScale,
		DurationMs: t.Duration,
		Samples:    len(t.SeekPoints),
		Bytes:      delivered,
		Chapters:   t.ChapterTracks,
	}
}

func newMetaReports(events []demux.MetadataEvent) []metaReport {
	out := make([]metaReport, 0, len(events))
	for _, ev := range events {
		fields := make(map[string]any, len(ev.Fields))
		for k, v := range ev.Fields {
			if b, ok := v.([]byte); ok {
				v = fmt.Sprintf("<%d bytes>", len(b))
			}
			fields[k] = v
		}
		out = append(out, metaReport{Track: ev.TrackID, Fields: fields})
	}
	return out
}

// forEachFile runs fn for every file, at most limit at a time, and
// collects one report per file in argument order. A failing file does
// not stop the others.
func forEachFile(ctx context.Context, files []string, limit int, fn func(ctx context.Context, path string) fileReport) []fileReport {
	reports := make([]fileReport, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range files {
		g.Go(func() error {
			reports[i] = fn(ctx, path)
			return nil
		})
	}
	g.Wait()
	return reports
}

func writeReports(w io.Writer, format string, reports []fileReport) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return err
		}
		return enc.Close()
	}
	for _, r := range reports {
		writeText(w, r)
	}
	return nil
}

func writeText(w io.Writer, r fileReport) {
	fmt.Fprintf(w, "%s\n", r.File)
	if r.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", r.Error)
	}
	if r.Probe != nil {
		fmt.Fprintf(w, "  mp4: %t\n", *r.Probe)
	}
	for _, t := range r.Tracks {
		fmt.Fprintf(w, "  [track %d] %s", t.ID, t.Type)
		if t.Codec != "" {
			fmt.Fprintf(w, " codec=%s", t.Codec)
		}
		if t.Channels != 0 {
			fmt.Fprintf(w, " ch=%d bits=%d rate=%d", t.Channels, t.Bits, t.SampleRate)
		}
		fmt.Fprintf(w, " timescale=%d duration=%dms samples=%d bytes=%d", t.TimeScale, t.DurationMs, t.Samples, t.Bytes)
		if len(t.Chapters) > 0 {
			fmt.Fprintf(w, " chapters=%v", t.Chapters)
		}
		fmt.Fprintln(w)
	}
	for _, m := range r.Metadata {
		if m.Track != 0 {
			fmt.Fprintf(w, "  [metadata track %d]\n", m.Track)
		} else {
			fmt.Fprintf(w, "  [metadata]\n")
		}
		keys := make([]string, 0, len(m.Fields))
		for k := range m.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		width := 0
		for _, k := range keys {
			width = max(width, len(k))
		}
		for _, k := range keys {
			fmt.Fprintf(w, "    %s%s %v\n", k+":", strings.Repeat(" ", width-len(k)), m.Fields[k])
		}
	}
}
