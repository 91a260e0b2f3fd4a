package main

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bluenviron/mediacommon/pkg/codecs/mpeg4audio"
	"github.com/spf13/cobra"

	"github.com/tetsuo/mp4demux/demux"
)

func (a *app) extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract FILE",
		Short: "Write each track's payload to its own file",
		Long: `Extract streams FILE through the demuxer and writes the samples of
each track to <dir>/<name>.track<ID>.<ext>. AAC tracks get ADTS headers so
the output plays as is; other formats are written raw.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			sink := &extractSink{dir: a.cfg.ExtractDir, base: base, files: make(map[*demux.Track]*trackFile)}
			_, err := demuxFile(cmd.Context(), path, a.cfg.FragmentSize, sink, a.log)
			if cerr := sink.Close(); err == nil {
				err = cerr
			}
			for _, tf := range sink.order {
				a.log.Info("extracted", "track", tf.track.ID, "path", tf.path, "bytes", tf.n)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&a.extractDir, "dir", "", "output directory (default from config)")
	return cmd
}

// trackFile is the output of one track.
type trackFile struct {
	track *demux.Track
	path  string
	f     *os.File
	w     *bufio.Writer
	n     int64

	// AAC only: access unit sizes in delivery order, and the bytes of the
	// unit being assembled.
	adts    *mpeg4audio.Config
	sizes   []uint32
	pending []byte
}

// extractSink writes payload to one file per track.
type extractSink struct {
	dir   string
	base  string
	files map[*demux.Track]*trackFile
	order []*trackFile
}

func extension(f demux.Format) string {
	switch f.ID {
	case "mp4a":
		return "aac"
	case "lpcm":
		return "pcm"
	case "":
		return "bin"
	}
	return strings.TrimSpace(f.ID)
}

func (s *extractSink) AddTrack(t *demux.Track) error {
	if len(t.SeekPoints) == 0 {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s.track%d.%s", s.base, t.ID, extension(t.Format)))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	tf := &trackFile{track: t, path: path, f: f, w: bufio.NewWriter(f)}
	if t.Format.ID == "mp4a" {
		var conf mpeg4audio.Config
		if err := conf.Unmarshal(t.Format.Cookie); err == nil {
			tf.adts = &conf
			// payload arrives in file order
			points := slices.Clone(t.SeekPoints)
			slices.SortStableFunc(points, func(a, b demux.SeekPoint) int { return cmp.Compare(a.Offset, b.Offset) })
			for _, p := range points {
				tf.sizes = append(tf.sizes, p.Length)
			}
		}
	}
	s.files[t] = tf
	s.order = append(s.order, tf)
	return nil
}

func (s *extractSink) Write(t *demux.Track, p []byte) error {
	tf := s.files[t]
	if tf == nil {
		return nil
	}
	if tf.adts == nil {
		n, err := tf.w.Write(p)
		tf.n += int64(n)
		return err
	}
	tf.pending = append(tf.pending, p...)
	for len(tf.sizes) > 0 && len(tf.pending) >= int(tf.sizes[0]) {
		size := tf.sizes[0]
		tf.sizes = tf.sizes[1:]
		pkt, err := mpeg4audio.ADTSPackets{{
			Type:         tf.adts.Type,
			SampleRate:   tf.adts.SampleRate,
			ChannelCount: tf.adts.ChannelCount,
			AU:           tf.pending[:size],
		}}.Marshal()
		if err != nil {
			return fmt.Errorf("track %d: %w", t.ID, err)
		}
		n, err := tf.w.Write(pkt)
		tf.n += int64(n)
		if err != nil {
			return err
		}
		tf.pending = tf.pending[size:]
	}
	return nil
}

func (s *extractSink) Metadata(*demux.Track, demux.Metadata) error { return nil }

// Close flushes and closes every output file.
func (s *extractSink) Close() error {
	var errs []error
	for _, tf := range s.order {
		errs = append(errs, tf.w.Flush(), tf.f.Close())
	}
	return errors.Join(errs...)
}
