package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tetsuo/mp4demux/internal/synth"
)

// genOptions are the knobs of the gen command.
type genOptions struct {
	format    string
	seconds   int
	rate      int
	channels  int
	hz        float64
	mdatFirst bool
	title     string
}

func (a *app) genCmd() *cobra.Command {
	var o genOptions
	cmd := &cobra.Command{
		Use:   "gen OUT",
		Short: "Write a synthesized test file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := o.file()
			if err != nil {
				return err
			}
			b := f.Bytes()
			if err := os.WriteFile(args[0], b, 0o644); err != nil {
				return err
			}
			a.log.Info("generated", "path", args[0], "bytes", len(b), "format", o.format, "mdat_first", o.mdatFirst)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&o.format, "format", "lpcm", "audio format: lpcm, lpcm-be or aac")
	fl.IntVar(&o.seconds, "seconds", 2, "duration")
	fl.IntVar(&o.rate, "rate", 44100, "sample rate")
	fl.IntVar(&o.channels, "channels", 2, "channel count")
	fl.Float64Var(&o.hz, "hz", 440, "tone frequency (PCM only)")
	fl.BoolVar(&o.mdatFirst, "mdat-first", false, "write the media data before the movie box")
	fl.StringVar(&o.title, "title", "mp4demux test tone", "title metadata")
	return cmd
}

func (o *genOptions) file() (*synth.File, error) {
	if o.seconds < 1 || o.rate < 1 || o.channels < 1 || o.channels > 8 {
		return nil, fmt.Errorf("gen: invalid duration, rate or channel count")
	}
	t := synth.Track{
		ID:         1,
		Handler:    "soun",
		Channels:   uint16(o.channels),
		BitsPerCh:  16,
		SampleRate: uint32(o.rate),
		TimeScale:  uint32(o.rate),
	}
	frames := o.seconds * o.rate
	switch o.format {
	case "lpcm", "lpcm-be":
		// one sample per 1024 frames, 8 samples per chunk
		bigEndian := o.format == "lpcm-be"
		t.Format = "sowt"
		if bigEndian {
			t.Format = "twos"
		}
		t.Samples = synth.PCMTone(o.hz, o.rate, o.channels, frames, 1024, bigEndian)
		t.SampleDuration = 1024
		t.SamplesPerChunk = 8
		// the last sample may be short
		t.ExplicitSizes = frames%1024 != 0
	case "aac":
		if o.channels > 2 {
			return nil, fmt.Errorf("gen: aac supports 1 or 2 channels")
		}
		asc, err := synth.AACConfig(o.rate, o.channels)
		if err != nil {
			return nil, fmt.Errorf("gen: %w", err)
		}
		t.Format = "mp4a"
		t.Cookie = asc
		t.Samples = synth.AACSilence(o.channels, (frames+1023)/1024)
		t.SampleDuration = 1024
		t.SamplesPerChunk = 16
		t.ExplicitSizes = true
	default:
		return nil, fmt.Errorf("gen: unknown format %q", o.format)
	}
	return &synth.File{
		Tracks:    []synth.Track{t},
		Meta:      []synth.Item{synth.Text("\xa9nam", o.title), synth.Text("\xa9too", "mp4demux gen")},
		MdatFirst: o.mdatFirst,
	}, nil
}
