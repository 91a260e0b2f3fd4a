package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	bmff "github.com/tetsuo/mp4demux"
)

func (a *app) dumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump FILE",
		Short: "Print the box tree of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return dump(cmd.OutOrStdout(), f)
		},
	}
}

// dump walks the top-level boxes of rs and prints them. Only ftyp and moov
// bodies are loaded into memory.
func dump(w io.Writer, rs io.ReadSeeker) error {
	sc := bmff.NewScanner(rs)
	for sc.Next() {
		e := sc.Entry()
		fmt.Fprintf(w, "[%s] offset=%d size=%d", e.Type, e.Offset, e.Size)
		switch e.Type {
		case bmff.TypeFtyp, bmff.TypeMoov:
			buf := make([]byte, e.DataSize())
			if err := sc.ReadBody(buf); err != nil {
				return fmt.Errorf("reading %s: %w", e.Type, err)
			}
			if e.Type == bmff.TypeFtyp {
				printFtyp(w, bmff.ReadFtyp(buf))
				fmt.Fprintln(w)
				continue
			}
			fmt.Fprintln(w)
			r := bmff.NewReader(buf)
			walk(w, &r, 1)
		case bmff.TypeMdat:
			fmt.Fprintf(w, " dataLen=%d\n", e.DataSize())
		default:
			fmt.Fprintln(w)
		}
	}
	return sc.Err()
}

func printFtyp(w io.Writer, f bmff.FtypInfo) {
	fmt.Fprintf(w, " brand=%s ver=%d", f.MajorBrand, f.MinorVersion)
	if len(f.Compatible) > 0 {
		names := make([]string, len(f.Compatible))
		for i, c := range f.Compatible {
			names[i] = c.String()
		}
		fmt.Fprintf(w, " compat=[%s]", strings.Join(names, ","))
	}
}

func walk(w io.Writer, r *bmff.Reader, depth int) {
	indent := strings.Repeat("  ", depth)
	for r.Next() {
		fmt.Fprintf(w, "%s[%s] size=%d", indent, printable(r.Type()), r.Size())
		if bmff.IsFullBox(r.Type()) {
			fmt.Fprintf(w, " v=%d flags=0x%06x", r.Version(), r.Flags())
		}
		printBoxInfo(w, r)
		fmt.Fprintln(w)

		switch {
		case r.Type() == bmff.TypeIlst:
			if r.Enter() {
				walkIlst(w, r, depth+1)
				r.Exit()
			}
		case bmff.IsContainerBox(r.Type()):
			if r.Enter() {
				walk(w, r, depth+1)
				r.Exit()
			}
		case r.Type() == bmff.TypeStsd:
			if r.Enter() {
				r.Skip(4) // entry count
				for r.Next() {
					printSampleEntry(w, r, depth+1)
				}
				r.Exit()
			}
		}
	}
}

// walkIlst prints each metadata item with the size and type of its data box.
func walkIlst(w io.Writer, r *bmff.Reader, depth int) {
	indent := strings.Repeat("  ", depth)
	for r.Next() {
		fmt.Fprintf(w, "%s[%s] size=%d", indent, printable(r.Type()), r.Size())
		if r.Enter() {
			for r.Next() {
				if r.Type() != bmff.TypeData || len(r.Data()) < 8 {
					continue
				}
				d := r.Data()
				fmt.Fprintf(w, " type=%d len=%d", uint32(d[1])<<16|uint32(d[2])<<8|uint32(d[3]), len(d)-8)
			}
			r.Exit()
		}
		fmt.Fprintln(w)
	}
}

// audioEntries are the sample entry types laid out as sound descriptions.
var audioEntries = map[string]bool{
	"mp4a": true, "alac": true, "sowt": true, "twos": true, "lpcm": true,
	"in24": true, "in32": true, "fl32": true, "fl64": true, "raw ": true,
	"NONE": true, "ulaw": true, "alaw": true, "ac-3": true, "ec-3": true,
	"Opus": true, "fLaC": true,
}

func printSampleEntry(w io.Writer, r *bmff.Reader, depth int) {
	indent := strings.Repeat("  ", depth)
	t := r.Type()
	if len(r.Data()) < 28 || !audioEntries[t.String()] {
		fmt.Fprintf(w, "%s[%s] size=%d (raw %d bytes)\n", indent, printable(t), r.Size(), len(r.Data()))
		return
	}
	a := bmff.ReadAudioSampleEntry(r.Data())
	fmt.Fprintf(w, "%s[%s] size=%d v=%d ch=%d sampleSize=%d sampleRate=%d\n",
		indent, printable(t), r.Size(), a.Version, a.ChannelCount, a.SampleSize, a.SampleRate>>16)
	if !r.Enter() {
		return
	}
	r.Skip(a.ChildOffset)
	childIndent := strings.Repeat("  ", depth+1)
	for r.Next() {
		fmt.Fprintf(w, "%s[%s] size=%d", childIndent, printable(r.Type()), r.Size())
		switch r.Type() {
		case bmff.TypeEsds:
			d := bmff.ReadESDescriptor(r.Data())
			fmt.Fprintf(w, " objectType=0x%02x config=%x", d.ObjectType, d.DecoderSpecificInfo)
		case bmff.TypeAlac:
			fmt.Fprintf(w, " cookie=%d bytes", len(r.Data())-4)
		case bmff.TypeWave:
			fmt.Fprintln(w)
			if r.Enter() {
				walk(w, r, depth+2)
				r.Exit()
			}
			continue
		}
		fmt.Fprintln(w)
	}
	r.Exit()
}

func printBoxInfo(w io.Writer, r *bmff.Reader) {
	switch r.Type() {
	case bmff.TypeMvhd:
		m := r.ReadMvhd()
		fmt.Fprintf(w, " timescale=%d duration=%d nextTrackId=%d", m.TimeScale, m.Duration, m.NextTrackID)

	case bmff.TypeTkhd:
		t := r.ReadTkhd()
		fmt.Fprintf(w, " trackId=%d duration=%d size=%dx%d", t.TrackID, t.Duration, t.Width>>16, t.Height>>16)

	case bmff.TypeMdhd:
		m := r.ReadMdhd()
		fmt.Fprintf(w, " timescale=%d duration=%d lang=%s", m.TimeScale, m.Duration, language(m.Language))

	case bmff.TypeHdlr:
		h := r.ReadHdlr()
		fmt.Fprintf(w, " type=%s name=%q", h.Type, h.Name)

	case bmff.TypeStsd, bmff.TypeDref:
		fmt.Fprintf(w, " entries=%d", r.EntryCount())

	case bmff.TypeStsz:
		it := bmff.NewStszIter(r.Data())
		fmt.Fprintf(w, " sampleSize=%d entries=%d", it.SampleSize(), it.Count())

	case bmff.TypeStco, bmff.TypeStss:
		it := bmff.NewUint32Iter(r.Data())
		fmt.Fprintf(w, " entries=%d", it.Count())

	case bmff.TypeStts:
		it := bmff.NewSttsIter(r.Data())
		fmt.Fprintf(w, " entries=%d", it.Count())

	case bmff.TypeStsc:
		it := bmff.NewStscIter(r.Data())
		fmt.Fprintf(w, " entries=%d", it.Count())

	case bmff.TypeChap:
		d := r.Data()
		for i := 0; i+4 <= len(d); i += 4 {
			fmt.Fprintf(w, " track=%d", uint32(d[i])<<24|uint32(d[i+1])<<16|uint32(d[i+2])<<8|uint32(d[i+3]))
		}
	}
}

// language decodes a packed ISO-639-2/T code.
func language(l uint16) string {
	if l == 0 {
		return "-"
	}
	return string([]byte{byte(l>>10&0x1f) + 0x60, byte(l>>5&0x1f) + 0x60, byte(l&0x1f) + 0x60})
}

// printable replaces the 0xA9 byte of QuickTime text tags with "©".
func printable(t bmff.BoxType) string {
	if t[0] == 0xa9 {
		return "©" + string(t[1:])
	}
	return t.String()
}
