package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	bmff "github.com/tetsuo/mp4demux"
)

func (a *app) probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe FILE...",
		Short: "Report whether files are MP4",
		Args:  fileArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reports := forEachFile(cmd.Context(), args, a.cfg.Concurrency, func(_ context.Context, path string) fileReport {
				r := fileReport{File: path}
				ok, err := probeFile(path)
				if err != nil {
					r.Error = err.Error()
					return r
				}
				r.Probe = &ok
				return r
			})
			return a.finish(cmd, reports)
		},
	}
}

func probeFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	head := make([]byte, 12)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return bmff.Probe(head[:n]), nil
}

func (a *app) tracksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tracks FILE...",
		Short: "List the tracks of MP4 files",
		Args:  fileArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reports := forEachFile(cmd.Context(), args, a.cfg.Concurrency, func(ctx context.Context, path string) fileReport {
				sink := newReportSink()
				tracks, err := demuxFile(ctx, path, a.cfg.FragmentSize, sink, a.log)
				r := fileReport{File: path}
				if err != nil {
					r.Error = err.Error()
				}
				for _, t := range tracks {
					r.Tracks = append(r.Tracks, newTrackReport(t, sink.bytes[t]))
				}
				return r
			})
			return a.finish(cmd, reports)
		},
	}
}

func (a *app) metaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meta FILE...",
		Short: "Print the iTunes style metadata of MP4 files",
		Args:  fileArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reports := forEachFile(cmd.Context(), args, a.cfg.Concurrency, func(ctx context.Context, path string) fileReport {
				sink := newReportSink()
				_, err := demuxFile(ctx, path, a.cfg.FragmentSize, sink, a.log)
				r := fileReport{File: path, Metadata: newMetaReports(sink.events)}
				if err != nil {
					r.Error = err.Error()
				}
				return r
			})
			return a.finish(cmd, reports)
		},
	}
}

var errSomeFailed = errors.New("some files failed")

// finish prints the reports and fails the command if any file failed.
func (a *app) finish(cmd *cobra.Command, reports []fileReport) error {
	if err := writeReports(cmd.OutOrStdout(), a.cfg.Output, reports); err != nil {
		return err
	}
	for _, r := range reports {
		if r.Error != "" {
			return errSomeFailed
		}
	}
	return nil
}
