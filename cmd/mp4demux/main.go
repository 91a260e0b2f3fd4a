// Command mp4demux inspects MP4 files with the incremental demuxer: it
// probes them, lists their tracks and metadata, extracts track payloads,
// dumps box trees and generates test files.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	console "github.com/phsym/console-slog"
	"github.com/spf13/cobra"

	"github.com/tetsuo/mp4demux/internal/config"
)

var version = "dev"

// app is the state shared by all commands once flags are parsed.
type app struct {
	cfg config.Config
	log *slog.Logger

	configPath   string
	logLevel     string
	fragmentSize int
	output       string
	concurrency  int
	extractDir   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "mp4demux",
		Short:        "Inspect and demux MP4 files",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "YAML configuration file")
	f.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.IntVar(&a.fragmentSize, "fragment-size", 0, "bytes handed to the demuxer per read")
	f.StringVarP(&a.output, "output", "o", "", "report format: text or yaml")
	f.IntVarP(&a.concurrency, "concurrency", "j", 0, "files processed at once")

	root.AddCommand(
		a.probeCmd(),
		a.tracksCmd(),
		a.metaCmd(),
		a.extractCmd(),
		a.dumpCmd(),
		a.genCmd(),
	)
	return root
}

// setup loads the configuration, applies flag overrides and installs the
// logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("fragment-size") {
		cfg.FragmentSize = a.fragmentSize
	}
	if flags.Changed("output") {
		cfg.Output = a.output
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = a.concurrency
	}
	if flags.Changed("dir") {
		cfg.ExtractDir = a.extractDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, _ := cfg.Level()

	a.cfg = cfg
	a.log = slog.New(console.NewHandler(cmd.ErrOrStderr(), &console.HandlerOptions{Level: level}))
	slog.SetDefault(a.log)
	a.log.Debug("configuration", "fragment_size", cfg.FragmentSize, "output", cfg.Output, "concurrency", cfg.Concurrency)
	return nil
}

func fileArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%s needs at least one file", cmd.Name())
	}
	return nil
}
