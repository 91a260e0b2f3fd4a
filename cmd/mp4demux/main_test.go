package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGenAndTracks(t *testing.T) {
	dir := t.TempDir()
	for _, tc := range []struct {
		format string
		codec  string
		extra  []string
	}{
		{"lpcm", "lpcm", nil},
		{"aac", "mp4a.40.2", []string{"--mdat-first"}},
	} {
		path := filepath.Join(dir, tc.format+".m4a")
		args := append([]string{"gen", path, "--format", tc.format, "--seconds", "1", "--rate", "8000"}, tc.extra...)
		if _, err := execute(t, args...); err != nil {
			t.Fatalf("gen %s: %v", tc.format, err)
		}

		out, err := execute(t, "tracks", "-o", "yaml", "--fragment-size", "333", path)
		if err != nil {
			t.Fatalf("tracks %s: %v\n%s", tc.format, err, out)
		}
		var reports []fileReport
		if err := yaml.Unmarshal([]byte(out), &reports); err != nil {
			t.Fatalf("tracks output is not yaml: %v\n%s", err, out)
		}
		if len(reports) != 1 || len(reports[0].Tracks) != 1 {
			t.Fatalf("reports = %+v", reports)
		}
		tr := reports[0].Tracks[0]
		if tr.Codec != tc.codec || tr.SampleRate != 8000 || tr.Channels != 2 || tr.Bytes == 0 {
			t.Errorf("%s: track = %+v", tc.format, tr)
		}
		if tr.DurationMs < 1000 || tr.DurationMs > 1150 {
			t.Errorf("%s: duration %dms", tc.format, tr.DurationMs)
		}
	}
}

func TestMetaAndDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.m4a")
	if _, err := execute(t, "gen", path, "--seconds", "1", "--title", "hello"); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "meta", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "title:") || !strings.Contains(out, "hello") {
		t.Errorf("meta output:\n%s", out)
	}

	out, err = execute(t, "dump", path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"[ftyp]", "brand=M4A ", "[moov]", "[stsd]", "[sowt]", "[©nam]", "[mdat]"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump output lacks %q:\n%s", want, out)
		}
	}
}

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.m4a")
	if _, err := execute(t, "gen", path, "--format", "aac", "--seconds", "1", "--channels", "1"); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "out")
	if _, err := execute(t, "extract", path, "--dir", outDir); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(outDir, "tone.track1.aac"))
	if err != nil {
		t.Fatal(err)
	}
	// every frame starts with an ADTS sync word
	if len(b) < 2 || b[0] != 0xff || b[1]&0xf0 != 0xf0 {
		t.Fatalf("output does not start with ADTS: %x", b[:min(len(b), 8)])
	}
	frames := (44100 + 1023) / 1024
	if want := frames * (7 + 4); len(b) != want {
		t.Errorf("wrote %d bytes, want %d", len(b), want)
	}
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.m4a")
	if _, err := execute(t, "gen", good); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "bad.bin")
	if err := os.WriteFile(bad, []byte("definitely not"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "probe", "-o", "yaml", good, bad)
	if err != nil {
		t.Fatal(err)
	}
	var reports []fileReport
	if err := yaml.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatal(err)
	}
	if len(reports) != 2 || reports[0].Probe == nil || !*reports[0].Probe || reports[1].Probe == nil || *reports[1].Probe {
		t.Errorf("reports = %+v", reports)
	}

	if _, err := execute(t, "tracks", bad); err == nil {
		t.Error("tracks accepted a non-MP4 file")
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "c.yaml")
	if err := os.WriteFile(conf, []byte("output: yaml\nfragment_size: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "tone.m4a")
	if _, err := execute(t, "gen", path, "--seconds", "1", "--rate", "4000"); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "--config", conf, "tracks", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "- file:") {
		t.Errorf("config output format not applied:\n%s", out)
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("nope: 1\n"), 0o644)
	if _, err := execute(t, "--config", bad, "probe", path); err == nil {
		t.Error("unknown config key accepted")
	}
}
