package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecode(t *testing.T) {
	c, err := Decode(strings.NewReader(`
log_level: debug
fragment_size: 4096
output: yaml
extract_dir: /tmp/out
concurrency: 3
`))
	if err != nil {
		t.Fatal(err)
	}
	want := Config{LogLevel: "debug", FragmentSize: 4096, Output: "yaml", ExtractDir: "/tmp/out", Concurrency: 3}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if l, _ := c.Level(); l != slog.LevelDebug {
		t.Errorf("Level = %s", l)
	}
}

func TestDecode_Defaults(t *testing.T) {
	for _, doc := range []string{"", "output: text\n"} {
		c, err := Decode(strings.NewReader(doc))
		if err != nil {
			t.Fatalf("%q: %v", doc, err)
		}
		want := Config{
			LogLevel:     DefaultLogLevel,
			FragmentSize: DefaultFragmentSize,
			Output:       DefaultOutput,
			ExtractDir:   DefaultExtractDir,
			Concurrency:  runtime.GOMAXPROCS(0),
		}
		if diff := cmp.Diff(want, c); diff != "" {
			t.Errorf("%q: config mismatch (-want +got):\n%s", doc, diff)
		}
	}
}

func TestDecode_Errors(t *testing.T) {
	for _, doc := range []string{
		"fragmentsize: 10\n",
		"fragment_size: -1\n",
		"output: json\n",
		"log_level: loud\n",
		"concurrency: -2\n",
		"fragment_size: [1]\n",
	} {
		if _, err := Decode(strings.NewReader(doc)); err == nil {
			t.Errorf("%q: no error", doc)
		}
	}
}

func TestLoad(t *testing.T) {
	c, err := Load("")
	if err != nil || c != Default() {
		t.Fatalf("Load(\"\") = %+v, %v", c, err)
	}

	path := filepath.Join(t.TempDir(), "mp4demux.yaml")
	if err := os.WriteFile(path, []byte("fragment_size: 17\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err = Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.FragmentSize != 17 || c.Output != DefaultOutput {
		t.Errorf("Load = %+v", c)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}
