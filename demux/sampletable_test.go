package demux

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	bmff "github.com/tetsuo/mp4demux"
)

func TestBuildSeekPoints(t *testing.T) {
	tr := &Track{
		ID:           1,
		stts:         []bmff.SttsEntry{{Count: 2, Duration: 10}, {Count: 1, Duration: 5}},
		stsc:         []bmff.StscEntry{{FirstChunk: 1, SamplesPerChunk: 2, SampleDescriptionId: 1}, {FirstChunk: 2, SamplesPerChunk: 2, SampleDescriptionId: 1}},
		sampleSizes:  []uint32{3, 4, 5, 6},
		chunkOffsets: []uint32{100, 200},
	}
	buildSeekPoints(tr, quiet)
	want := []SeekPoint{
		{Offset: 100, Length: 3, Timestamp: 0, Duration: 10},
		{Offset: 103, Length: 4, Timestamp: 10, Duration: 10},
		{Offset: 200, Length: 5, Timestamp: 20, Duration: 5},
		// the last stts run extends over the remaining samples
		{Offset: 205, Length: 6, Timestamp: 25, Duration: 5},
	}
	if diff := cmp.Diff(want, tr.SeekPoints); diff != "" {
		t.Errorf("seek points mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSeekPoints_StscRuns(t *testing.T) {
	// chunks 1-2 hold one sample, chunk 3 onwards three
	tr := &Track{
		stts:         []bmff.SttsEntry{{Count: 100, Duration: 1}},
		stsc:         []bmff.StscEntry{{FirstChunk: 1, SamplesPerChunk: 1}, {FirstChunk: 3, SamplesPerChunk: 3}},
		sampleSize:   2,
		sampleCount:  8,
		chunkOffsets: []uint32{0, 10, 20, 40},
	}
	buildSeekPoints(tr, quiet)
	var got []int64
	for _, p := range tr.SeekPoints {
		got = append(got, p.Offset)
	}
	want := []int64{0, 10, 20, 22, 24, 40, 42, 44}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("offsets mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSeekPoints_SizeTableExhausted(t *testing.T) {
	tr := &Track{
		stts:         []bmff.SttsEntry{{Count: 4, Duration: 1}},
		stsc:         []bmff.StscEntry{{FirstChunk: 1, SamplesPerChunk: 4}},
		sampleSizes:  []uint32{1, 1},
		chunkOffsets: []uint32{50},
	}
	buildSeekPoints(tr, quiet)
	if len(tr.SeekPoints) != 2 {
		t.Errorf("got %d seek points, want 2", len(tr.SeekPoints))
	}
}

func TestBuildSeekPoints_MissingTables(t *testing.T) {
	tr := &Track{chunkOffsets: []uint32{1, 2}, sampleSize: 1, sampleCount: 2}
	buildSeekPoints(tr, quiet)
	if tr.SeekPoints != nil {
		t.Errorf("seek points = %v", tr.SeekPoints)
	}
	empty := &Track{}
	buildSeekPoints(empty, quiet)
	if empty.SeekPoints != nil {
		t.Errorf("seek points = %v", empty.SeekPoints)
	}
}

func TestDurationMillis(t *testing.T) {
	tests := []struct {
		ticks uint64
		ts    uint32
		want  uint64
	}{
		{0, 1000, 0},
		{44100, 44100, 1000},
		{9 * 1024, 44100, 208},
		{1 << 60, 1024, 1000 << 50}, // ticks*1000 overflows 64 bits
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := durationMillis(tt.ticks, tt.ts); got != tt.want {
			t.Errorf("durationMillis(%d, %d) = %d, want %d", tt.ticks, tt.ts, got, tt.want)
		}
	}
	tr := &Track{TimeScale: 8000}
	if got := tr.Millis(12000); got != 1500 {
		t.Errorf("Millis = %d", got)
	}
	p := SeekPoint{Timestamp: 88200, Duration: 1024}
	if got := p.TimestampMs(44100); got != 2000 {
		t.Errorf("TimestampMs = %d", got)
	}
	if got := p.DurationMs(44100); got != 23 {
		t.Errorf("DurationMs = %d", got)
	}
}
