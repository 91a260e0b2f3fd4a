package demux

import "log/slog"

// buildSeekPoints merges the chunk offset, sample-to-chunk, time-to-sample
// and sample size tables of t into one seek point per sample, in chunk
// order. Offsets are exact file positions.
//
// Tables that run out early end the list instead of failing the parse: a
// track with a broken table still gets registered, with the samples that
// could be located.
func buildSeekPoints(t *Track, log *slog.Logger) {
	if len(t.chunkOffsets) == 0 {
		return
	}
	if len(t.stsc) == 0 || len(t.stts) == 0 {
		log.Warn("track has chunks but no sample runs",
			"track", t.ID, "stsc", len(t.stsc), "stts", len(t.stts))
		return
	}

	n := len(t.sampleSizes)
	if t.sampleSize != 0 {
		n = int(min(t.sampleCount, 1<<20))
	}
	points := make([]SeekPoint, 0, n)

	var (
		stscIndex  int
		sttsIndex  int
		sttsSample uint32
		sizeIndex  int
		timestamp  uint64
	)
	for i, chunkOffset := range t.chunkOffsets {
		offset := int64(chunkOffset)
		chunk := uint32(i + 1)
		for stscIndex+1 < len(t.stsc) && chunk >= t.stsc[stscIndex+1].FirstChunk {
			stscIndex++
		}

		for range t.stsc[stscIndex].SamplesPerChunk {
			length := t.sampleSize
			if length == 0 {
				if sizeIndex >= len(t.sampleSizes) {
					log.Warn("sample size table exhausted",
						"track", t.ID, "samples", len(points), "chunk", chunk)
					t.SeekPoints = points
					return
				}
				length = t.sampleSizes[sizeIndex]
				sizeIndex++
			}
			duration := t.stts[sttsIndex].Duration
			points = append(points, SeekPoint{
				Offset:    offset,
				Length:    length,
				Timestamp: timestamp,
				Duration:  duration,
			})
			offset += int64(length)
			timestamp += uint64(duration)

			// the last run covers any remaining samples
			if sttsIndex+1 < len(t.stts) {
				sttsSample++
				if sttsSample >= t.stts[sttsIndex].Count {
					sttsSample = 0
					sttsIndex++
				}
			}
		}
	}
	t.SeekPoints = points
}
