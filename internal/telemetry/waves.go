// Package telemetry writes per-wave CSV records.
package telemetry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"WaveSiege/internal/game"
)

// WaveRecord is one row of waves.csv.
type WaveRecord struct {
	Room       string  `csv:"room"`
	Wave       int     `csv:"wave"`
	Modifier   string  `csv:"modifier"`
	Groups     int     `csv:"groups"`
	Spawned    int     `csv:"spawned"`
	Killed     int     `csv:"killed"`
	Leaked     int     `csv:"leaked"`
	DurationS  float64 `csv:"duration_s"`
	GoldHost   int     `csv:"gold_host"`
	GoldClient int     `csv:"gold_client"`
	Lives      int     `csv:"lives"`
	Score      int     `csv:"score"`
	NextWave   int     `csv:"next_wave"`
	NextTotal  int     `csv:"next_total"`
}

// RecordFor flattens a wave report.
func RecordFor(room string, r game.WaveReport) WaveRecord {
	return WaveRecord{
		Room:       room,
		Wave:       r.Wave,
		Modifier:   r.Modifier,
		Groups:     r.Groups,
		Spawned:    r.Spawned,
		Killed:     r.Killed,
		Leaked:     r.Leaked,
		DurationS:  r.Duration,
		GoldHost:   r.GoldHost,
		GoldClient: r.GoldClient,
		Lives:      r.Lives,
		Score:      r.Score,
		NextWave:   r.Next.Number,
		NextTotal:  r.Next.Total(),
	}
}

// WaveWriter appends wave records to a CSV stream, writing the header once.
type WaveWriter struct {
	w             io.Writer
	file          *os.File
	headerWritten bool
}

// NewWaveWriter writes to w.
func NewWaveWriter(w io.Writer) *WaveWriter {
	return &WaveWriter{w: w}
}

// OpenWaveLog creates dir/waves.csv. It returns nil when dir is empty, which
// disables output; a nil writer accepts and drops records.
func OpenWaveLog(dir string) (*WaveWriter, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating telemetry directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "waves.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating waves.csv: %w", err)
	}
	return &WaveWriter{w: f, file: f}, nil
}

// Write appends one record.
func (ww *WaveWriter) Write(rec WaveRecord) error {
	if ww == nil {
		return nil
	}
	records := []WaveRecord{rec}
	if !ww.headerWritten {
		if err := gocsv.Marshal(records, ww.w); err != nil {
			return fmt.Errorf("writing wave record: %w", err)
		}
		ww.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, ww.w); err != nil {
		return fmt.Errorf("writing wave record: %w", err)
	}
	return nil
}

// Close closes the underlying file, if any.
func (ww *WaveWriter) Close() error {
	if ww == nil || ww.file == nil {
		return nil
	}
	return ww.file.Close()
}

// ReadWaveLog parses a waves.csv stream.
func ReadWaveLog(r io.Reader) ([]WaveRecord, error) {
	var out []WaveRecord
	if err := gocsv.Unmarshal(r, &out); err != nil {
		return nil, fmt.Errorf("reading wave log: %w", err)
	}
	return out, nil
}
