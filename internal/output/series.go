package output

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/bilayer-epidemic/internal/engine"
)

// Row is one step of a metric series stream.
type Row struct {
	Step   int                `json:"step"`
	Values map[string]float64 `json:"values"`
}

// SeriesWriter streams rows as zstd-compressed JSON lines.
type SeriesWriter struct {
	mu     sync.Mutex
	closer io.Closer // Underlying file, when the writer owns one
	enc    *zstd.Encoder
	w      *bufio.Writer
}

// NewSeriesWriter compresses onto dst. Closing the SeriesWriter does not
// close dst.
func NewSeriesWriter(dst io.Writer) (*SeriesWriter, error) {
	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	return &SeriesWriter{
		enc: enc,
		w:   bufio.NewWriterSize(enc, 128*1024),
	}, nil
}

// CreateSeriesFile creates path (and its directory) and returns a writer
// that owns the file.
func CreateSeriesFile(path string) (*SeriesWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	sw, err := NewSeriesWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	sw.closer = f
	return sw, nil
}

// Write appends one row.
func (s *SeriesWriter) Write(row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.w == nil {
		return errors.New("output: series writer is closed")
	}
	b, err := json.Marshal(row)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	return s.w.WriteByte('\n')
}

// WriteResult appends every step of res.
func (s *SeriesWriter) WriteResult(res *engine.Result) error {
	for step := 0; step < res.Steps(); step++ {
		row := Row{Step: step, Values: make(map[string]float64, len(res.Names))}
		for _, name := range res.Names {
			row.Values[name] = res.Series[name][step]
		}
		if err := s.Write(row); err != nil {
			return fmt.Errorf("write step %d: %w", step, err)
		}
	}
	return nil
}

// Close flushes and finishes the zstd frame.
func (s *SeriesWriter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.w == nil {
		return nil
	}
	err := s.w.Flush()
	err = errors.Join(err, s.enc.Close())
	if s.closer != nil {
		err = errors.Join(err, s.closer.Close())
	}
	s.w, s.enc, s.closer = nil, nil, nil
	return err
}

// ReadSeries decodes every row of a stream written by SeriesWriter.
func ReadSeries(r io.Reader) ([]Row, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var rows []Row
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var row Row
		if err := json.Unmarshal(sc.Bytes(), &row); err != nil {
			return nil, fmt.Errorf("decode row %d: %w", len(rows), err)
		}
		rows = append(rows, row)
	}
	return rows, sc.Err()
}
