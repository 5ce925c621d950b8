package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"github.com/efreitasn/alertbridge/internal/clock"
	"github.com/efreitasn/alertbridge/internal/domain"
)

// CSVSink appends one row per order to a local file. The header row is
// written when the file is missing or empty. Writes are serialized so
// concurrent records never interleave within a line.
type CSVSink struct {
	path  string
	clock clock.Clock
	mu    sync.Mutex
}

// NewCSVSink creates a sink appending to path.
func NewCSVSink(path string, clk clock.Clock) *CSVSink {
	return &CSVSink{path: path, clock: clk}
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Record(_ context.Context, order *domain.OrderResult) error {
	row := Row(s.clock.Now(), order)

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", s.path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", s.path, err)
	}
	return f.Close()
}
