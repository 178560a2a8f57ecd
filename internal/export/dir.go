package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// DirExporter writes CSV files to a local directory.
type DirExporter struct {
	dir    string
	now    func() time.Time
	logger *logging.Logger
}

func NewDirExporter(dir string, logger *logging.Logger) *DirExporter {
	if dir == "" {
		dir = "exports"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DirExporter{dir: dir, now: time.Now, logger: logger}
}

func (e *DirExporter) Export(_ context.Context, row Row) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("export: create dir: %w", err)
	}
	data, err := encode(true, row.Values())
	if err != nil {
		return "", err
	}
	path := filepath.Join(e.dir, fileName(row, e.now()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("export: write %s: %w", path, err)
	}
	e.logger.Info("appointment exported", "appointment_id", row.Booking.AppointmentID, "path", path)
	return path, nil
}
