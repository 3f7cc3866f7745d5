package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/Zakerman110/master-work-644/models"
	"github.com/Zakerman110/master-work-644/utils"
)

var csvHeader = []string{
	"marketplace", "name", "price", "url", "image_url", "review_count", "scraped_at",
}

// CSVWriter appends raw listings to a CSV file. Safe for concurrent use.
type CSVWriter struct {
	mu       sync.Mutex
	filePath string
	logger   *utils.Logger
}

// NewCSVWriter creates a new CSVWriter
func NewCSVWriter(filePath string, logger *utils.Logger) *CSVWriter {
	return &CSVWriter{filePath: filePath, logger: logger}
}

// SaveRaw appends listings to the file, writing the header when the file is new
func (w *CSVWriter) SaveRaw(listings []*models.RawListing) error {
	if len(listings) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Dir(w.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	writeHeader := false
	if info, err := os.Stat(w.filePath); err != nil || info.Size() == 0 {
		writeHeader = true
	}

	file, err := os.OpenFile(w.filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if writeHeader {
		if err := writer.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}

	for _, l := range listings {
		row := []string{
			string(l.Marketplace),
			l.Name,
			l.Price,
			l.URL,
			l.ImageURL,
			strconv.Itoa(len(l.Reviews)),
			l.ScrapedAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			w.logger.Error("failed to write CSV row", "name", l.Name, "error", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}

	w.logger.Debug("raw listings appended", "path", w.filePath, "rows", len(listings))
	return nil
}

// Close is a no-op; the file is opened per batch
func (w *CSVWriter) Close() error { return nil }
