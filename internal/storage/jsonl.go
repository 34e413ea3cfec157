package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"holdersync/internal/model"
)

// WriteHoldersJSONL writes holder records as JSON lines.
func WriteHoldersJSONL(w io.Writer, records []model.HolderRecord) error {
	writer := bufio.NewWriter(w)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal holder record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write holder record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// ExportHoldersJSONL truncates path and writes the records to it.
func ExportHoldersJSONL(path string, records []model.HolderRecord) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	return WriteHoldersJSONL(file, records)
}
