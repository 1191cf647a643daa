package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/mpmsim/internal/metrics"
)

// ExportData bundles a run's metadata with its history.
type ExportData struct {
	Metadata RunMetadata      `json:"metadata"`
	History  []metrics.Sample `json:"history"`
}

// Export writes the metadata and history of a run as indented JSON.
func (s *Store) Export(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	history, err := s.LoadHistory(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{Metadata: *meta, History: history})
}
