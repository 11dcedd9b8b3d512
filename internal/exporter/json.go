package exporter

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"salescli/pkg/contracts"
	"salescli/pkg/contracts/domain"
)

// MetricsDocument is the layout of metrics.json
type MetricsDocument struct {
	FormatVersion string              `json:"format_version"`
	GeneratedAt   time.Time           `json:"generated_at"`
	Source        string              `json:"source,omitempty"`
	Values        map[string]float64  `json:"values"`
	Metrics       *domain.MetricSet   `json:"metrics"`
	Clean         *domain.CleanReport `json:"clean,omitempty"`
}

// NewMetricsDocument assembles the JSON document for a report input
func NewMetricsDocument(in ReportInput, now time.Time) MetricsDocument {
	doc := MetricsDocument{
		FormatVersion: contracts.DataFormatVersion,
		GeneratedAt:   now.UTC(),
		Values:        in.Metrics.Values(),
		Metrics:       in.Metrics,
		Clean:         in.Clean,
	}
	if in.Dataset != nil {
		doc.Source = in.Dataset.Source
	}
	return doc
}

// WriteJSON writes the metrics document as indented JSON
func WriteJSON(path string, doc MetricsDocument) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	return file.Close()
}
