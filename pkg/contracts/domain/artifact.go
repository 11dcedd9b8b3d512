package domain

import "time"

// ArtifactKind distinguishes charts from tabular exports
type ArtifactKind string

const (
	ArtifactKindChart  ArtifactKind = "chart"
	ArtifactKindExport ArtifactKind = "export"
)

// ArtifactRequest asks the reporter for one output file
type ArtifactRequest struct {
	Kind ArtifactKind `json:"kind"`
	// Type is the chart type (trend, category, ...) or the export format (csv, xlsx, ...)
	Type string `json:"type"`
	// Format is the image format for charts; ignored for exports
	Format string `json:"format,omitempty"`
}

// Name returns a stable identifier for the request, e.g. "chart:trend"
func (r ArtifactRequest) Name() string {
	return string(r.Kind) + ":" + r.Type
}

// Artifact is a report file that was written successfully
type Artifact struct {
	Name      string       `json:"name"`
	Kind      ArtifactKind `json:"kind"`
	Type      string       `json:"type"`
	Format    string       `json:"format"`
	Path      string       `json:"path"`
	Bytes     int64        `json:"bytes"`
	CreatedAt time.Time    `json:"created_at"`
}

// ArtifactFailure pairs a request with the error that prevented it
type ArtifactFailure struct {
	Request ArtifactRequest `json:"request"`
	Err     error           `json:"-"`
	Message string          `json:"error"`
}

// ReportResult is what the reporter returns: produced artifacts plus failures
type ReportResult struct {
	Artifacts []Artifact        `json:"artifacts"`
	Failures  []ArtifactFailure `json:"failures"`
}

// Partial reports whether at least one artifact failed
func (r ReportResult) Partial() bool {
	return len(r.Failures) > 0
}
