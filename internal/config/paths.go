package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the directories a run reads from and writes to
type Paths struct {
	OutputDir  string
	RunsDir    string
	UploadsDir string
	LogsDir    string
}

// GetPaths resolves the working directories below the configured output dir
func GetPaths(cfg *Config) (*Paths, error) {
	outputDir, err := filepath.Abs(cfg.Report.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory %s: %v", cfg.Report.OutputDir, err)
	}

	logsDir := "logs"
	if cfg.Logging.FilePath != "" {
		logsDir = filepath.Dir(cfg.Logging.FilePath)
	}

	return &Paths{
		OutputDir:  outputDir,
		RunsDir:    filepath.Join(outputDir, "runs"),
		UploadsDir: filepath.Join(outputDir, "uploads"),
		LogsDir:    logsDir,
	}, nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.OutputDir,
		p.RunsDir,
		p.UploadsDir,
	}

	logger := slog.Default()
	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
		logger.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// RunDir returns the artifact directory of a server-side run
func (p *Paths) RunDir(runID string) string {
	return filepath.Join(p.RunsDir, runID)
}

// UploadPath returns where an uploaded input file for a run is stored
func (p *Paths) UploadPath(runID, filename string) string {
	return filepath.Join(p.UploadsDir, runID+"_"+filepath.Base(filename))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
