// Package pathutil provides centralized path management for workbooks and data files.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PathResolver manages paths for the service's data directory, its databases
// and the per-institution personal account folders.
type PathResolver struct {
	dataDir             string
	historyDBPath       string
	directoryDBPath     string
	personalAccountRoot string
}

// Config represents the configuration for PathResolver.
type Config struct {
	// DataDir holds the service's own files (e.g., ./data)
	DataDir string
	// HistoryDBPath is the SQLite payment history file
	HistoryDBPath string
	// DirectoryDBPath is the bbolt institution directory file
	DirectoryDBPath string
	// PersonalAccountRoot has one sub-directory per institution
	PersonalAccountRoot string
}

// New creates a new PathResolver with the given configuration.
// If HistoryDBPath is empty, it defaults to {DataDir}/history.db
// If DirectoryDBPath is empty, it defaults to {DataDir}/directory.db
func New(config Config) *PathResolver {
	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "data"
	}

	historyDB := config.HistoryDBPath
	if historyDB == "" {
		historyDB = filepath.Join(dataDir, "history.db")
	}

	directoryDB := config.DirectoryDBPath
	if directoryDB == "" {
		directoryDB = filepath.Join(dataDir, "directory.db")
	}

	return &PathResolver{
		dataDir:             dataDir,
		historyDBPath:       historyDB,
		directoryDBPath:     directoryDB,
		personalAccountRoot: config.PersonalAccountRoot,
	}
}

// GetDataDir returns the data directory.
func (p *PathResolver) GetDataDir() string {
	return p.dataDir
}

// GetHistoryDBPath returns the payment history database path.
func (p *PathResolver) GetHistoryDBPath() string {
	return p.historyDBPath
}

// GetDirectoryDBPath returns the institution directory database path.
func (p *PathResolver) GetDirectoryDBPath() string {
	return p.directoryDBPath
}

// GetPersonalAccountRoot returns the personal account root directory.
func (p *PathResolver) GetPersonalAccountRoot() string {
	return p.personalAccountRoot
}

// GetInstitutionDir returns the personal account folder of an institution.
// Example: /books/personal/Acme
func (p *PathResolver) GetInstitutionDir(institution string) (string, error) {
	return InstitutionDir(p.personalAccountRoot, institution)
}

// InstitutionDir joins root and institution, refusing names that would
// escape root.
func InstitutionDir(root, institution string) (string, error) {
	name := strings.TrimSpace(institution)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid institution name: %q", institution)
	}
	return filepath.Join(root, name), nil
}

// SnapshotKey returns the archive key for a file captured at t.
// Example: 2024/03/20240315T101500.000000000Z-cashbook.xlsx
func SnapshotKey(path string, t time.Time) string {
	t = t.UTC()
	stamp := t.Format("20060102T150405.000000000Z")
	return fmt.Sprintf("%04d/%02d/%s-%s", t.Year(), int(t.Month()), stamp, filepath.Base(path))
}

// EnsureDir creates a directory if it doesn't exist.
// It creates all parent directories as needed (like mkdir -p).
func (p *PathResolver) EnsureDir(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dirPath, err)
	}
	return nil
}

// EnsureParentDir ensures the parent directory of a file exists.
func (p *PathResolver) EnsureParentDir(filePath string) error {
	return p.EnsureDir(filepath.Dir(filePath))
}

// FileExists checks if a file exists.
func (p *PathResolver) FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}

// IsDir checks if a path is a directory.
func (p *PathResolver) IsDir(dirPath string) bool {
	info, err := os.Stat(dirPath)
	if err != nil {
		return false
	}
	return info.IsDir()
}
