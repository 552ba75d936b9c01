// Package snapshot archives the previous content of a workbook before an
// atomic transaction replaces it.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/atomicfile"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/pathutil"
)

// Driver names a snapshot backend.
type Driver string

const (
	DriverNone       Driver = "none"
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

// Config selects and configures a driver.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open returns the archiver for cfg. DriverNone (or an empty driver) yields
// a nil archiver, which atomicfile treats as disabled.
func Open(ctx context.Context, cfg Config) (atomicfile.Archiver, error) {
	switch cfg.Driver {
	case "", DriverNone:
		return nil, nil
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown snapshot driver %s", cfg.Driver)
	}
}

// Filesystem stores snapshots below a root directory.
type Filesystem struct {
	root string
	now  func() time.Time
}

// NewFilesystem creates the root directory if needed.
func NewFilesystem(root string) (*Filesystem, error) {
	if root == "" {
		return nil, fmt.Errorf("snapshot fs root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot root: %w", err)
	}
	return &Filesystem{root: root, now: time.Now}, nil
}

// Archive writes data to {root}/{yyyy}/{mm}/{timestamp}-{name}.
func (f *Filesystem) Archive(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest := filepath.Join(f.root, filepath.FromSlash(pathutil.SnapshotKey(path, f.now())))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	slog.Debug("Archived workbook snapshot", "path", path, "snapshot", dest, "bytes", len(data))
	return nil
}
