// Package atomicfile applies a workbook mutation through a temporary copy so
// the target file is either left untouched or replaced as a whole.
package atomicfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/apperr"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/workbook"
)

// BackupSuffix is appended to the original path while the swap is in flight.
const BackupSuffix = ".backup"

// Archiver receives the pre-mutation bytes of a workbook before it is replaced.
type Archiver interface {
	Archive(ctx context.Context, path string, data []byte) error
}

// Runner executes transactions. Transactions on the same path are serialised.
type Runner struct {
	mu       sync.Mutex
	locks    map[string]*pathLock
	archiver Archiver
	rename   func(oldpath, newpath string) error
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Runner.
type Option func(*Runner)

// WithArchiver archives each file's previous content before it is replaced.
func WithArchiver(a Archiver) Option {
	return func(r *Runner) { r.archiver = a }
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		locks:  make(map[string]*pathLock),
		rename: os.Rename,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do opens a temporary copy of path, hands it to mutate and, if mutate
// returns nil, replaces path with the edited copy.
func (r *Runner) Do(ctx context.Context, path string, mutate func(workbook.Document) error) error {
	_, err := Run(ctx, r, path, func(doc workbook.Document) (struct{}, error) {
		return struct{}{}, mutate(doc)
	})
	return err
}

// Run is Do for mutations that produce a value.
func Run[T any](ctx context.Context, r *Runner, path string, mutate func(workbook.Document) (T, error)) (T, error) {
	var zero T
	abs, err := filepath.Abs(path)
	if err != nil {
		return zero, apperr.Wrap(apperr.IOFailure, "atomic.run", err)
	}
	unlock := r.lock(abs)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return zero, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return zero, apperr.New(apperr.NotFound, "atomic.run", "file not found: %s", path)
		}
		return zero, apperr.Wrap(apperr.IOFailure, "atomic.run", err)
	}
	if info.IsDir() {
		return zero, apperr.New(apperr.InvalidInput, "atomic.run", "%s is a directory", path)
	}
	if format, err := workbook.FormatOf(abs); err == nil && format == workbook.FormatLegacy {
		return zero, workbook.ReadOnlyError("atomic.run", path)
	}

	tx, err := r.begin(abs, info.Mode().Perm())
	if err != nil {
		return zero, err
	}
	defer tx.cleanup()

	result, err := mutate(tx.doc)
	if err != nil {
		slog.Debug("Mutation failed, discarding temporary copy", "path", abs, "error", err)
		return zero, err
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if err := r.commit(ctx, tx); err != nil {
		return zero, err
	}
	return result, nil
}

// View opens path read-only without taking the transaction lock.
func View[T any](path string, read func(workbook.Document) (T, error)) (T, error) {
	var zero T
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return zero, apperr.New(apperr.NotFound, "atomic.view", "file not found: %s", path)
		}
		return zero, apperr.Wrap(apperr.IOFailure, "atomic.view", err)
	}
	doc, err := workbook.Open(path, workbook.ReadOnly)
	if err != nil {
		return zero, err
	}
	defer doc.Close()
	return read(doc)
}

func (r *Runner) lock(path string) func() {
	r.mu.Lock()
	l, ok := r.locks[path]
	if !ok {
		l = &pathLock{}
		r.locks[path] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, path)
		}
		r.mu.Unlock()
	}
}

type transaction struct {
	path     string
	tempPath string
	doc      workbook.Document
	closed   bool
}

func (r *Runner) begin(path string, perm os.FileMode) (*transaction, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	tmp, err := os.CreateTemp(dir, name+"_temp_*"+ext)
	if err != nil {
		return nil, apperr.Wrap(apperr.IOFailure, "atomic.begin", fmt.Errorf("create temporary copy: %w", err))
	}
	tx := &transaction{path: path, tempPath: tmp.Name()}

	if err := copyInto(tmp, path); err != nil {
		tmp.Close()
		tx.cleanup()
		return nil, apperr.Wrap(apperr.IOFailure, "atomic.begin", err)
	}
	if err := tmp.Close(); err != nil {
		tx.cleanup()
		return nil, apperr.Wrap(apperr.IOFailure, "atomic.begin", err)
	}
	if err := os.Chmod(tx.tempPath, perm); err != nil {
		slog.Warn("Failed to copy file mode to temporary copy", "path", tx.tempPath, "error", err)
	}
	slog.Debug("Created temporary copy", "path", path, "temp", tx.tempPath)

	doc, err := workbook.Open(tx.tempPath, workbook.ReadWrite)
	if err != nil {
		tx.cleanup()
		return nil, err
	}
	tx.doc = doc
	return tx, nil
}

func (r *Runner) commit(ctx context.Context, tx *transaction) error {
	if err := tx.doc.Save(); err != nil {
		return err
	}
	if err := tx.closeDoc(); err != nil {
		return apperr.Wrap(apperr.IOFailure, "atomic.commit", err)
	}
	if err := syncFile(tx.tempPath); err != nil {
		return apperr.Wrap(apperr.IOFailure, "atomic.commit", err)
	}

	original, err := os.ReadFile(tx.path)
	if err != nil {
		return apperr.Wrap(apperr.IOFailure, "atomic.commit", fmt.Errorf("read original: %w", err))
	}
	backupPath := tx.path + BackupSuffix
	if err := writeSynced(backupPath, original); err != nil {
		return apperr.Wrap(apperr.IOFailure, "atomic.commit", fmt.Errorf("create backup: %w", err))
	}

	if r.archiver != nil {
		if err := r.archiver.Archive(ctx, tx.path, original); err != nil {
			slog.Warn("Failed to archive workbook snapshot", "path", tx.path, "error", err)
		}
	}

	if err := r.rename(tx.tempPath, tx.path); err != nil {
		// The original and its backup are left in place.
		return apperr.Wrap(apperr.IOFailure, "atomic.commit", fmt.Errorf("replace %s: %w", tx.path, err))
	}
	if err := syncDir(filepath.Dir(tx.path)); err != nil {
		slog.Warn("Failed to sync directory after replace", "path", tx.path, "error", err)
	}
	if err := os.Remove(backupPath); err != nil {
		slog.Warn("Failed to remove backup", "path", backupPath, "error", err)
	}
	slog.Info("Replaced workbook", "path", tx.path)
	return nil
}

func (tx *transaction) closeDoc() error {
	if tx.closed || tx.doc == nil {
		return nil
	}
	tx.closed = true
	return tx.doc.Close()
}

// cleanup removes the temporary copy. Failures are logged, never returned.
func (tx *transaction) cleanup() {
	if err := tx.closeDoc(); err != nil {
		slog.Warn("Failed to close temporary workbook", "path", tx.tempPath, "error", err)
	}
	if err := os.Remove(tx.tempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to remove temporary copy", "path", tx.tempPath, "error", err)
	}
}

func copyInto(dst *os.File, srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open original: %w", err)
	}
	defer src.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy original: %w", err)
	}
	return dst.Sync()
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
