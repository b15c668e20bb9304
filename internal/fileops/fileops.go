// Package fileops performs native operations on library files: opening,
// revealing, deleting, renaming and tagging them.
package fileops

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/starford/folio/internal/apperr"
)

// Ops is the native file surface used by the library.
type Ops interface {
	// Open opens path, at page when a reader program supports it. It
	// returns the program that was used.
	Open(ctx context.Context, path string, page int, program string) (string, error)
	ShowInExplorer(ctx context.Context, path string) error
	Delete(ctx context.Context, path string) error
	// Rename renames the file within its directory and returns the new
	// full path.
	Rename(ctx context.Context, fullPath, newName string) (string, error)
	// SetMetadata writes a creator tag into the file and returns it.
	SetMetadata(ctx context.Context, path string) (string, error)
}

type command struct {
	name string
	args []string
}

// Local runs operations on the local filesystem and desktop.
type Local struct {
	goos   string
	start  func(ctx context.Context, c command) error
	exists func(path string) bool
	logger *slog.Logger
}

var _ Ops = (*Local)(nil)

// NewLocal returns Local for the running OS.
func NewLocal(logger *slog.Logger) *Local {
	return &Local{
		goos:   runtime.GOOS,
		start:  startDetached,
		exists: fileExists,
		logger: logger.With(slog.String("component", "fileops")),
	}
}

func startDetached(_ context.Context, c command) error {
	// The viewer outlives the request, so no CommandContext here.
	cmd := exec.Command(c.name, c.args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (l *Local) Open(ctx context.Context, path string, page int, program string) (string, error) {
	c := openCommand(l.goos, path, page, program, l.exists)
	if err := l.start(ctx, c); err != nil {
		if c.name == program {
			// Fall back to the shell association.
			fallback := openCommand(l.goos, path, 0, "", l.exists)
			if ferr := l.start(ctx, fallback); ferr == nil {
				l.logger.Warn("fileops: reader failed, opened with default",
					slog.String("program", program), slog.String("error", err.Error()))
				return fallback.name, nil
			}
		}
		return "", apperr.New(apperr.KindNative, "open "+path, err)
	}
	return c.name, nil
}

func openCommand(goos, path string, page int, program string, exists func(string) bool) command {
	switch goos {
	case "windows":
		if page > 0 && strings.HasSuffix(strings.ToLower(path), ".pdf") && program != "" && exists(program) {
			return command{name: program, args: []string{"/A", "page=" + strconv.Itoa(page), path}}
		}
		return command{name: "explorer", args: []string{path}}
	case "darwin":
		return command{name: "open", args: []string{path}}
	default:
		return command{name: "xdg-open", args: []string{path}}
	}
}

func (l *Local) ShowInExplorer(ctx context.Context, path string) error {
	if err := l.start(ctx, revealCommand(l.goos, path)); err != nil {
		return apperr.New(apperr.KindNative, "show "+path, err)
	}
	return nil
}

func revealCommand(goos, path string) command {
	switch goos {
	case "windows":
		return command{name: "explorer", args: []string{"/select,", path}}
	case "darwin":
		return command{name: "open", args: []string{"-R", path}}
	default:
		return command{name: "xdg-open", args: []string{ParentDir(path)}}
	}
}

// Delete removes a file or a whole directory.
func (l *Local) Delete(_ context.Context, path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return apperr.New(apperr.KindNotFound, path+" does not exist", apperr.ErrNotFound)
	}
	if err != nil {
		return apperr.New(apperr.KindNative, "delete "+path, err)
	}
	if info.IsDir() {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		return apperr.New(apperr.KindNative, "delete "+path, err)
	}
	l.logger.Info("fileops: deleted", slog.String("path", path))
	return nil
}

// Rename refuses to overwrite an existing file.
func (l *Local) Rename(_ context.Context, fullPath, newName string) (string, error) {
	if newName == "" || strings.ContainsAny(newName, `/\`) {
		return "", apperr.New(apperr.KindInvalid, fmt.Sprintf("bad file name %q", newName), apperr.ErrInvalid)
	}
	if !l.exists(fullPath) {
		return "", apperr.New(apperr.KindNotFound, fullPath+" does not exist", apperr.ErrNotFound)
	}
	target := filepath.Join(filepath.Dir(fullPath), newName)
	if l.exists(target) {
		return "", apperr.New(apperr.KindNative, newName+" already exists in this directory", apperr.ErrAlreadyExists)
	}
	if err := os.Rename(fullPath, target); err != nil {
		return "", apperr.New(apperr.KindNative, "rename "+fullPath, err)
	}
	l.logger.Info("fileops: renamed", slog.String("from", fullPath), slog.String("to", target))
	return target, nil
}

// SetMetadata is not available outside the desktop shell, which owns the
// XMP writer.
func (l *Local) SetMetadata(context.Context, string) (string, error) {
	return "", apperr.ErrUnsupported
}

// ParentDir returns the directory part of a record path. Paths from the
// index use either separator regardless of the host OS.
func ParentDir(path string) string {
	i := strings.LastIndexAny(path, `/\`)
	if i < 0 {
		return ""
	}
	return path[:i]
}
