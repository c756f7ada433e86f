// Package spool keeps uploaded PDFs in a server-owned directory under
// collision-free names.
package spool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Storage is what the job service needs from the upload directory.
type Storage interface {
	Save(ctx context.Context, filename string, r io.Reader) (path string, size int64, err error)
	Import(ctx context.Context, src string) (path string, size int64, err error)
	Remove(path string) error
}

// Dir stores files under a single root directory.
type Dir struct {
	root string
}

// New creates root if needed and returns a Dir writing into it.
func New(root string) (*Dir, error) {
	if root == "" {
		return nil, errors.New("spool directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create spool directory: %w", err)
	}
	return &Dir{root: root}, nil
}

// Root returns the directory files are written to.
func (d *Dir) Root() string {
	return d.root
}

// PathFor returns a fresh storage path for filename: a random UUID prefix
// joined to the base name, so two uploads of the same name never collide.
func (d *Dir) PathFor(filename string) string {
	base := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(filename, `\`, "/")))
	if base == "/" || base == "." {
		base = "upload.pdf"
	}
	return filepath.Join(d.root, uuid.NewString()+"_"+base)
}

// Save writes r to a new file named after filename. A partially written file
// is removed when the copy fails.
func (d *Dir) Save(ctx context.Context, filename string, r io.Reader) (string, int64, error) {
	dst := d.PathFor(filename)
	n, err := writeFile(ctx, dst, r)
	if err != nil {
		return "", 0, err
	}
	return dst, n, nil
}

// Import copies the file at src into the spool. The source is left in place;
// deleting it is the caller's decision.
func (d *Dir) Import(ctx context.Context, src string) (string, int64, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", 0, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	dst := d.PathFor(filepath.Base(src))
	n, err := writeFile(ctx, dst, f)
	if err != nil {
		return "", 0, err
	}
	if info, err := f.Stat(); err == nil {
		// keep the source modification time, like cp -p
		_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	}
	return dst, n, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (d *Dir) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func writeFile(ctx context.Context, dst string, r io.Reader) (int64, error) {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}

	n, err := io.Copy(out, ctxReader{ctx: ctx, r: r})
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return 0, fmt.Errorf("write %s: %w", dst, err)
	}
	return n, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
