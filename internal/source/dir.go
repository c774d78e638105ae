package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rileyhilliard/nodeboard/internal/errors"
)

// Dir reads documents from a local directory.
type Dir struct {
	root string
}

// NewDir returns a Dir rooted at root. The directory must exist.
func NewDir(root string) (*Dir, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSource,
			fmt.Sprintf("Can't open source directory %s", root),
			"Run 'nodeboard init' to create a starter site, or point --source at an existing one.")
	}
	if !info.IsDir() {
		return nil, errors.New(errors.ErrSource,
			fmt.Sprintf("Source %s is not a directory", root),
			"Point --source at the directory containing config/ and data/.")
	}
	return &Dir{root: root}, nil
}

// Read implements Source.
func (d *Dir) Read(ctx context.Context, name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(d.root, filepath.FromSlash(name)))
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrFetch,
			fmt.Sprintf("Couldn't read %s", name),
			"The agent may not have written this file yet.")
	}
	defer f.Close()

	return io.ReadAll(io.LimitReader(f, MaxDocumentSize))
}

// String returns the root directory.
func (d *Dir) String() string {
	return d.root
}

// Close is a no-op.
func (d *Dir) Close() error {
	return nil
}
