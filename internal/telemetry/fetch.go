package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"path"

	"github.com/rileyhilliard/nodeboard/internal/errors"
)

// Reader reads a document by path relative to a source root.
type Reader interface {
	Read(ctx context.Context, name string) ([]byte, error)
}

// Decode parses a snapshot document. Only malformed JSON or a top-level
// value that is not an object is an error; every field inside is tolerant.
func Decode(data []byte) (*Snapshot, error) {
	if !startsWith(data, '{') {
		return nil, errors.New(errors.ErrDecode,
			"Snapshot is not a JSON object",
			"Check that the agent writes a complete snapshot document.")
	}
	var snap Snapshot
	if err := json.Unmarshal(bytes.TrimSpace(data), &snap); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrDecode,
			"Couldn't parse snapshot",
			"The snapshot may have been read mid-write. It will be retried on the next tick.")
	}
	return &snap, nil
}

// Fetcher reads per-node snapshots from a Reader.
type Fetcher struct {
	src      Reader
	dataPath string
}

// NewFetcher returns a Fetcher reading <dataPath>/<node>.json from src.
func NewFetcher(src Reader, dataPath string) *Fetcher {
	if dataPath == "" {
		dataPath = "data"
	}
	return &Fetcher{src: src, dataPath: dataPath}
}

// Path returns the document path for a node.
func (f *Fetcher) Path(node string) string {
	return path.Join(f.dataPath, node+".json")
}

// Fetch reads and decodes the latest snapshot for node.
func (f *Fetcher) Fetch(ctx context.Context, node string) (*Snapshot, error) {
	body, err := f.src.Read(ctx, f.Path(node))
	if err != nil {
		return nil, err
	}
	return Decode(body)
}
