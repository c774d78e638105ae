package doctor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/nodeboard/internal/errors"
	"github.com/rileyhilliard/nodeboard/internal/telemetry"
)

type fakeFetcher map[string]string

func (f fakeFetcher) Fetch(ctx context.Context, node string) (*telemetry.Snapshot, error) {
	body, ok := f[node]
	if !ok {
		return nil, errors.New(errors.ErrFetch, "Couldn't read data/"+node+".json", "")
	}
	return telemetry.Decode([]byte(body))
}

func TestSnapshotCheck(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 5, 0, 0, time.Local)
	f := fakeFetcher{
		"fresh": `{"timestamp": "2024-05-01 10:04:00", "system": {}, "gpus": [{"id": 0, "name": "A100"}, {"id": 1, "name": "A100"}]}`,
		"stale": `{"timestamp": "2024-05-01 09:00:00", "system": {}, "gpus": []}`,
		"odd":   `{"timestamp": "yesterday", "system": {}, "gpus": []}`,
		"bad":   `{"timestamp": `,
	}

	run := func(node string) CheckResult {
		c := &SnapshotCheck{Node: node, Fetcher: f, MaxAge: 3 * time.Minute, Now: func() time.Time { return now }}
		return c.Run(context.Background())
	}

	res := run("fresh")
	assert.Equal(t, StatusPass, res.Status)
	assert.Equal(t, "Written 2024-05-01 10:04:00, 2 GPUs", res.Message)

	res = run("stale")
	assert.Equal(t, StatusWarn, res.Status)
	assert.Contains(t, res.Message, "1h5m0s ago")

	assert.Equal(t, StatusWarn, run("odd").Status)
	assert.Equal(t, StatusFail, run("bad").Status)

	res = run("missing")
	assert.Equal(t, StatusFail, res.Status)
	assert.Equal(t, "Couldn't read data/missing.json", res.Message)
	assert.Equal(t, "Run 'nodeboard agent missing' on the node", res.Suggestion)
}

func TestNewSnapshotChecks(t *testing.T) {
	checks := NewSnapshotChecks([]string{"gpu01", "gpu02"}, fakeFetcher{}, time.Second, time.Minute)
	require.Len(t, checks, 2)
	assert.Equal(t, "node:gpu01", checks[0].Name())
	assert.Equal(t, "SNAPSHOTS", checks[1].Category())
}

func TestSnapshotChecks_Parallel(t *testing.T) {
	f := fakeFetcher{"gpu01": `{"timestamp": "2024-05-01 10:04:00", "system": {}, "gpus": []}`}
	checks := NewSnapshotChecks([]string{"gpu01", "gpu02"}, f, time.Second, 0)

	results := RunAllParallel(context.Background(), checks)
	assert.Equal(t, StatusPass, results[0].Status, "no max age means never stale")
	assert.Equal(t, StatusFail, results[1].Status)
	assert.Equal(t, "1 issue found", Summary(results))
}
