package config

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/nodeboard/internal/errors"
)

type mapReader map[string]string

func (m mapReader) Read(_ context.Context, name string) ([]byte, error) {
	body, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%s: not found", name)
	}
	return []byte(body), nil
}

func TestParseGlobal(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		interval int
		topN     int
		title    string
	}{
		{"defaults", `{}`, 30, 6, DefaultTitle},
		{"seconds key", `{"title":"Lab","refresh_interval_seconds":15}`, 15, 6, "Lab"},
		{"legacy key", `{"refresh_interval":45}`, 45, 6, DefaultTitle},
		{"seconds key wins", `{"refresh_interval_seconds":5,"refresh_interval":45}`, 5, 6, DefaultTitle},
		{"top n", `{"usage_top_n":3}`, 30, 3, DefaultTitle},
		{"top n zero is default", `{"usage_top_n":0}`, 30, 6, DefaultTitle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := ParseGlobal([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.interval, g.RefreshInterval)
			assert.Equal(t, tt.topN, g.UsageTopN)
			assert.Equal(t, tt.title, g.Title)
			assert.NotNil(t, g.GPUNameMap)
		})
	}
}

func TestParseGlobal_Errors(t *testing.T) {
	for _, doc := range []string{
		`{`,
		`{"refresh_interval_seconds":0}`,
		`{"refresh_interval":-5}`,
		`{"usage_top_n":-1}`,
	} {
		_, err := ParseGlobal([]byte(doc))
		require.Error(t, err, doc)
		assert.True(t, errors.IsCode(err, errors.ErrConfig), doc)
	}
}

func TestParseGlobal_Fields(t *testing.T) {
	g, err := ParseGlobal([]byte(`{
		"title": "Cluster",
		"announcement": "  maintenance friday  ",
		"gpu_name_map": {"NVIDIA GeForce RTX 4090": "4090"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "maintenance friday", g.Announcement)
	assert.Equal(t, "4090", g.GPUNameMap["NVIDIA GeForce RTX 4090"])
}

func TestParseNodes_ObjectKeepsDocumentOrder(t *testing.T) {
	nodes, err := ParseNodes([]byte(`{
		"Zeta": {"order": 2, "status": "active"},
		"alpha": {"order": 1, "status": "disabled", "notice": "PSU swap"},
		"GPU-B": {"order": 3}
	}`))
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	assert.Equal(t, "Zeta", nodes[0].Name)
	assert.Equal(t, "alpha", nodes[1].Name)
	assert.Equal(t, "GPU-B", nodes[2].Name)

	assert.True(t, nodes[1].Disabled())
	assert.Equal(t, "PSU swap", nodes[1].Notice)
	assert.Equal(t, StatusActive, nodes[2].Status)
}

func TestParseNodes_Array(t *testing.T) {
	nodes, err := ParseNodes([]byte(`[{"name":"gpu01","order":1},{"name":"gpu02","order":2,"status":"disabled"}]`))
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "gpu02", nodes[1].Name)
	assert.Equal(t, StatusDisabled, nodes[1].Status)
}

func TestParseNodes_Errors(t *testing.T) {
	for _, doc := range []string{`{`, `"x"`, `{"a": 5}`, `{"a": {}} trailing`} {
		_, err := ParseNodes([]byte(doc))
		require.Error(t, err, doc)
		assert.True(t, errors.IsCode(err, errors.ErrConfig), doc)
	}
}

func TestLoad(t *testing.T) {
	src := mapReader{
		"config/global.json": `{"title":"Lab","refresh_interval":10}`,
		"config/nodes.json":  `{"gpu01":{"order":1},"gpu02":{"order":2,"status":"disabled"}}`,
	}

	d, err := Load(context.Background(), src, "config")
	require.NoError(t, err)
	assert.Equal(t, "Lab", d.Global.Title)
	assert.Equal(t, 10, d.Global.RefreshInterval)
	assert.Equal(t, int64(10e9), int64(d.Global.Interval()))
	assert.Len(t, d.Nodes, 2)
	assert.Len(t, d.Active(), 1)

	n, ok := d.Node("gpu02")
	assert.True(t, ok)
	assert.True(t, n.Disabled())
	_, ok = d.Node("gpu99")
	assert.False(t, ok)
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name string
		src  mapReader
	}{
		{"missing global", mapReader{"config/nodes.json": `{"a":{}}`}},
		{"missing nodes", mapReader{"config/global.json": `{}`}},
		{"bad status", mapReader{
			"config/global.json": `{}`,
			"config/nodes.json":  `{"a":{"status":"retired"}}`,
		}},
		{"no nodes", mapReader{
			"config/global.json": `{}`,
			"config/nodes.json":  `{}`,
		}},
		{"path in name", mapReader{
			"config/global.json": `{}`,
			"config/nodes.json":  `{"../etc":{}}`,
		}},
		{"duplicate name", mapReader{
			"config/global.json": `{}`,
			"config/nodes.json":  `[{"name":"a"},{"name":"a"}]`,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), tt.src, "config")
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
		})
	}
}

func TestValidate_StatusMessage(t *testing.T) {
	err := Validate(&Dashboard{
		Global: Global{RefreshInterval: 30, UsageTopN: 6},
		Nodes:  []Node{{Name: "gpu01", Status: "retired"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"retired"`)
	assert.Contains(t, err.Error(), "active, disabled")
}
