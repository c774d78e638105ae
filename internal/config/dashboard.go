package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path"
	"strings"

	"github.com/rileyhilliard/nodeboard/internal/errors"
)

// Document names under the configured config path.
const (
	GlobalFile = "global.json"
	NodesFile  = "nodes.json"
)

// Reader reads a document by slash-separated path.
type Reader interface {
	Read(ctx context.Context, name string) ([]byte, error)
}

// Load fetches and validates the global and node documents once.
// Any failure is returned as an ErrConfig error; the dashboard can't start without them.
func Load(ctx context.Context, src Reader, configPath string) (*Dashboard, error) {
	if configPath == "" {
		configPath = "config"
	}

	globalPath := path.Join(configPath, GlobalFile)
	raw, err := src.Read(ctx, globalPath)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't load %s", globalPath),
			"Check the source location, or run 'nodeboard init' to create a starter site.")
	}
	global, err := ParseGlobal(raw)
	if err != nil {
		return nil, err
	}

	nodesPath := path.Join(configPath, NodesFile)
	raw, err = src.Read(ctx, nodesPath)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't load %s", nodesPath),
			"Check the source location, or run 'nodeboard init' to create a starter site.")
	}
	nodes, err := ParseNodes(raw)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{Global: global, Nodes: nodes}
	if err := Validate(d); err != nil {
		return nil, err
	}
	return d, nil
}

type globalDoc struct {
	Title           string            `json:"title"`
	Announcement    string            `json:"announcement"`
	RefreshInterval *float64          `json:"refresh_interval_seconds"`
	LegacyRefresh   *float64          `json:"refresh_interval"`
	GPUNameMap      map[string]string `json:"gpu_name_map"`
	UsageTopN       *float64          `json:"usage_top_n"`
}

// ParseGlobal decodes config/global.json and applies defaults. The refresh
// period is read from refresh_interval_seconds, falling back to the older
// refresh_interval key.
func ParseGlobal(data []byte) (Global, error) {
	var doc globalDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return Global{}, errors.WrapWithCode(err, errors.ErrConfig,
			"config/global.json is not valid JSON",
			"Fix the syntax error; the dashboard reads it once at startup.")
	}

	g := Global{
		Title:           strings.TrimSpace(doc.Title),
		Announcement:    strings.TrimSpace(doc.Announcement),
		RefreshInterval: DefaultRefreshInterval,
		GPUNameMap:      doc.GPUNameMap,
		UsageTopN:       DefaultUsageTopN,
	}
	if g.Title == "" {
		g.Title = DefaultTitle
	}
	if g.GPUNameMap == nil {
		g.GPUNameMap = map[string]string{}
	}

	interval := doc.RefreshInterval
	if interval == nil {
		interval = doc.LegacyRefresh
	}
	if interval != nil {
		if *interval < MinRefreshInterval {
			return Global{}, errors.New(errors.ErrConfig,
				fmt.Sprintf("refresh interval must be at least %d second, got %v", MinRefreshInterval, *interval),
				"Set refresh_interval_seconds to a positive number of seconds.")
		}
		g.RefreshInterval = int(math.Round(*interval))
	}

	if doc.UsageTopN != nil {
		if *doc.UsageTopN < 0 {
			return Global{}, errors.New(errors.ErrConfig,
				fmt.Sprintf("usage_top_n can't be negative, got %v", *doc.UsageTopN),
				"Use 0 or leave it out for the default of 6 rows.")
		}
		if n := int(*doc.UsageTopN); n > 0 {
			g.UsageTopN = n
		}
	}

	return g, nil
}

type nodeDoc struct {
	Name   string `json:"name"`
	Order  int    `json:"order"`
	Status string `json:"status"`
	Notice string `json:"notice"`
}

// ParseNodes decodes config/nodes.json. The document is an object keyed by
// node name; an array of objects with a "name" field is also accepted.
// Nodes are returned in document order.
func ParseNodes(data []byte) ([]Node, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var docs []nodeDoc
		if err := json.Unmarshal(data, &docs); err != nil {
			return nil, nodesSyntaxError(err)
		}
		nodes := make([]Node, 0, len(docs))
		for _, doc := range docs {
			nodes = append(nodes, doc.node(doc.Name))
		}
		return nodes, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nodesSyntaxError(err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New(errors.ErrConfig,
			"config/nodes.json must be an object keyed by node name",
			`Example: {"gpu01": {"order": 1, "status": "active"}}`)
	}

	var nodes []Node
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nodesSyntaxError(err)
		}
		name, _ := tok.(string)

		var doc nodeDoc
		if err := dec.Decode(&doc); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("Node %q in config/nodes.json is malformed", name),
				"Each node needs an object with order, status and an optional notice.")
		}
		nodes = append(nodes, doc.node(name))
	}
	if _, err := dec.Token(); err != nil {
		return nil, nodesSyntaxError(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, nodesSyntaxError(fmt.Errorf("unexpected data after the top-level object"))
	}

	return nodes, nil
}

func (d nodeDoc) node(name string) Node {
	status := Status(strings.ToLower(strings.TrimSpace(d.Status)))
	if status == "" {
		status = StatusActive
	}
	return Node{
		Name:   name,
		Order:  d.Order,
		Status: status,
		Notice: strings.TrimSpace(d.Notice),
	}
}

func nodesSyntaxError(err error) error {
	return errors.WrapWithCode(err, errors.ErrConfig,
		"config/nodes.json is not valid JSON",
		"Fix the syntax error; the dashboard reads it once at startup.")
}
