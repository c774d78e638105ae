package cli

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"gopkg.in/yaml.v3"

	"github.com/rileyhilliard/nodeboard/internal/config"
	"github.com/rileyhilliard/nodeboard/internal/errors"
	"github.com/rileyhilliard/nodeboard/internal/source"
	"github.com/rileyhilliard/nodeboard/internal/ui"
	"github.com/rileyhilliard/nodeboard/pkg/sshutil"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	Title          string   // Board title
	Nodes          []string // Node names, in display order
	Source         string   // Where the board reads documents; empty means the site directory
	Dir            string   // Directory to create the site in (default ".")
	Overwrite      bool     // Overwrite existing files without asking
	NonInteractive bool     // Skip prompts, use defaults
}

// defaultInitNode is used when no node names are given non-interactively.
const defaultInitNode = "gpu01"

// Source choices offered by the interactive prompt.
const (
	sourceLocal = "local"
	sourceSSH   = "ssh"
	sourceHTTP  = "http"
)

// siteSettings is the subset of settings init writes to .nodeboard.yaml.
type siteSettings struct {
	Source     string `yaml:"source"`
	ConfigPath string `yaml:"config_path"`
	DataPath   string `yaml:"data_path"`
}

type globalSeed struct {
	Title           string            `json:"title"`
	Announcement    string            `json:"announcement"`
	RefreshInterval int               `json:"refresh_interval_seconds"`
	GPUNameMap      map[string]string `json:"gpu_name_map"`
	UsageTopN       int               `json:"usage_top_n"`
}

type nodeSeed struct {
	Order  int    `json:"order"`
	Status string `json:"status"`
	Notice string `json:"notice"`
}

// getInitDefaults reads init defaults from the environment. CI implies
// non-interactive.
func getInitDefaults() InitOptions {
	opts := InitOptions{
		Title:  os.Getenv("NODEBOARD_TITLE"),
		Source: os.Getenv("NODEBOARD_SOURCE"),
	}
	if nodes := os.Getenv("NODEBOARD_NODES"); nodes != "" {
		opts.Nodes = splitNodeList(nodes)
	}
	switch strings.ToLower(os.Getenv("NODEBOARD_NON_INTERACTIVE")) {
	case "1", "true", "yes":
		opts.NonInteractive = true
	}
	if os.Getenv("CI") != "" {
		opts.NonInteractive = true
	}
	return opts
}

// mergeInitOptions fills empty flags from the environment.
func mergeInitOptions(opts InitOptions) InitOptions {
	env := getInitDefaults()
	if opts.Title == "" {
		opts.Title = env.Title
	}
	if len(opts.Nodes) == 0 {
		opts.Nodes = env.Nodes
	}
	if opts.Source == "" {
		opts.Source = env.Source
	}
	if env.NonInteractive {
		opts.NonInteractive = true
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	return opts
}

// Init creates a starter site: config/global.json, config/nodes.json and
// data/ for local sources, plus .nodeboard.yaml pointing at the source.
func Init(opts InitOptions) error {
	opts = mergeInitOptions(opts)

	if !opts.NonInteractive {
		var err error
		opts, err = promptInitValues(opts)
		if err != nil {
			return err
		}
	}

	nodes, err := normalizeNodes(opts.Nodes)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		nodes = []string{defaultInitNode}
	}
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = config.DefaultTitle
	}

	settingsPath := filepath.Join(opts.Dir, config.SettingsFileName)
	files := []string{settingsPath}

	remote := isRemoteSource(opts.Source)
	var siteRoot string
	if !remote {
		siteRoot = opts.Dir
		if opts.Source != "" && opts.Source != "." {
			siteRoot = config.ExpandTilde(opts.Source)
			if !filepath.IsAbs(siteRoot) {
				siteRoot = filepath.Join(opts.Dir, siteRoot)
			}
		}
		files = append(files,
			filepath.Join(siteRoot, "config", config.GlobalFile),
			filepath.Join(siteRoot, "config", config.NodesFile))
	}

	for _, path := range files {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		proceed, err := checkExistingConfig(path, opts)
		if err != nil {
			return err
		}
		if !proceed {
			fmt.Println("Cancelled.")
			return nil
		}
		break // one confirmation covers every file
	}

	var created []string
	if !remote {
		written, err := writeSiteDocuments(siteRoot, title, nodes)
		if err != nil {
			return err
		}
		created = append(created, written...)
	}

	if err := writeSettingsFile(settingsPath, opts.Source); err != nil {
		return err
	}
	created = append(created, settingsPath)

	for _, path := range created {
		fmt.Printf("%s Created %s\n", ui.SymbolSuccess, path)
	}
	fmt.Println()
	fmt.Println("Next steps:")
	if remote {
		fmt.Printf("  Create config/global.json and config/nodes.json at %s\n", opts.Source)
	}
	fmt.Printf("  nodeboard agent %s --out %s  - run on each node\n", nodes[0], filepath.Join(siteRoot, "data"))
	fmt.Println("  nodeboard watch                - live board in the terminal")
	fmt.Println("  nodeboard serve                - serve the board on :8080")

	return nil
}

// checkExistingConfig reports whether path may be written. It asks before
// overwriting unless Overwrite is set, and refuses non-interactively.
func checkExistingConfig(path string, opts InitOptions) (bool, error) {
	if _, err := os.Stat(path); err != nil || opts.Overwrite {
		return true, nil
	}

	if opts.NonInteractive {
		return false, errors.New(errors.ErrConfig,
			fmt.Sprintf("There's already a config file at %s", path),
			"Use --force to overwrite")
	}

	var overwrite bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("'%s' already exists. Overwrite existing files?", path)).
				Value(&overwrite),
		),
	)
	if err := form.Run(); err != nil {
		return false, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Try running with --force to overwrite")
	}
	return overwrite, nil
}

// promptInitValues asks for the source, title and node names.
func promptInitValues(opts InitOptions) (InitOptions, error) {
	kind := sourceLocal
	if opts.Source != "" {
		kind = ""
	} else {
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Where will the board read config and snapshots from?").
					Options(
						huh.NewOption("This directory", sourceLocal),
						huh.NewOption("A host over SSH", sourceSSH),
						huh.NewOption("An HTTP server", sourceHTTP),
					).
					Value(&kind),
			),
		)
		if err := form.Run(); err != nil {
			return opts, inputError(err)
		}
	}

	switch kind {
	case sourceSSH:
		src, err := promptSSHSource()
		if err != nil {
			return opts, err
		}
		opts.Source = src
	case sourceHTTP:
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Base URL").
					Description("config/ and data/ are read relative to it").
					Placeholder("https://lab.example.com/board").
					Value(&opts.Source).
					Validate(func(s string) error {
						if !isRemoteSource(strings.TrimSpace(s)) {
							return fmt.Errorf("URL must start with http:// or https://")
						}
						return nil
					}),
			),
		)
		if err := form.Run(); err != nil {
			return opts, inputError(err)
		}
		opts.Source = strings.TrimSpace(opts.Source)
	}

	if isRemoteSource(opts.Source) {
		return opts, nil
	}

	nodeList := strings.Join(opts.Nodes, ", ")
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Board title").
				Placeholder(config.DefaultTitle).
				Value(&opts.Title),
			huh.NewInput().
				Title("Node names").
				Description("Comma-separated, in display order. Each node's agent writes <name>.json").
				Placeholder("gpu01, gpu02").
				Value(&nodeList).
				Validate(func(s string) error {
					_, err := normalizeNodes(splitNodeList(s))
					return err
				}),
		),
	)
	if err := form.Run(); err != nil {
		return opts, inputError(err)
	}
	opts.Nodes = splitNodeList(nodeList)
	return opts, nil
}

// promptSSHSource picks a host from ~/.ssh/config, or asks for one, and a
// remote site directory.
func promptSSHSource() (string, error) {
	hosts, err := sshutil.ListHosts()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't read ~/.ssh/config",
			"Fix the file, or pass --source ssh://host/dir")
	}

	alias, err := ui.PickSSHHost(hosts)
	if stderrors.Is(err, ui.ErrPickCancelled) {
		return "", errors.New(errors.ErrConfig, "Cancelled", "Pass --source ssh://host/dir to skip the picker")
	}
	if err != nil {
		return "", inputError(err)
	}

	host, dir := alias, "/srv/nodeboard"
	fields := []huh.Field{}
	if alias == "" {
		fields = append(fields, huh.NewInput().
			Title("SSH host or alias").
			Placeholder("head-node").
			Value(&host).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("SSH host is required")
				}
				return nil
			}))
	}
	fields = append(fields, huh.NewInput().
		Title("Remote site directory").
		Description("Holds config/ and data/ on the remote host").
		Value(&dir))

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return "", inputError(err)
	}
	return source.SSHURI(strings.TrimSpace(host), strings.TrimSpace(dir)), nil
}

func inputError(err error) error {
	return errors.WrapWithCode(err, errors.ErrConfig,
		"Failed to get user input",
		"Check terminal compatibility or use --non-interactive flag")
}

// splitNodeList splits a comma- or space-separated list of node names.
func splitNodeList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// normalizeNodes trims and dedupes names, keeping the first occurrence,
// and rejects names that can't be file names.
func normalizeNodes(names []string) ([]string, error) {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		if !config.ValidNodeName(name) {
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("Node name %q can't be used as a file name", name),
				"Node names must not contain '/', '\\' or '..'.")
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, nil
}

func isRemoteSource(src string) bool {
	return strings.HasPrefix(src, "ssh://") ||
		strings.HasPrefix(src, "http://") ||
		strings.HasPrefix(src, "https://")
}

// writeSiteDocuments writes the two config documents and creates data/.
func writeSiteDocuments(root, title string, nodes []string) ([]string, error) {
	configDir := filepath.Join(root, "config")
	dataDir := filepath.Join(root, "data")
	for _, dir := range []string{configDir, dataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("Failed to create %s", dir),
				"Check directory permissions")
		}
	}

	global := globalSeed{
		Title:           title,
		RefreshInterval: config.DefaultRefreshInterval,
		GPUNameMap:      map[string]string{},
		UsageTopN:       config.DefaultUsageTopN,
	}
	seeds := make(map[string]nodeSeed, len(nodes))
	for i, name := range nodes {
		seeds[name] = nodeSeed{Order: i + 1, Status: string(config.StatusActive)}
	}

	globalPath := filepath.Join(configDir, config.GlobalFile)
	nodesPath := filepath.Join(configDir, config.NodesFile)
	if err := writeJSONFile(globalPath, global); err != nil {
		return nil, err
	}
	if err := writeJSONFile(nodesPath, seeds); err != nil {
		return nil, err
	}
	return []string{globalPath, nodesPath, dataDir + string(filepath.Separator)}, nil
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to generate "+filepath.Base(path),
			"This shouldn't happen - please report this bug")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Failed to write %s", path),
			"Check directory permissions")
	}
	return nil
}

// writeSettingsFile writes .nodeboard.yaml with a header comment.
func writeSettingsFile(path, source string) error {
	defaults := config.DefaultSettings()
	if source == "" {
		source = defaults.Source
	}
	data, err := yaml.Marshal(siteSettings{
		Source:     source,
		ConfigPath: defaults.ConfigPath,
		DataPath:   defaults.DataPath,
	})
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to generate settings",
			"This shouldn't happen - please report this bug")
	}

	header := `# nodeboard settings
# source: a directory, http(s):// URL, or ssh://host/dir holding config/ and data/
# Run 'nodeboard watch' or 'nodeboard serve' from this directory

`
	if err := os.WriteFile(path, []byte(header+string(data)), 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Failed to write config file: %s", path),
			"Check directory permissions")
	}
	return nil
}
