package rules

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxSize bounds the rule file size accepted by Load.
const DefaultMaxSize int64 = 512 * 1024

// LoadOption configures Load.
type LoadOption func(*loadConfig)

type loadConfig struct {
	maxSize int64
}

// WithMaxSize overrides DefaultMaxSize. Non-positive values are ignored.
func WithMaxSize(n int64) LoadOption {
	return func(c *loadConfig) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// Load reads and parses the rule file at path.
//
// The returned table is never nil. On error it is empty and the error is a
// *LoadError; the failure is also logged once as a warning.
func Load(path string, opts ...LoadOption) (*Table, error) {
	cfg := loadConfig{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	t, err := load(path, cfg)
	if err != nil {
		slog.Warn("rule table is empty, correlation disabled", "path", path, "error", err)
		return Empty(), err
	}
	slog.Info("rules loaded", "path", path, "rules", t.Len(), "edges", t.EdgeCount())
	return t, nil
}

func load(path string, cfg loadConfig) (*Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeUnreadable, Path: path, Message: "cannot access rule file", Err: err}
	}
	if info.IsDir() {
		return nil, &LoadError{Code: ErrCodeUnreadable, Path: path, Message: "rule path is a directory"}
	}
	if info.Size() == 0 {
		return nil, &LoadError{Code: ErrCodeEmpty, Path: path, Message: "rule file is empty"}
	}
	if info.Size() > cfg.maxSize {
		return nil, &LoadError{
			Code:    ErrCodeTooLarge,
			Path:    path,
			Message: fmt.Sprintf("rule file is %d bytes, limit %d", info.Size(), cfg.maxSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeUnreadable, Path: path, Message: "failed to read rule file", Err: err}
	}
	return Parse(path, data)
}

// Parse builds a table from rule file contents. The format is chosen by
// the extension of name: .cue, .xml, otherwise YAML.
func Parse(name string, data []byte) (*Table, error) {
	var (
		doc *document
		err error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".cue":
		doc, err = parseCUE(name, data)
	case ".xml":
		doc, err = parseXML(name, data)
	default:
		doc, err = parseYAML(name, data)
	}
	if err != nil {
		return nil, err
	}

	t := newTable()
	for _, rd := range doc.Freeze.Rules {
		t.addRule(name, rd)
	}
	if t.Len() == 0 {
		return nil, &LoadError{Code: ErrCodeEmpty, Path: name, Message: "no rule in rule file"}
	}
	return t, nil
}

// document is the format-neutral shape of a rule file. The json tags are
// used when decoding CUE values.
type document struct {
	Freeze *freezeDoc `yaml:"freeze" json:"freeze"`
}

type freezeDoc struct {
	Rules []ruleDoc `yaml:"rules" json:"rules"`
}

type ruleDoc struct {
	Domain  string    `yaml:"domain" json:"domain"`
	EventID string    `yaml:"eventId" json:"eventId"`
	Links   []linkDoc `yaml:"links" json:"links"`
}

type linkDoc struct {
	Domain  string    `yaml:"domain" json:"domain"`
	EventID string    `yaml:"eventId" json:"eventId"`
	Window  int64     `yaml:"window" json:"window"`
	Result  resultDoc `yaml:"result" json:"result"`
}

type resultDoc struct {
	Code        uint64 `yaml:"code" json:"code"`
	Scope       string `yaml:"scope" json:"scope"`
	SamePackage bool   `yaml:"samePackage" json:"samePackage"`
	Action      string `yaml:"action" json:"action"`
}
