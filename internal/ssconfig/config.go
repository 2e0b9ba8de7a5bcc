// Package ssconfig resolves the ss runtime's ambient configuration: the
// `load`/`loadr` search path and an optional REPL settings file.
package ssconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// RC is the optional `$HOME/.ssrc.yaml` settings file. Every field has a
// zero-value default that matches spec §6's documented CLI behavior, so a
// missing file is never an error.
type RC struct {
	// HistorySize is read from the file but not used: the REPL keeps no
	// line-editing history.
	HistorySize int `yaml:"history_size,omitempty"`

	// EchoResult, when set, decides whether the REPL prints its `got <n>`
	// preamble after each line it runs; false suppresses it (spec §6.2
	// prints it by default).
	EchoResult *bool `yaml:"echo_result,omitempty"`

	// LibPaths is appended after SS_LIB / $HOME/.simple when resolving
	// `load` paths (`loadr` resolves against the loading file's directory).
	LibPaths []string `yaml:"lib_paths,omitempty"`
}

// Config is the resolved configuration: everything the CLI and compiler
// need to behave per spec §6, merged from the environment and the optional
// RC file.
type Config struct {
	// LibPath is the ordered list of directories `load` searches
	// (spec §6: SS_LIB, else $HOME/.simple, then any RC-file additions).
	LibPath []string

	RC RC
}

// Load resolves Config from the process environment and, if present,
// $HOME/.ssrc.yaml. A missing or empty SS_LIB and a missing RC file are
// both normal, not errors.
func Load() (*Config, error) {
	home, _ := os.UserHomeDir()

	cfg := &Config{}
	if raw := os.Getenv("SS_LIB"); raw != "" {
		cfg.LibPath = strings.Split(raw, ":")
	} else if home != "" {
		cfg.LibPath = []string{filepath.Join(home, ".simple")}
	}

	if home == "" {
		return cfg, nil
	}
	rc, err := loadRC(filepath.Join(home, ".ssrc.yaml"))
	if err != nil {
		return nil, err
	}
	if rc != nil {
		cfg.RC = *rc
		cfg.LibPath = append(cfg.LibPath, rc.LibPaths...)
	}
	return cfg, nil
}

func loadRC(path string) (*RC, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var rc RC
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &rc, nil
}

// ShouldEchoResult reports whether the REPL's `got <n>` preamble should
// print, honoring the RC file's echo_result override if set.
func (c *Config) ShouldEchoResult() bool {
	if c.RC.EchoResult == nil {
		return true
	}
	return *c.RC.EchoResult
}
