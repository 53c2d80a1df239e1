// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package vm

import (
	"os"

	"github.com/naoina/toml"
)

// TraceMode selects the VM's instruction-trace rendering, spec.md §4.6.6's
// IL-form vs SRC-form trace output.
type TraceMode string

const (
	TraceOff TraceMode = ""
	TraceIL  TraceMode = "il"
	TraceSrc TraceMode = "src"
)

// Config is the VM's toml-loadable run configuration, generalized from
// probe-lang/lang/vm's hardcoded constants into the file spec.md §4.6.6
// assumes a debugger/tracer session is driven from.
type Config struct {
	Trace        TraceMode `toml:"trace"`
	Debug        bool      `toml:"debug"`
	Breakpoints  []string  `toml:"breakpoints"`
	MemoryLimit  uint64    `toml:"memory_limit"`
	ExcerptCache int       `toml:"excerpt_cache_lines"`
}

// DefaultConfig is the VM's configuration when no file is supplied.
func DefaultConfig() Config {
	return Config{
		MemoryLimit:  DefaultMemoryLimit,
		ExcerptCache: 64,
	}
}

// LoadConfig reads a toml configuration file, overlaying it on
// DefaultConfig for any field the file omits.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.MemoryLimit == 0 {
		cfg.MemoryLimit = DefaultMemoryLimit
	}
	return cfg, nil
}
