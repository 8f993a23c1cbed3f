// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config defines the node's YAML-loaded configuration (gas limits,
// epoch parameters, forced checkpoints, and BFT hand-off parameters),
// grounded on the teacher's Parameters type (config/types.go): a flat
// yaml/json-tagged struct with a Valid() validator and sane defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/luxfi/ids"
	"gopkg.in/yaml.v3"
)

// Config is the full node configuration (spec §6 "node config").
type Config struct {
	// Identity is the path to this node's identity file (spec §6 "Node
	// identity files").
	Identity string `yaml:"identity" json:"identity"`

	// ListenAddr is the HTTP listen address for the request/response API
	// and Contract Hub (spec §6).
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`

	Gas   GasConfig   `yaml:"gas" json:"gas"`
	Epoch EpochConfig `yaml:"epoch" json:"epoch"`
	BFT   BFTConfig   `yaml:"bft" json:"bft"`

	// Checkpoints maps a mining-chain height to the block hash that height
	// is forced to equal (spec §4.5 "Forced checkpoints").
	Checkpoints map[uint64]ids.ID `yaml:"checkpoints" json:"checkpoints"`
}

// GasConfig bounds INVOKE program execution (spec §4.1 "INVOKE").
type GasConfig struct {
	InvokeGasLimit uint64        `yaml:"invoke_gas_limit" json:"invoke_gas_limit"`
	InvokeTimeout  time.Duration `yaml:"invoke_timeout" json:"invoke_timeout"`
}

// EpochConfig controls mining-chain block cadence and proof-of-work
// retargeting (spec §4.5).
type EpochConfig struct {
	TargetBlockInterval  time.Duration `yaml:"target_block_interval" json:"target_block_interval"`
	RetargetWindowBlocks uint64        `yaml:"retarget_window_blocks" json:"retarget_window_blocks"`
}

// BFTConfig controls the certified DAG, committer, and mining-to-BFT
// hand-off (spec §4.6-4.7, SPEC_FULL §D.1).
type BFTConfig struct {
	// F is the maximum number of byzantine validators tolerated; quorum is
	// derived as 2F+1.
	F uint64 `yaml:"f" json:"f"`

	// HandoffRounds is the number of consecutive round windows the
	// distinct-validator count must clear (or fall below) quorum before
	// the node's ordering mode flips.
	HandoffRounds int `yaml:"handoff_rounds" json:"handoff_rounds"`

	// ReputationWindow bounds how many trailing rounds of on-time/fault
	// history feed a validator's leader-reputation score.
	ReputationWindow int `yaml:"reputation_window" json:"reputation_window"`
}

// Default returns a Config with conservative, spec-consistent defaults.
func Default() *Config {
	return &Config{
		ListenAddr: ":8080",
		Gas: GasConfig{
			InvokeGasLimit: 10_000_000,
			InvokeTimeout:  2 * time.Second,
		},
		Epoch: EpochConfig{
			TargetBlockInterval:  10 * time.Second,
			RetargetWindowBlocks: 40,
		},
		BFT: BFTConfig{
			F:                1,
			HandoffRounds:    3,
			ReputationWindow: 50,
		},
		Checkpoints: map[uint64]ids.ID{},
	}
}

// Load reads and parses a YAML config file at path; fields the file leaves
// unset keep their Default() values.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes YAML bytes into a Config, applying defaults for anything
// left unset, and validates the result.
func Parse(raw []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing yaml: %w", err)
	}
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Valid reports whether cfg's parameters are internally consistent.
func (c *Config) Valid() error {
	switch {
	case c.Gas.InvokeGasLimit == 0:
		return fmt.Errorf("gas.invoke_gas_limit must be > 0")
	case c.Gas.InvokeTimeout <= 0:
		return fmt.Errorf("gas.invoke_timeout must be > 0")
	case c.Epoch.TargetBlockInterval <= 0:
		return fmt.Errorf("epoch.target_block_interval must be > 0")
	case c.Epoch.RetargetWindowBlocks == 0:
		return fmt.Errorf("epoch.retarget_window_blocks must be > 0")
	case c.BFT.HandoffRounds <= 0:
		return fmt.Errorf("bft.handoff_rounds must be > 0")
	case c.BFT.ReputationWindow <= 0:
		return fmt.Errorf("bft.reputation_window must be > 0")
	}
	return nil
}

// Quorum returns the BFT quorum size 2F+1 derived from BFT.F.
func (b BFTConfig) Quorum() uint64 { return 2*b.F + 1 }
