// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Valid())
}

func TestParseAppliesDefaultsForUnsetFields(t *testing.T) {
	cfg, err := Parse([]byte(`
listen_addr: ":9090"
bft:
  f: 3
`))
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.ListenAddr)
	require.Equal(t, uint64(3), cfg.BFT.F)
	require.Equal(t, uint64(7), cfg.BFT.Quorum())
	require.Equal(t, 3, cfg.BFT.HandoffRounds) // defaulted, not overridden
	require.Equal(t, Default().Gas.InvokeGasLimit, cfg.Gas.InvokeGasLimit)
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	_, err := Parse([]byte(`
gas:
  invoke_gas_limit: 0
`))
	require.Error(t, err)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
}
