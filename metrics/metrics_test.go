// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New("modality_test", reg)
	require.NoError(t, err)

	m.HashesComputed.Add(3)
	m.BlocksMined.Inc()
	m.ObserveDAGRound(250 * time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	var found bool
	for _, f := range families {
		if f.GetName() == "modality_test_mining_hashes_computed_total" {
			found = true
			require.Equal(t, float64(3), counterValue(f))
		}
	}
	require.True(t, found)
}

func TestNewRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New("modality_test", reg)
	require.NoError(t, err)

	_, err = New("modality_test", reg)
	require.Error(t, err)
}

func counterValue(f *dto.MetricFamily) float64 {
	if len(f.Metric) == 0 {
		return 0
	}
	return f.Metric[0].GetCounter().GetValue()
}
