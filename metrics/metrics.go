// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics exposes the node's prometheus instrumentation: mining
// hash rate, DAG round latency, and committer throughput, grounded on the
// teacher's registry-wrapping Metrics type (metrics/metrics.go) and the
// Inc()/Set() instrumentation style used throughout its engines
// (engine/fastdag/engine.go).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every counter/gauge the node instruments, all registered
// against a single prometheus.Registerer supplied by the caller.
type Metrics struct {
	registry prometheus.Registerer

	HashesComputed  prometheus.Counter
	BlocksMined     prometheus.Counter
	DifficultyGauge prometheus.Gauge

	DAGRoundLatency  prometheus.Histogram
	HeadersAccepted  prometheus.Counter
	CertificatesMade prometheus.Counter
	FaultsDetected   prometheus.Counter

	AnchorsCommitted  prometheus.Counter
	CommitsEmitted    prometheus.Counter
	CommitterBacklog  prometheus.Gauge

	GossipMessagesSent prometheus.Counter
	GossipMessagesRecv prometheus.Counter
}

// New constructs and registers every metric against reg. namespace prefixes
// every metric name (e.g. "modality").
func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		registry: reg,
		HashesComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "mining", Name: "hashes_computed_total",
			Help: "Total proof-of-work hashes computed.",
		}),
		BlocksMined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "mining", Name: "blocks_mined_total",
			Help: "Total blocks successfully mined locally.",
		}),
		DifficultyGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "mining", Name: "difficulty_target",
			Help: "Current proof-of-work difficulty target.",
		}),
		DAGRoundLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "dag", Name: "round_latency_seconds",
			Help:    "Wall-clock time spent per DAG round.",
			Buckets: prometheus.DefBuckets,
		}),
		HeadersAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "dag", Name: "headers_accepted_total",
			Help: "Total DAG headers accepted into the local store.",
		}),
		CertificatesMade: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "dag", Name: "certificates_total",
			Help: "Total certificates formed from quorum-signed votes.",
		}),
		FaultsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "dag", Name: "faults_detected_total",
			Help: "Total accountable faults (equivocations) detected.",
		}),
		AnchorsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "committer", Name: "anchors_committed_total",
			Help: "Total round anchors committed by the pipelined committer.",
		}),
		CommitsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "committer", Name: "certificates_emitted_total",
			Help: "Total certificates emitted in deterministic commit order.",
		}),
		CommitterBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "committer", Name: "backlog",
			Help: "Certificates certified but not yet committed.",
		}),
		GossipMessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "gossip", Name: "messages_sent_total",
			Help: "Total gossip messages published.",
		}),
		GossipMessagesRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "gossip", Name: "messages_received_total",
			Help: "Total gossip messages dispatched to a handler.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.HashesComputed, m.BlocksMined, m.DifficultyGauge,
		m.DAGRoundLatency, m.HeadersAccepted, m.CertificatesMade, m.FaultsDetected,
		m.AnchorsCommitted, m.CommitsEmitted, m.CommitterBacklog,
		m.GossipMessagesSent, m.GossipMessagesRecv,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveDAGRound records how long a DAG round took to complete.
func (m *Metrics) ObserveDAGRound(d time.Duration) {
	m.DAGRoundLatency.Observe(d.Seconds())
}
