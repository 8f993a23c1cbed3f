// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"
	"github.com/luxfi/p2p"
)

// Pub/sub topics (spec §6 "Pub/sub topics").
const (
	TopicBlockDraft  = "/consensus/block/draft"
	TopicBlockCert   = "/consensus/block/cert"
	TopicScribeDraft = "/consensus/scribes/page_draft"
	TopicScribeCert  = "/consensus/scribes/page_cert"
)

// envelope tags a gossiped payload with its topic, since p2p.Sender
// gossips raw bytes to a peer set rather than exposing named topics
// itself (spec §6: "Message bodies are JSON-encoded headers/certificates").
type envelope struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Gossiper publishes and dispatches topic-tagged messages over a
// p2p.Sender transport (spec §6 "Pub/sub topics"), grounded on the
// teacher's AppGossip convention (engine/core.go Sender.SendAppGossip).
type Gossiper struct {
	sender   p2p.Sender
	logger   log.Logger
	peers    func() set.Set[ids.NodeID]
	handlers map[string]func(from ids.NodeID, payload []byte)
}

// NewGossiper constructs a Gossiper. peers returns the current known-peer
// set at send time, since membership changes over a node's lifetime.
func NewGossiper(sender p2p.Sender, peers func() set.Set[ids.NodeID], logger log.Logger) *Gossiper {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Gossiper{
		sender:   sender,
		logger:   logger.With("component", "node.gossip"),
		peers:    peers,
		handlers: map[string]func(from ids.NodeID, payload []byte){},
	}
}

// OnTopic registers a handler for messages received on topic.
func (g *Gossiper) OnTopic(topic string, handler func(from ids.NodeID, payload []byte)) {
	g.handlers[topic] = handler
}

// Publish gossips v (JSON-encoded) to every known peer under topic.
func (g *Gossiper) Publish(ctx context.Context, topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	env, err := json.Marshal(envelope{Topic: topic, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", topic, err)
	}
	return g.sender.SendAppGossip(ctx, g.peers(), env)
}

// Dispatch routes a raw AppGossip payload to its topic handler. Nodes wire
// this as their engine's AppGossip callback.
func (g *Gossiper) Dispatch(from ids.NodeID, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		g.logger.Warn("dropping malformed gossip envelope", "from", from.String(), "err", err)
		return
	}
	handler, ok := g.handlers[env.Topic]
	if !ok {
		g.logger.Debug("no handler for topic", "topic", env.Topic, "from", from.String())
		return
	}
	handler(from, env.Payload)
}
