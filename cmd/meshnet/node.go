// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/meshnet-foundation/meshnet/channel"
	"github.com/meshnet-foundation/meshnet/console"
	"github.com/meshnet-foundation/meshnet/lib/config"
	"github.com/meshnet-foundation/meshnet/lib/envelope"
	"github.com/meshnet-foundation/meshnet/lib/identity"
	"github.com/meshnet-foundation/meshnet/signalling"
)

// Node assembles one running mesh peer: signing identity, channel
// manager, and signalling hub.
type Node struct {
	configuration *config.Config
	logger        *slog.Logger
	account       *identity.LocalAccount
	manager       *channel.Manager
	hub           *signalling.Hub

	// outbound tracks channels this node dialed; they join the
	// manager's registries in the operator views.
	mu       sync.Mutex
	outbound []*channel.NodeChannel
}

// NewNode builds a node from configuration. The private key is consumed
// here: after this the only copy lives in the account's sealed buffer.
func NewNode(configuration *config.Config, logger *slog.Logger) (*Node, error) {
	if configuration.PrivateKey == "" {
		return nil, fmt.Errorf("no signer key: set PRIVATE_KEY or privateKey in the config file")
	}

	account, err := identity.NewLocalAccount(configuration.PrivateKey, -1)
	if err != nil {
		return nil, fmt.Errorf("building signer identity: %w", err)
	}
	configuration.PrivateKey = ""

	node := &Node{
		configuration: configuration,
		logger:        logger.With("signer", account.Address().Short()),
		account:       account,
		hub:           signalling.NewHub(logger),
	}

	node.manager = channel.NewManager(
		identity.NewAccountManager(account),
		channel.NewPionFactory(),
		channel.ManagerOptions{
			ICEServers: node.extraICEServers(),
			Logger:     logger,
		},
	)

	node.hub.OnSession(node.admitSession)
	return node, nil
}

// extraICEServers converts the configured servers; the manager adds the
// stock STUN server itself.
func (n *Node) extraICEServers() []channel.ICEServer {
	servers := make([]channel.ICEServer, 0, len(n.configuration.ICEServers))
	for _, server := range n.configuration.ICEServers {
		servers = append(servers, channel.ICEServer{
			URLs:       server.URLs,
			Username:   server.Username,
			Credential: server.Credential,
		})
	}
	return servers
}

// admitSession wires a fresh signalling session into the manager's
// admission path. Once an offer is admitted the created channel takes
// over the session's receive handler.
func (n *Node) admitSession(session *signalling.HubSession) {
	session.OnReceiveMessage(func(env *envelope.Envelope) {
		go func() {
			if err := n.manager.HandleInbound(env, session); err != nil {
				n.logger.Warn("inbound signalling envelope refused", "error", err)
			}
		}()
	})
}

// Start brings the signalling hub up. It returns once the node is
// listening; the hub runs until the context is cancelled.
func (n *Node) Start(ctx context.Context) error {
	if n.configuration.TelemetryConnection != "" {
		n.logger.Info("telemetry connection configured")
	} else {
		n.logger.Info("telemetry connection absent")
	}

	if err := n.hub.Listen(ctx, n.configuration.Port); err != nil {
		return fmt.Errorf("starting signalling hub: %w", err)
	}
	n.logger.Info("node started", "port", n.configuration.Port)
	return nil
}

// ConnectNode dials another node's signalling hub and initiates a
// channel. The peer's signer is learned from its first envelope.
func (n *Node) ConnectNode(endpoint string) error {
	client := signalling.NewWebSocketClient(endpoint, n.logger)

	ch := channel.NewNodeChannel(
		n.account,
		identity.EmptyAddress,
		client,
		channel.NewPionFactory(),
		channel.Options{
			Polite:        false,
			InitiatedByUs: true,
			Logger:        n.logger,
		},
	)

	servers := append([]channel.ICEServer{{URLs: []string{channel.DefaultSTUNServer}}}, n.extraICEServers()...)
	if err := ch.StartPeerConnection(servers); err != nil {
		return err
	}

	n.mu.Lock()
	n.outbound = append(n.outbound, ch)
	n.mu.Unlock()

	go func() {
		if err := ch.Open(); err != nil {
			n.logger.Warn("outbound negotiation failed", "endpoint", endpoint, "error", err)
		}
	}()
	n.logger.Info("dialing node", "endpoint", endpoint)
	return nil
}

// Rows snapshots every channel for the operator views.
func (n *Node) Rows() []console.Row {
	n.mu.Lock()
	outbound := append([]*channel.NodeChannel(nil), n.outbound...)
	n.mu.Unlock()
	return console.Rows(n.manager, outbound)
}

// Shutdown disposes every channel and locks the signing key.
func (n *Node) Shutdown() {
	n.manager.Dispose()

	n.mu.Lock()
	outbound := n.outbound
	n.outbound = nil
	n.mu.Unlock()
	for _, ch := range outbound {
		ch.Dispose()
	}

	if err := n.account.Lock(); err != nil {
		n.logger.Warn("locking signer key failed", "error", err)
	}
	n.logger.Info("node stopped")
}
