// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package registry holds the set of registered staking nodes. Nodes get a
// monotonic id on registration and are never deleted, only deactivated, so
// ids referenced by outstanding withdrawal queues stay stable.
package registry

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/stakewell/stakewell/log"
	"github.com/stakewell/stakewell/staking/nodeproxy"
	"github.com/stakewell/stakewell/staking/reverts"
)

var logger = log.WithContext("pkg", "registry")

// Node is one registered staking endpoint.
type Node struct {
	ID               uint64
	Name             string
	Active           bool
	UnstakingBlocked bool
	TaxOptIn         bool
	Operator         common.Address // operator reward address
	Proxy            *nodeproxy.Proxy
}

// Registry is the node arena. Ids are 1-based; slot i holds node id i+1.
type Registry struct {
	nodes []*Node
}

func New() *Registry {
	return &Registry{}
}

// Register adds a node and returns its id. New nodes start active.
func (r *Registry) Register(name string, proxy *nodeproxy.Proxy, operator common.Address) (uint64, error) {
	if name == "" {
		return 0, reverts.New("empty node name")
	}
	if proxy == nil {
		return 0, reverts.New("nil proxy")
	}
	if operator == (common.Address{}) {
		return 0, reverts.New("zero operator address")
	}
	for _, n := range r.nodes {
		if n.Name == name {
			return 0, reverts.Newf("node name %q already registered", name)
		}
	}

	id := uint64(len(r.nodes)) + 1
	r.nodes = append(r.nodes, &Node{
		ID:       id,
		Name:     name,
		Active:   true,
		Operator: operator,
		Proxy:    proxy,
	})
	logger.Info("registered node", "id", id, "name", name, "operator", operator)
	return id, nil
}

// Get returns the node with the given id.
func (r *Registry) Get(id uint64) (*Node, error) {
	if id == 0 || id > uint64(len(r.nodes)) {
		return nil, reverts.Newf("unknown node id %d", id)
	}
	return r.nodes[id-1], nil
}

// Len returns the total number of registered nodes, active or not.
func (r *Registry) Len() int {
	return len(r.nodes)
}

// ActiveCount returns the number of active nodes.
func (r *Registry) ActiveCount() int {
	count := 0
	for _, n := range r.nodes {
		if n.Active {
			count++
		}
	}
	return count
}

// Iter scans the full arena in id order.
func (r *Registry) Iter(fn func(*Node) error) error {
	for _, n := range r.nodes {
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}

// IterActive scans the arena in id order, skipping inactive nodes.
func (r *Registry) IterActive(fn func(*Node) error) error {
	for _, n := range r.nodes {
		if !n.Active {
			continue
		}
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}

// SetActive toggles a node in or out of the active set.
func (r *Registry) SetActive(id uint64, active bool) error {
	n, err := r.Get(id)
	if err != nil {
		return err
	}
	n.Active = active
	logger.Info("set node active", "id", id, "active", active)
	return nil
}

// SetUnstakingBlocked excludes or readmits a node for withdrawal allocation.
func (r *Registry) SetUnstakingBlocked(id uint64, blocked bool) error {
	n, err := r.Get(id)
	if err != nil {
		return err
	}
	n.UnstakingBlocked = blocked
	logger.Info("set node unstaking-blocked", "id", id, "blocked", blocked)
	return nil
}

// SetTaxOptIn toggles tax collection on the node's operator payouts.
func (r *Registry) SetTaxOptIn(id uint64, optIn bool) error {
	n, err := r.Get(id)
	if err != nil {
		return err
	}
	n.TaxOptIn = optIn
	logger.Info("set node tax opt-in", "id", id, "optIn", optIn)
	return nil
}

// SetOperator updates the node's operator reward address.
func (r *Registry) SetOperator(id uint64, operator common.Address) error {
	if operator == (common.Address{}) {
		return reverts.New("zero operator address")
	}
	n, err := r.Get(id)
	if err != nil {
		return err
	}
	n.Operator = operator
	logger.Info("set node operator", "id", id, "operator", operator)
	return nil
}

// SetName renames a node.
func (r *Registry) SetName(id uint64, name string) error {
	if name == "" {
		return reverts.New("empty node name")
	}
	for _, other := range r.nodes {
		if other.Name == name && other.ID != id {
			return reverts.Newf("node name %q already registered", name)
		}
	}
	n, err := r.Get(id)
	if err != nil {
		return err
	}
	n.Name = name
	return nil
}
