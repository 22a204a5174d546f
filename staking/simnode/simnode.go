// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package simnode provides deterministic in-process implementations of the
// physical-node collaborators. They back solo mode and tests, where node
// behavior (delays, expiry, disconnection) must be scripted.
package simnode

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/stakewell/stakewell/staking/nodeproxy"
)

type record struct {
	recipient   common.Address
	amount      *big.Int
	claimableAt uint64
	state       nodeproxy.WithdrawalState
}

// Node simulates a physical staking node. Withdrawals become claimable after
// a fixed delay and expire once a claim window of the same order closes.
type Node struct {
	now    func() uint64
	delay  uint64
	window uint64

	staked      *big.Int
	nextID      uint64
	withdrawals map[uint64]*record
}

// NewNode creates a simulated node. Withdrawals become claimable delay
// seconds after submission and stay claimable for window seconds.
func NewNode(now func() uint64, delay, window uint64) *Node {
	return &Node{
		now:         now,
		delay:       delay,
		window:      window,
		staked:      new(big.Int),
		withdrawals: make(map[uint64]*record),
	}
}

func (n *Node) Stake(amount *big.Int) error {
	if amount.Sign() <= 0 {
		return errors.New("zero amount")
	}
	n.staked.Add(n.staked, amount)
	return nil
}

func (n *Node) SubmitWithdrawal(recipient common.Address, amount *big.Int) (uint64, error) {
	if amount.Sign() <= 0 {
		return 0, errors.New("zero amount")
	}
	if amount.Cmp(n.staked) > 0 {
		return 0, errors.New("withdrawal exceeds staked balance")
	}
	n.nextID++
	n.withdrawals[n.nextID] = &record{
		recipient:   recipient,
		amount:      new(big.Int).Set(amount),
		claimableAt: n.now() + n.delay,
		state:       nodeproxy.WithdrawalPending,
	}
	return n.nextID, nil
}

func (n *Node) WithdrawalInfo(id uint64) (*nodeproxy.WithdrawalInfo, error) {
	w, ok := n.withdrawals[id]
	if !ok {
		return nil, errors.Errorf("unknown withdrawal %d", id)
	}
	return &nodeproxy.WithdrawalInfo{
		Recipient:   w.recipient,
		Amount:      new(big.Int).Set(w.amount),
		ClaimableAt: w.claimableAt,
		State:       w.state,
	}, nil
}

func (n *Node) ExecuteWithdrawal(id uint64) (nodeproxy.WithdrawalState, error) {
	w, ok := n.withdrawals[id]
	if !ok {
		return 0, errors.Errorf("unknown withdrawal %d", id)
	}
	if w.state != nodeproxy.WithdrawalPending {
		return 0, errors.Errorf("withdrawal %d already finalized", id)
	}
	t := n.now()
	if t < w.claimableAt {
		return 0, errors.Errorf("withdrawal %d not yet claimable", id)
	}
	if t >= w.claimableAt+n.window {
		// window closed, funds remain staked
		w.state = nodeproxy.WithdrawalExpired
	} else {
		w.state = nodeproxy.WithdrawalTransferred
		n.staked.Sub(n.staked, w.amount)
	}
	return w.state, nil
}

func (n *Node) TotalStaked() (*big.Int, error) {
	return new(big.Int).Set(n.staked), nil
}

// Relay simulates the value relay holding a node's accrued rewards. Only
// authorized recipients may pull the balance.
type Relay struct {
	balance    *big.Int
	authorized map[common.Address]bool
}

func NewRelay() *Relay {
	return &Relay{
		balance:    new(big.Int),
		authorized: make(map[common.Address]bool),
	}
}

// Authorize allows to to pull the relay balance.
func (r *Relay) Authorize(to common.Address) {
	r.authorized[to] = true
}

// Accrue adds reward to the relay balance, simulating node earnings.
func (r *Relay) Accrue(amount *big.Int) {
	r.balance.Add(r.balance, amount)
}

func (r *Relay) Withdraw(to common.Address) (*big.Int, error) {
	if !r.authorized[to] {
		return nil, errors.New("unauthorized recipient")
	}
	out := new(big.Int).Set(r.balance)
	r.balance.SetInt64(0)
	return out, nil
}
