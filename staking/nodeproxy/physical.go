// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package nodeproxy

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// WithdrawalState is the lifecycle state a physical node reports for a
// submitted withdrawal.
type WithdrawalState uint8

const (
	WithdrawalPending WithdrawalState = iota
	WithdrawalTransferred
	WithdrawalExpired
)

func (s WithdrawalState) String() string {
	switch s {
	case WithdrawalPending:
		return "pending"
	case WithdrawalTransferred:
		return "transferred"
	case WithdrawalExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// WithdrawalInfo describes one withdrawal tracked by a physical node.
type WithdrawalInfo struct {
	Recipient   common.Address
	Amount      *big.Int
	ClaimableAt uint64
	State       WithdrawalState
}

// PhysicalNode is the staking primitive of one independently operated node.
// Implementations are semi-trusted: every call may yield control to foreign
// code, so callers order their own state mutations before invoking it.
type PhysicalNode interface {
	// Stake locks the given amount into the node's staking position.
	Stake(amount *big.Int) error

	// SubmitWithdrawal registers a withdrawal request and returns its
	// node-local id.
	SubmitWithdrawal(recipient common.Address, amount *big.Int) (uint64, error)

	// WithdrawalInfo returns the current view of a withdrawal request.
	WithdrawalInfo(id uint64) (*WithdrawalInfo, error)

	// ExecuteWithdrawal finalizes an eligible withdrawal. It reports the
	// resulting state: transferred on success, expired when the claim
	// window has closed (the funds then remain staked).
	ExecuteWithdrawal(id uint64) (WithdrawalState, error)

	// TotalStaked returns the node's current total staked balance.
	TotalStaked() (*big.Int, error)
}

// ValueRelay forwards a node's accrued reward balance to the authorized
// caller and reports the forwarded amount.
type ValueRelay interface {
	Withdraw(to common.Address) (*big.Int, error)
}
