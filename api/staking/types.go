// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/stakewell/stakewell/staking"
	"github.com/stakewell/stakewell/staking/distributor"
)

func hexOrDecimal(v *big.Int) math.HexOrDecimal256 {
	return math.HexOrDecimal256(*v)
}

// PoolStatus for marshal pool totals
type PoolStatus struct {
	TotalValue  math.HexOrDecimal256 `json:"totalValue,string"`
	TotalShares math.HexOrDecimal256 `json:"totalShares,string"`
	Ratio       math.HexOrDecimal256 `json:"ratio,string"`
	Nodes       int                  `json:"nodes"`
}

// Node for marshal one registered node
type Node struct {
	ID               uint64               `json:"id"`
	Name             string               `json:"name"`
	Active           bool                 `json:"active"`
	UnstakingBlocked bool                 `json:"unstakingBlocked"`
	TaxOptIn         bool                 `json:"taxOptIn"`
	Disconnected     bool                 `json:"disconnected"`
	Operator         common.Address       `json:"operator"`
	OperatorStake    math.HexOrDecimal256 `json:"operatorStake,string"`
	ProtocolStake    math.HexOrDecimal256 `json:"protocolStake,string"`
	PendingUnstake   math.HexOrDecimal256 `json:"pendingUnstake,string"`
	NetStake         math.HexOrDecimal256 `json:"netStake,string"`
}

func convertNode(info *staking.NodeInfo) *Node {
	return &Node{
		ID:               info.ID,
		Name:             info.Name,
		Active:           info.Active,
		UnstakingBlocked: info.UnstakingBlocked,
		TaxOptIn:         info.TaxOptIn,
		Disconnected:     info.Disconnected,
		Operator:         info.Operator,
		OperatorStake:    math.HexOrDecimal256(*info.OperatorStake),
		ProtocolStake:    math.HexOrDecimal256(*info.ProtocolStake),
		PendingUnstake:   math.HexOrDecimal256(*info.PendingUnstake),
		NetStake:         math.HexOrDecimal256(*info.NetStake),
	}
}

// Account for marshal a holder's position
type Account struct {
	Balance        math.HexOrDecimal256 `json:"balance,string"`
	Shares         math.HexOrDecimal256 `json:"shares,string"`
	Claimable      math.HexOrDecimal256 `json:"claimable,string"`
	ClaimableCount int                  `json:"claimableCount"`
	Requests       int                  `json:"requests"`
}

// Request for marshal one unstaking request
type Request struct {
	Amount      math.HexOrDecimal256 `json:"amount,string"`
	ClaimableAt uint64               `json:"claimableAt"`
	ExpiresAt   uint64               `json:"expiresAt"`
	State       string               `json:"state"`
}

func convertRequests(reqs []*distributor.UnstakingRequest) []*Request {
	out := make([]*Request, len(reqs))
	for i, r := range reqs {
		out[i] = &Request{
			Amount:      math.HexOrDecimal256(*r.Amount),
			ClaimableAt: r.ClaimableAt,
			ExpiresAt:   r.ExpiresAt,
			State:       r.State.String(),
		}
	}
	return out
}

// AmountBody represents a stake/unstake/rebalance request body
type AmountBody struct {
	Amount *math.HexOrDecimal256 `json:"amount,string"`
}

func (b *AmountBody) value() *big.Int {
	if b.Amount == nil {
		return nil
	}
	return (*big.Int)(b.Amount)
}

// TransferBody represents a share transfer body
type TransferBody struct {
	To     common.Address        `json:"to"`
	Shares *math.HexOrDecimal256 `json:"shares,string"`
}

// ClaimResult reports a settled claim
type ClaimResult struct {
	Claimed math.HexOrDecimal256 `json:"claimed,string"`
	Expired math.HexOrDecimal256 `json:"expired,string"`
}

// FlagBody represents a node flag update body
type FlagBody struct {
	Value bool `json:"value"`
}

// OperatorBody represents a node reward-address update body
type OperatorBody struct {
	Operator common.Address `json:"operator"`
}

// NameBody represents a node rename body
type NameBody struct {
	Name string `json:"name"`
}

// RestakeBody represents a claim-and-restake body
type RestakeBody struct {
	ClaimNode uint64 `json:"claimNode"`
	StakeNode uint64 `json:"stakeNode"`
}

// ParamsBody carries partial parameter updates; absent fields stay unchanged.
type ParamsBody struct {
	FeeRate               *uint32                      `json:"feeRate"`
	FeeDistribution       *distributor.FeeDistribution `json:"feeDistribution"`
	LockupPeriod          *uint64                      `json:"lockupPeriod"`
	UnstakeSplitThreshold *math.HexOrDecimal256        `json:"unstakeSplitThreshold,string"`
	MinOperateThreshold   *math.HexOrDecimal256        `json:"minOperateThreshold,string"`
	TaxRate               *uint32                      `json:"taxRate"`
	TaxReceiver           *common.Address              `json:"taxReceiver"`
}
