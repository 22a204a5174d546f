// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package staking assembles the pooled-staking engine: the node registry,
// the stake distributor, the share ledger and the disbursement log, behind
// one serialized facade.
package staking

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stakewell/stakewell/log"
	"github.com/stakewell/stakewell/metrics"
	"github.com/stakewell/stakewell/staking/distributor"
	"github.com/stakewell/stakewell/staking/ledger"
	"github.com/stakewell/stakewell/staking/nodeproxy"
	"github.com/stakewell/stakewell/staking/registry"
)

var logger = log.WithContext("pkg", "staking")

// AllocatorAddress is the reserved queue key under which rebalancing
// withdrawals wait; it never collides with a user address.
var AllocatorAddress = common.BytesToAddress([]byte("stakewell-allocator"))

var (
	metricStakes   = metrics.LazyLoad(func() metrics.CountMeter { return metrics.Counter("stakes_total") })
	metricUnstakes = metrics.LazyLoad(func() metrics.CountMeter { return metrics.Counter("unstakes_total") })
	metricClaims   = metrics.LazyLoad(func() metrics.CountVecMeter {
		return metrics.CounterVec("claims_total", []string{"outcome"})
	})
	metricTotalValue  = metrics.LazyLoad(func() metrics.GaugeMeter { return metrics.Gauge("total_value") })
	metricTotalShares = metrics.LazyLoad(func() metrics.GaugeMeter { return metrics.Gauge("total_shares") })
	metricActiveNodes = metrics.LazyLoad(func() metrics.GaugeMeter { return metrics.Gauge("active_nodes") })
)

// Clock supplies the engine's notion of time, in unix seconds.
type Clock interface {
	Now() uint64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// Pool is the top-level engine. The embedded mutex serializes top-level
// operations the way the original hosting environment does; reentrancy
// inside one operation is handled by the per-component guards.
type Pool struct {
	mu sync.Mutex

	reg    *registry.Registry
	dist   *distributor.Distributor
	ledger *ledger.Ledger
	clock  Clock
}

// NewPool wires the engine together.
func NewPool(cfg distributor.Config, paylog distributor.Recorder, clock Clock) (*Pool, error) {
	reg := registry.New()
	dist, err := distributor.New(reg, cfg, paylog, AllocatorAddress)
	if err != nil {
		return nil, err
	}
	l := ledger.New(dist)
	dist.SetMinter(l)

	return &Pool{
		reg:    reg,
		dist:   dist,
		ledger: l,
		clock:  clock,
	}, nil
}

//
// Depositor-facing operations
//

// Stake converts a deposit into shares for holder and spreads the value
// across the active node set.
func (p *Pool) Stake(holder common.Address, value *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ledger.Stake(holder, value, p.clock.Now()); err != nil {
		logger.Info("stake failed", "holder", holder, "error", err)
		return err
	}
	metricStakes().Add(1)
	p.updateGauges()
	return nil
}

// Unstake burns shares worth value and queues a delayed withdrawal claim.
func (p *Pool) Unstake(holder common.Address, value *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ledger.Unstake(holder, value, p.clock.Now()); err != nil {
		logger.Info("unstake failed", "holder", holder, "error", err)
		return err
	}
	metricUnstakes().Add(1)
	p.updateGauges()
	return nil
}

// Claim settles the user's matured withdrawal requests. Claimed value is
// disbursed; expired value returns as freshly minted shares.
func (p *Pool) Claim(user common.Address) (claimed, expired *big.Int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	claimed, expired, err = p.ledger.Claim(user, p.clock.Now())
	if err != nil {
		logger.Info("claim failed", "user", user, "error", err)
		return nil, nil, err
	}
	if claimed.Sign() > 0 {
		metricClaims().AddWithLabel(1, map[string]string{"outcome": "claimed"})
	}
	if expired.Sign() > 0 {
		metricClaims().AddWithLabel(1, map[string]string{"outcome": "expired"})
	}
	p.updateGauges()
	return claimed, expired, nil
}

// Transfer moves shares between holders.
func (p *Pool) Transfer(from, to common.Address, shares *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ledger.Transfer(from, to, shares)
}

//
// Manager operations
//

// ForceDistributeReward pulls and distributes node rewards outside the
// stake/unstake triggers.
func (p *Pool) ForceDistributeReward() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.dist.DistributeReward(p.clock.Now()); err != nil {
		return err
	}
	p.updateGauges()
	return nil
}

// UnstakeForRebalancing pulls pool funds off one node into the allocator's
// rebalancing queue.
func (p *Pool) UnstakeForRebalancing(nodeID uint64, amount *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dist.UnstakeForRebalancing(nodeID, amount)
}

// UnstakeForDeregister drains a node ahead of its removal.
func (p *Pool) UnstakeForDeregister(nodeID uint64) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dist.UnstakeForDeregister(nodeID)
}

// ClaimAndRestake completes a rebalancing round, moving matured withdrawal
// proceeds from one node onto another.
func (p *Pool) ClaimAndRestake(claimNodeID, stakeNodeID uint64) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dist.ClaimAndRestake(claimNodeID, stakeNodeID, p.clock.Now())
}

//
// Operator administration
//

// RegisterNode adds a node to the arena and returns its id.
func (p *Pool) RegisterNode(name string, proxy *nodeproxy.Proxy, operator common.Address) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, err := p.reg.Register(name, proxy, operator)
	if err != nil {
		return 0, err
	}
	p.updateGauges()
	return id, nil
}

func (p *Pool) SetNodeActive(id uint64, active bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.reg.SetActive(id, active); err != nil {
		return err
	}
	p.updateGauges()
	return nil
}

func (p *Pool) SetNodeUnstakingBlocked(id uint64, blocked bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reg.SetUnstakingBlocked(id, blocked)
}

func (p *Pool) SetNodeTaxOptIn(id uint64, optIn bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reg.SetTaxOptIn(id, optIn)
}

func (p *Pool) SetNodeOperator(id uint64, operator common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reg.SetOperator(id, operator)
}

func (p *Pool) SetNodeName(id uint64, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reg.SetName(id, name)
}

// SetNodeDisconnected flags a node whose physical endpoint is gone.
func (p *Pool) SetNodeDisconnected(id uint64, disconnected bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.reg.Get(id)
	if err != nil {
		return err
	}
	n.Proxy.SetDisconnected(disconnected)
	logger.Warn("set node disconnected", "id", id, "disconnected", disconnected)
	return nil
}

func (p *Pool) SetFeeRate(rate uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dist.SetFeeRate(rate)
}

func (p *Pool) SetFeeDistribution(dist distributor.FeeDistribution) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dist.SetFeeDistribution(dist)
}

func (p *Pool) SetLockupPeriod(seconds uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dist.SetLockupPeriod(seconds)
}

func (p *Pool) SetUnstakeSplitThreshold(threshold *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dist.SetUnstakeSplitThreshold(threshold)
}

func (p *Pool) SetMinOperateThreshold(threshold *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dist.SetMinOperateThreshold(threshold)
}

func (p *Pool) SetTax(rate uint32, receiver common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dist.SetTax(rate, receiver)
}

//
// Read surface
//

// NodeInfo is the external view of one registered node.
type NodeInfo struct {
	ID               uint64
	Name             string
	Active           bool
	UnstakingBlocked bool
	TaxOptIn         bool
	Disconnected     bool
	Operator         common.Address
	OperatorStake    *big.Int
	ProtocolStake    *big.Int
	PendingUnstake   *big.Int
	NetStake         *big.Int
}

// NodeInfo returns the current view of a node by id.
func (p *Pool) NodeInfo(id uint64) (*NodeInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n, err := p.reg.Get(id)
	if err != nil {
		return nil, err
	}
	return &NodeInfo{
		ID:               n.ID,
		Name:             n.Name,
		Active:           n.Active,
		UnstakingBlocked: n.UnstakingBlocked,
		TaxOptIn:         n.TaxOptIn,
		Disconnected:     n.Proxy.Disconnected(),
		Operator:         n.Operator,
		OperatorStake:    n.Proxy.OperatorStake(),
		ProtocolStake:    n.Proxy.ProtocolStake(),
		PendingUnstake:   n.Proxy.PendingUnstake(),
		NetStake:         n.Proxy.NetProtocolStake(),
	}, nil
}

// NodeCount returns the arena size, active or not.
func (p *Pool) NodeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reg.Len()
}

// BalanceOf reports a holder's value at the current ratio.
func (p *Pool) BalanceOf(holder common.Address) *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ledger.BalanceOf(holder)
}

// SharesOf reports a holder's raw share balance.
func (p *Pool) SharesOf(holder common.Address) *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ledger.SharesOf(holder)
}

func (p *Pool) TotalValue() *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ledger.TotalValue()
}

func (p *Pool) TotalShares() *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ledger.TotalShares()
}

func (p *Pool) Ratio() *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ledger.Ratio()
}

// ClaimableOf returns the user's currently claimable amount and request count.
func (p *Pool) ClaimableOf(user common.Address) (*big.Int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dist.ClaimableOf(user, p.clock.Now())
}

// Requests returns a most-recent-first page of the user's withdrawal
// requests. pageSize 0 returns everything; pageNum 0 is the first page;
// out-of-range page numbers clamp to the last page.
func (p *Pool) Requests(user common.Address, pageSize, pageNum int) []*distributor.UnstakingRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dist.RequestPage(user, pageSize, pageNum)
}

// Config returns a copy of the live distribution parameters.
func (p *Pool) Config() distributor.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dist.Config()
}

// gauges are reported in whole tokens to stay inside int64
var gaugeUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func (p *Pool) updateGauges() {
	metricTotalValue().Set(new(big.Int).Div(p.ledger.TotalValue(), gaugeUnit).Int64())
	metricTotalShares().Set(new(big.Int).Div(p.ledger.TotalShares(), gaugeUnit).Int64())
	metricActiveNodes().Set(int64(p.reg.ActiveCount()))
}
