// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package distributor decides how deposits and withdrawals are split across
// the active node set, collects and splits node rewards, and runs the
// per-user queue of delayed withdrawal claims.
package distributor

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/stakewell/stakewell/log"
	"github.com/stakewell/stakewell/staking/guard"
	"github.com/stakewell/stakewell/staking/registry"
	"github.com/stakewell/stakewell/staking/reverts"
)

var logger = log.WithContext("pkg", "distributor")

const feeRateDenominator = 10_000

// Minter is the distributor's only write access into the share ledger:
// re-staking reward value and re-crediting expired claims.
type Minter interface {
	IncreaseTotalValue(amount *big.Int) error
	MintValue(holder common.Address, value *big.Int) error
}

// Recorder logs disbursements for external read-back.
type Recorder interface {
	Record(token string, amount *big.Int, to common.Address, reason string) error
}

// FeeDistribution splits the reward fee, in percent. Must sum to 100.
type FeeDistribution struct {
	Operators uint32
	Treasury  uint32
	Vault     uint32
}

func (d FeeDistribution) valid() bool {
	return d.Operators+d.Treasury+d.Vault == 100
}

// Config carries the global distribution parameters.
type Config struct {
	// FeeRate is the share of collected reward taken as fee, in bps.
	FeeRate uint32
	// FeeDistribution splits the fee between operators, treasury and the
	// ledger-side vault.
	FeeDistribution FeeDistribution
	// MinOperateThreshold is the total stake below which a node earns no
	// reward and contributes no safe unstake capacity.
	MinOperateThreshold *big.Int
	// UnstakeSplitThreshold bounds the request size below which a
	// withdrawal prefers a single node over fragmenting many queues.
	UnstakeSplitThreshold *big.Int
	// LockupPeriod is both the withdrawal delay and the claim window
	// length, in seconds.
	LockupPeriod uint64
	// ClaimBatchLimit caps queue entries processed per claim call.
	ClaimBatchLimit int
	// TaxRate applies to operator payouts of tax-opt-in nodes, in bps.
	TaxRate     uint32
	TaxReceiver common.Address

	Treasury common.Address
	Vault    common.Address

	// Token names the denomination reported to the disbursement log.
	Token string
}

func (c *Config) validate() error {
	if c.FeeRate > feeRateDenominator {
		return reverts.New("fee rate exceeds 10000 bps")
	}
	if !c.FeeDistribution.valid() {
		return reverts.New("fee distribution must sum to 100")
	}
	if c.MinOperateThreshold == nil || c.MinOperateThreshold.Sign() < 0 {
		return reverts.New("invalid min operate threshold")
	}
	if c.UnstakeSplitThreshold == nil || c.UnstakeSplitThreshold.Sign() < 0 {
		return reverts.New("invalid unstake split threshold")
	}
	if c.LockupPeriod == 0 {
		return reverts.New("zero lockup period")
	}
	if c.ClaimBatchLimit <= 0 {
		return reverts.New("invalid claim batch limit")
	}
	if c.TaxRate > feeRateDenominator {
		return reverts.New("tax rate exceeds 10000 bps")
	}
	if c.TaxRate > 0 && c.TaxReceiver == (common.Address{}) {
		return reverts.New("zero tax receiver")
	}
	return nil
}

// Distributor owns the node registry and the per-user claim queues.
type Distributor struct {
	reg    *registry.Registry
	cfg    Config
	minter Minter
	paylog Recorder

	// self is the reserved queue key for rebalancing withdrawals, which
	// bypass the user-facing claim queues.
	self common.Address

	requests map[common.Address][]*UnstakingRequest
	cursors  map[common.Address]int

	entry guard.Guard
}

// New creates a distributor over the given registry. The minter is wired
// afterwards via SetMinter to break the construction cycle with the ledger.
func New(reg *registry.Registry, cfg Config, paylog Recorder, self common.Address) (*Distributor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Distributor{
		reg:      reg,
		cfg:      cfg,
		paylog:   paylog,
		self:     self,
		requests: make(map[common.Address][]*UnstakingRequest),
		cursors:  make(map[common.Address]int),
	}, nil
}

// SetMinter wires the share ledger's restricted mint surface.
func (d *Distributor) SetMinter(m Minter) {
	d.minter = m
}

// Registry exposes the node set the distributor owns.
func (d *Distributor) Registry() *registry.Registry {
	return d.reg
}

// Config returns a copy of the current distribution parameters.
func (d *Distributor) Config() Config {
	cfg := d.cfg
	cfg.MinOperateThreshold = new(big.Int).Set(d.cfg.MinOperateThreshold)
	cfg.UnstakeSplitThreshold = new(big.Int).Set(d.cfg.UnstakeSplitThreshold)
	return cfg
}

// Stake allocates a deposit across the active node set.
func (d *Distributor) Stake(amount *big.Int) error {
	release, err := d.entry.Enter()
	if err != nil {
		return err
	}
	defer release()
	return d.stake(amount)
}

func (d *Distributor) stake(amount *big.Int) error {
	logger.Debug("staking", "amount", amount)

	allocs, err := d.ComputeStakeDistribution(amount)
	if err != nil {
		logger.Info("stake rejected", "amount", amount, "error", err)
		return err
	}

	for _, a := range allocs {
		if a.Amount.Sign() == 0 {
			continue
		}
		if err := a.Node.Proxy.Stake(a.Amount); err != nil {
			return errors.Wrapf(err, "stake node %d", a.Node.ID)
		}
	}

	logger.Info("staked", "amount", amount, "nodes", len(allocs))
	return nil
}

// Unstake records a delayed withdrawal request for to and submits the
// corresponding per-node withdrawals. It returns the 1-indexed sequence
// number of the accepted request.
func (d *Distributor) Unstake(to common.Address, amount *big.Int, now uint64) (int, error) {
	release, err := d.entry.Enter()
	if err != nil {
		return 0, err
	}
	defer release()

	logger.Debug("unstaking", "to", to, "amount", amount)

	allocs, err := d.ComputeUnstakeDistribution(amount)
	if err != nil {
		logger.Info("unstake rejected", "to", to, "amount", amount, "error", err)
		return 0, err
	}

	// submit every per-node withdrawal before the request becomes visible;
	// on a late failure the already-submitted withdrawals move to the
	// allocator's own queue, where ClaimAndRestake recycles them
	var submitted []*registry.Node
	for _, a := range allocs {
		if a.Amount.Sign() == 0 {
			continue
		}
		if _, err := a.Node.Proxy.Unstake(to, a.Amount); err != nil {
			for _, n := range submitted {
				if rerr := n.Proxy.ReassignLast(to, d.self); rerr != nil {
					logger.Error("orphaned withdrawal", "node", n.ID, "user", to, "error", rerr)
				}
			}
			return 0, errors.Wrapf(err, "unstake node %d", a.Node.ID)
		}
		submitted = append(submitted, a.Node)
	}

	d.requests[to] = append(d.requests[to], &UnstakingRequest{
		Amount:      new(big.Int).Set(amount),
		ClaimableAt: now + d.cfg.LockupPeriod,
		ExpiresAt:   now + 2*d.cfg.LockupPeriod,
		State:       RequestUnclaimed,
	})
	seq := len(d.requests[to])

	logger.Info("unstake accepted", "to", to, "amount", amount, "seq", seq,
		"claimableAt", now+d.cfg.LockupPeriod)
	return seq, nil
}

// UnstakeForRebalancing pulls pool funds off one node without touching the
// ledger; the withdrawal waits in the allocator's own queue until
// ClaimAndRestake moves it elsewhere.
func (d *Distributor) UnstakeForRebalancing(nodeID uint64, amount *big.Int) error {
	release, err := d.entry.Enter()
	if err != nil {
		return err
	}
	defer release()

	if amount.Sign() <= 0 {
		return reverts.New("zero amount")
	}
	node, err := d.reg.Get(nodeID)
	if err != nil {
		return err
	}
	if _, err := node.Proxy.Unstake(d.self, amount); err != nil {
		return err
	}

	logger.Info("unstaked for rebalancing", "node", nodeID, "amount", amount)
	return nil
}

// UnstakeForDeregister drains a node's entire net protocol stake ahead of
// its removal from service, deliberately ignoring the operate threshold.
func (d *Distributor) UnstakeForDeregister(nodeID uint64) (*big.Int, error) {
	release, err := d.entry.Enter()
	if err != nil {
		return nil, err
	}
	defer release()

	node, err := d.reg.Get(nodeID)
	if err != nil {
		return nil, err
	}
	net := node.Proxy.NetProtocolStake()
	if net.Sign() <= 0 {
		return nil, reverts.Newf("node %d has no unstakeable balance", nodeID)
	}
	if _, err := node.Proxy.Unstake(d.self, net); err != nil {
		return nil, err
	}

	logger.Info("unstaked for deregister", "node", nodeID, "amount", net)
	return net, nil
}

// ClaimAndRestake finalizes matured rebalancing withdrawals on one node and
// stakes the proceeds on another.
func (d *Distributor) ClaimAndRestake(claimNodeID, stakeNodeID uint64, now uint64) (*big.Int, error) {
	release, err := d.entry.Enter()
	if err != nil {
		return nil, err
	}
	defer release()

	claimNode, err := d.reg.Get(claimNodeID)
	if err != nil {
		return nil, err
	}
	stakeNode, err := d.reg.Get(stakeNodeID)
	if err != nil {
		return nil, err
	}
	if !stakeNode.Active {
		return nil, reverts.Newf("node %d is not active", stakeNodeID)
	}

	claimed, expired, err := claimNode.Proxy.ClaimUnstaked(d.self, now, now, d.cfg.ClaimBatchLimit, true)
	if err != nil {
		return nil, err
	}
	if expired.Sign() > 0 {
		// funds reverted to the origin node's staking position
		logger.Warn("rebalancing withdrawal expired", "node", claimNodeID, "amount", expired)
	}
	if claimed.Sign() > 0 {
		if err := stakeNode.Proxy.Stake(claimed); err != nil {
			return nil, errors.Wrapf(err, "restake node %d", stakeNodeID)
		}
	}

	logger.Info("claimed and restaked", "from", claimNodeID, "to", stakeNodeID, "amount", claimed)
	return claimed, nil
}
