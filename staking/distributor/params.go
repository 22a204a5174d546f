// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package distributor

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stakewell/stakewell/staking/reverts"
)

// SetFeeRate updates the reward fee, in bps.
func (d *Distributor) SetFeeRate(rate uint32) error {
	if rate > feeRateDenominator {
		return reverts.New("fee rate exceeds 10000 bps")
	}
	d.cfg.FeeRate = rate
	logger.Info("set fee rate", "bps", rate)
	return nil
}

// SetFeeDistribution updates the operators/treasury/vault split.
func (d *Distributor) SetFeeDistribution(dist FeeDistribution) error {
	if !dist.valid() {
		return reverts.New("fee distribution must sum to 100")
	}
	d.cfg.FeeDistribution = dist
	logger.Info("set fee distribution", "operators", dist.Operators,
		"treasury", dist.Treasury, "vault", dist.Vault)
	return nil
}

// SetLockupPeriod updates the withdrawal delay and claim window length.
// Outstanding requests keep the timing they were created with.
func (d *Distributor) SetLockupPeriod(seconds uint64) error {
	if seconds == 0 {
		return reverts.New("zero lockup period")
	}
	d.cfg.LockupPeriod = seconds
	logger.Info("set lockup period", "seconds", seconds)
	return nil
}

// SetUnstakeSplitThreshold updates the single-node withdrawal preference bound.
func (d *Distributor) SetUnstakeSplitThreshold(threshold *big.Int) error {
	if threshold == nil || threshold.Sign() < 0 {
		return reverts.New("invalid unstake split threshold")
	}
	d.cfg.UnstakeSplitThreshold = new(big.Int).Set(threshold)
	logger.Info("set unstake split threshold", "threshold", threshold)
	return nil
}

// SetMinOperateThreshold updates the minimum total stake a node needs to
// earn reward and contribute safe unstake capacity.
func (d *Distributor) SetMinOperateThreshold(threshold *big.Int) error {
	if threshold == nil || threshold.Sign() < 0 {
		return reverts.New("invalid min operate threshold")
	}
	d.cfg.MinOperateThreshold = new(big.Int).Set(threshold)
	logger.Info("set min operate threshold", "threshold", threshold)
	return nil
}

// SetTax updates the tax taken from tax-opt-in nodes' operator payouts.
func (d *Distributor) SetTax(rate uint32, receiver common.Address) error {
	if rate > feeRateDenominator {
		return reverts.New("tax rate exceeds 10000 bps")
	}
	if rate > 0 && receiver == (common.Address{}) {
		return reverts.New("zero tax receiver")
	}
	d.cfg.TaxRate = rate
	d.cfg.TaxReceiver = receiver
	logger.Info("set tax", "bps", rate, "receiver", receiver)
	return nil
}
