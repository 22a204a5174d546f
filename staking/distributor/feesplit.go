// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package distributor

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/stakewell/stakewell/staking/registry"
)

// nodeReward is one node's contribution to a distribution round.
type nodeReward struct {
	node     *registry.Node
	operator *big.Int // operator's pro-rata share, paid out directly
	pool     *big.Int // pool share, feeds the fee pipeline
}

// DistributeReward pulls accrued reward from every active node, pays the
// operator shares, takes the fee, and re-stakes the remainder. Re-staking is
// the only path that moves the ledger's ratio.
func (d *Distributor) DistributeReward(now uint64) error {
	release, err := d.entry.Enter()
	if err != nil {
		return err
	}
	defer release()
	return d.distributeReward(now)
}

func (d *Distributor) distributeReward(_ uint64) error {
	var rounds []*nodeReward
	poolReward := new(big.Int)

	err := d.reg.IterActive(func(n *registry.Node) error {
		operator, pool, err := n.Proxy.ClaimReward()
		if err != nil {
			return errors.Wrapf(err, "claim reward node %d", n.ID)
		}
		if operator.Sign() == 0 && pool.Sign() == 0 {
			return nil
		}
		rounds = append(rounds, &nodeReward{node: n, operator: operator, pool: pool})
		poolReward.Add(poolReward, pool)
		return nil
	})
	if err != nil {
		return err
	}

	// proxy-level operator shares are paid out directly
	for _, r := range rounds {
		if r.operator.Sign() > 0 {
			if err := d.payOperator(r.node, r.operator, "operator reward"); err != nil {
				return err
			}
		}
	}

	if poolReward.Sign() == 0 {
		return nil
	}

	fee := new(big.Int).Mul(poolReward, big.NewInt(int64(d.cfg.FeeRate)))
	fee.Div(fee, big.NewInt(feeRateDenominator))

	operatorCut, treasuryCut, vaultCut := d.splitFee(fee)

	restake := new(big.Int).Sub(poolReward, fee)

	if operatorCut.Sign() > 0 {
		paid, err := d.payOperatorCut(rounds, operatorCut)
		if err != nil {
			return err
		}
		// flooring dust and the shares of below-threshold nodes stay in the pool
		restake.Add(restake, new(big.Int).Sub(operatorCut, paid))
	}
	if treasuryCut.Sign() > 0 {
		if err := d.paylog.Record(d.cfg.Token, treasuryCut, d.cfg.Treasury, "treasury fee"); err != nil {
			return errors.Wrap(err, "record treasury fee")
		}
	}
	if vaultCut.Sign() > 0 {
		if err := d.paylog.Record(d.cfg.Token, vaultCut, d.cfg.Vault, "vault fee"); err != nil {
			return errors.Wrap(err, "record vault fee")
		}
	}

	if restake.Sign() > 0 {
		if err := d.minter.IncreaseTotalValue(restake); err != nil {
			return errors.Wrap(err, "increase total value")
		}
		if err := d.stake(restake); err != nil {
			return errors.Wrap(err, "restake reward")
		}
	}

	logger.Info("distributed reward", "pool", poolReward, "fee", fee,
		"operators", operatorCut, "treasury", treasuryCut, "vault", vaultCut, "restaked", restake)
	return nil
}

// splitFee divides the fee by the configured percentages. The vault takes
// the subtraction remainder so the three cuts always sum to the fee.
func (d *Distributor) splitFee(fee *big.Int) (operatorCut, treasuryCut, vaultCut *big.Int) {
	operatorCut = new(big.Int).Mul(fee, big.NewInt(int64(d.cfg.FeeDistribution.Operators)))
	operatorCut.Div(operatorCut, big.NewInt(100))
	treasuryCut = new(big.Int).Mul(fee, big.NewInt(int64(d.cfg.FeeDistribution.Treasury)))
	treasuryCut.Div(treasuryCut, big.NewInt(100))
	vaultCut = new(big.Int).Sub(fee, operatorCut)
	vaultCut.Sub(vaultCut, treasuryCut)
	return operatorCut, treasuryCut, vaultCut
}

// payOperatorCut spreads the operator fee cut across nodes pro-rata by their
// contributed pool reward. Nodes whose total stake sits below the operate
// threshold earn nothing. Returns the amount actually paid.
func (d *Distributor) payOperatorCut(rounds []*nodeReward, operatorCut *big.Int) (*big.Int, error) {
	eligible := make([]*nodeReward, 0, len(rounds))
	contrib := new(big.Int)
	for _, r := range rounds {
		total := new(big.Int).Add(r.node.Proxy.OperatorStake(), r.node.Proxy.ProtocolStake())
		if total.Cmp(d.cfg.MinOperateThreshold) < 0 {
			continue
		}
		if r.pool.Sign() > 0 {
			eligible = append(eligible, r)
			contrib.Add(contrib, r.pool)
		}
	}
	paid := new(big.Int)
	if contrib.Sign() == 0 {
		return paid, nil
	}

	for _, r := range eligible {
		share := new(big.Int).Mul(operatorCut, r.pool)
		share.Div(share, contrib)
		if share.Sign() == 0 {
			continue
		}
		if err := d.payOperator(r.node, share, "operator fee"); err != nil {
			return nil, err
		}
		paid.Add(paid, share)
	}
	return paid, nil
}

// payOperator records a payout to the node's operator reward address,
// deducting tax first for tax-opt-in nodes.
func (d *Distributor) payOperator(node *registry.Node, amount *big.Int, reason string) error {
	payout := new(big.Int).Set(amount)
	if node.TaxOptIn && d.cfg.TaxRate > 0 {
		tax := new(big.Int).Mul(amount, big.NewInt(int64(d.cfg.TaxRate)))
		tax.Div(tax, big.NewInt(feeRateDenominator))
		if tax.Sign() > 0 {
			if err := d.paylog.Record(d.cfg.Token, tax, d.cfg.TaxReceiver, "operator tax"); err != nil {
				return errors.Wrap(err, "record tax")
			}
			payout.Sub(payout, tax)
		}
	}
	if payout.Sign() == 0 {
		return nil
	}
	if err := d.paylog.Record(d.cfg.Token, payout, node.Operator, reason); err != nil {
		return errors.Wrapf(err, "record %s", reason)
	}
	return nil
}
