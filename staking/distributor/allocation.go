// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package distributor

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/stakewell/stakewell/staking/registry"
	"github.com/stakewell/stakewell/staking/reverts"
)

// Allocation is one node's portion of a stake or unstake amount.
type Allocation struct {
	Node   *registry.Node
	Amount *big.Int
}

// nodeFigures snapshots the live stake figures the algorithms work on.
// Both algorithms read every proxy exactly once and are evaluated fresh on
// every call; there is no cached distribution plan.
type nodeFigures struct {
	node *registry.Node
	net  *big.Int // protocol stake minus pending unstake
	safe *big.Int // net minus the pool-covered part of the operate threshold
}

func (d *Distributor) activeFigures() []*nodeFigures {
	var figs []*nodeFigures
	_ = d.reg.IterActive(func(n *registry.Node) error {
		net := n.Proxy.NetProtocolStake()

		// the pool must leave behind whatever part of the operate
		// threshold the operator's own stake does not cover
		reserve := new(big.Int).Sub(d.cfg.MinOperateThreshold, n.Proxy.OperatorStake())
		if reserve.Sign() < 0 {
			reserve.SetInt64(0)
		}
		safe := new(big.Int).Sub(net, reserve)
		if safe.Sign() < 0 {
			safe.SetInt64(0)
		}

		figs = append(figs, &nodeFigures{node: n, net: net, safe: safe})
		return nil
	})
	return figs
}

// ComputeStakeDistribution splits a deposit across the active node set.
// Threshold shortfalls are filled first; the rest spreads evenly with
// surplus funneled toward the poorest node, converging the pool toward an
// even distribution over successive deposits. The full amount is always
// allocated, by construction.
func (d *Distributor) ComputeStakeDistribution(amount *big.Int) ([]*Allocation, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, reverts.New("zero amount")
	}
	figs := d.activeFigures()
	if len(figs) == 0 {
		return nil, reverts.New("no active nodes")
	}

	richest, poorest := figs[0], figs[0]
	var shortNode *nodeFigures
	var shortfall *big.Int
	for _, f := range figs {
		if f.net.Cmp(richest.net) > 0 {
			richest = f
		}
		if f.net.Cmp(poorest.net) < 0 {
			poorest = f
		}

		total := new(big.Int).Add(f.node.Proxy.OperatorStake(), f.net)
		if total.Cmp(d.cfg.MinOperateThreshold) < 0 {
			short := new(big.Int).Sub(d.cfg.MinOperateThreshold, total)
			if shortNode == nil || short.Cmp(shortfall) < 0 {
				shortNode, shortfall = f, short
			}
		}
	}

	allocs := make([]*Allocation, len(figs))
	index := make(map[*nodeFigures]*Allocation, len(figs))
	for i, f := range figs {
		allocs[i] = &Allocation{Node: f.node, Amount: new(big.Int)}
		index[f] = allocs[i]
	}

	remainder := new(big.Int).Set(amount)

	// fill the smallest threshold shortfall first
	if shortNode != nil {
		fill := shortfall
		if remainder.Cmp(fill) < 0 {
			fill = remainder
		}
		index[shortNode].Amount.Add(index[shortNode].Amount, fill)
		remainder = new(big.Int).Sub(remainder, fill)
		if shortNode == poorest {
			poorest.net = new(big.Int).Add(poorest.net, fill)
		}
	}

	if remainder.Sign() > 0 {
		gap := new(big.Int).Sub(richest.net, poorest.net)
		if gap.Sign() < 0 {
			gap.SetInt64(0)
		}
		cap_ := gap
		if remainder.Cmp(cap_) < 0 {
			cap_ = remainder
		}
		share := new(big.Int).Div(remainder, big.NewInt(int64(len(figs))))
		if share.Cmp(cap_) > 0 {
			share = cap_
		}

		distributed := new(big.Int)
		for _, f := range figs {
			index[f].Amount.Add(index[f].Amount, share)
			distributed.Add(distributed, share)
		}
		// surplus above the capped even share converges on the poorest node
		leftover := new(big.Int).Sub(remainder, distributed)
		index[poorest].Amount.Add(index[poorest].Amount, leftover)
	}

	return allocs, nil
}

// ComputeUnstakeDistribution decides which nodes a withdrawal pulls from.
// Nodes flagged unstaking-blocked are excluded entirely. Four cases apply in
// order: single-node fast path, even split, proportional-to-safe-capacity,
// and finally a drawdown past the safe limits when capacity is short. The
// algorithm must end with the full amount allocated; anything less is an
// invariant violation, not a retryable condition.
func (d *Distributor) ComputeUnstakeDistribution(amount *big.Int) ([]*Allocation, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, reverts.New("zero amount")
	}
	all := d.activeFigures()
	if len(all) == 0 {
		return nil, reverts.New("no active nodes")
	}
	var figs []*nodeFigures
	for _, f := range all {
		if !f.node.UnstakingBlocked {
			figs = append(figs, f)
		}
	}
	if len(figs) == 0 {
		return nil, reverts.New("no nodes eligible for unstaking")
	}

	sumSafe := new(big.Int)
	sumNet := new(big.Int)
	richest, poorest := figs[0], figs[0]
	for _, f := range figs {
		sumSafe.Add(sumSafe, f.safe)
		sumNet.Add(sumNet, f.net)
		if f.safe.Cmp(richest.safe) > 0 {
			richest = f
		}
		if f.safe.Cmp(poorest.safe) < 0 {
			poorest = f
		}
	}
	if amount.Cmp(sumNet) > 0 {
		return nil, reverts.New("insufficient unstakeable balance")
	}

	allocs := make([]*Allocation, len(figs))
	index := make(map[*nodeFigures]*Allocation, len(figs))
	for i, f := range figs {
		allocs[i] = &Allocation{Node: f.node, Amount: new(big.Int)}
		index[f] = allocs[i]
	}

	n := int64(len(figs))
	gap := new(big.Int).Sub(richest.safe, poorest.safe)

	switch {
	case richest.safe.Cmp(amount) >= 0:
		// case 1: the richest node alone can cover the request
		limit := new(big.Int).Add(d.cfg.UnstakeSplitThreshold, gap)
		if amount.Cmp(limit) <= 0 {
			// small request, avoid fragmenting other nodes' queues
			index[richest].Amount.Set(amount)
			break
		}
		even := new(big.Int).Sub(amount, gap)
		even.Div(even, big.NewInt(n))
		total := new(big.Int)
		for _, f := range figs {
			if f == richest {
				continue
			}
			share := even
			if f.safe.Cmp(share) < 0 {
				share = f.safe
			}
			index[f].Amount.Set(share)
			total.Add(total, share)
		}
		// the richest absorbs the gap, the rounding dust and any
		// shortfall credited back from capped nodes
		index[richest].Amount.Sub(amount, total)

	case d.evenSplitFits(figs, richest, amount, gap, n):
		// case 2: every node supports an even share, richest takes the gap
		even := new(big.Int).Sub(amount, gap)
		even.Div(even, big.NewInt(n))
		total := new(big.Int)
		for _, f := range figs {
			if f == richest {
				continue
			}
			index[f].Amount.Set(even)
			total.Add(total, even)
		}
		index[richest].Amount.Sub(amount, total)

	case sumSafe.Cmp(amount) >= 0:
		// case 3: pull proportionally from each node's safe capacity
		assigned := new(big.Int)
		for _, f := range figs {
			share := new(big.Int).Mul(amount, f.safe)
			share.Div(share, sumSafe)
			index[f].Amount.Set(share)
			assigned.Add(assigned, share)
		}
		dust := new(big.Int).Sub(amount, assigned)
		// flooring dust lands on nodes with spare safe capacity,
		// richest first
		for _, f := range sortBySafeDesc(figs) {
			if dust.Sign() == 0 {
				break
			}
			spare := new(big.Int).Sub(f.safe, index[f].Amount)
			if spare.Sign() <= 0 {
				continue
			}
			if spare.Cmp(dust) > 0 {
				spare = new(big.Int).Set(dust)
			}
			index[f].Amount.Add(index[f].Amount, spare)
			dust.Sub(dust, spare)
		}

	default:
		// case 4: safe capacity is short, draw nodes down toward and past
		// the operate threshold; deactivating them afterwards is an
		// operator decision, not an automatic transition
		remaining := new(big.Int).Set(amount)
		for _, f := range figs {
			index[f].Amount.Set(f.safe)
			remaining.Sub(remaining, f.safe)
		}
		for _, f := range sortByNetDesc(figs) {
			if remaining.Sign() == 0 {
				break
			}
			spare := new(big.Int).Sub(f.net, index[f].Amount)
			if spare.Sign() <= 0 {
				continue
			}
			if spare.Cmp(remaining) > 0 {
				spare = new(big.Int).Set(remaining)
			}
			index[f].Amount.Add(index[f].Amount, spare)
			remaining.Sub(remaining, spare)
		}
		if remaining.Sign() != 0 {
			return nil, errors.Errorf("unstake allocation incomplete: %v left of %v", remaining, amount)
		}
	}

	return allocs, nil
}

// evenSplitFits reports whether every eligible node safely supports an even
// share of the request, with the richest additionally absorbing the rich/poor
// gap and the rounding remainder.
func (d *Distributor) evenSplitFits(figs []*nodeFigures, richest *nodeFigures, amount, gap *big.Int, n int64) bool {
	even := new(big.Int).Sub(amount, gap)
	if even.Sign() < 0 {
		return false
	}
	even.Div(even, big.NewInt(n))
	richShare := new(big.Int).Set(amount)
	for _, f := range figs {
		if f == richest {
			continue
		}
		if f.safe.Cmp(even) < 0 {
			return false
		}
		richShare.Sub(richShare, even)
	}
	return richest.safe.Cmp(richShare) >= 0
}

func sortBySafeDesc(figs []*nodeFigures) []*nodeFigures {
	sorted := append([]*nodeFigures(nil), figs...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].safe.Cmp(sorted[j-1].safe) > 0; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return sorted
}

func sortByNetDesc(figs []*nodeFigures) []*nodeFigures {
	sorted := append([]*nodeFigures(nil), figs...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].net.Cmp(sorted[j-1].net) > 0; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return sorted
}
