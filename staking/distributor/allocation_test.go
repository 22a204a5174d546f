// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package distributor_test

import (
	"math/big"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakewell/stakewell/staking/reverts"
)

func TestStakeDistributionNoNodes(t *testing.T) {
	f := newFixture(t, defaultConfig())

	_, err := f.d.ComputeStakeDistribution(big.NewInt(100))
	assert.True(t, reverts.IsRevertErr(err))

	_, err = f.d.ComputeStakeDistribution(big.NewInt(0))
	assert.True(t, reverts.IsRevertErr(err))
}

func TestStakeDistributionShortfallFirst(t *testing.T) {
	cfg := defaultConfig()
	cfg.MinOperateThreshold = big.NewInt(100)
	f := newFixture(t, cfg)
	n1, _ := f.addNode("solo", 0, 0)

	// the whole deposit lands on the only node: threshold fill plus surplus
	allocs, err := f.d.ComputeStakeDistribution(big.NewInt(150))
	require.NoError(t, err)
	assert.Equal(t, int64(150), amounts(allocs)[n1.ID])
}

func TestStakeDistributionShortfallPicksSmallest(t *testing.T) {
	cfg := defaultConfig()
	cfg.MinOperateThreshold = big.NewInt(100)
	f := newFixture(t, cfg)
	n1, _ := f.addNode("far", 0, 10)  // shortfall 90
	n2, _ := f.addNode("near", 0, 70) // shortfall 30

	allocs, err := f.d.ComputeStakeDistribution(big.NewInt(20))
	require.NoError(t, err)
	got := amounts(allocs)
	// the smallest shortfall fills first, nothing left to spread
	assert.Equal(t, int64(0), got[n1.ID])
	assert.Equal(t, int64(20), got[n2.ID])
}

func TestStakeDistributionEvenWithConvergence(t *testing.T) {
	f := newFixture(t, defaultConfig())
	rich, _ := f.addNode("rich", 0, 100)
	poor, _ := f.addNode("poor", 0, 40)

	allocs, err := f.d.ComputeStakeDistribution(big.NewInt(30))
	require.NoError(t, err)
	got := amounts(allocs)
	assert.Equal(t, int64(30), got[rich.ID]+got[poor.ID])
	// the even share is capped by the rich/poor gap, so the poorer node
	// never receives less than the richer one
	assert.True(t, got[poor.ID] >= got[rich.ID])
}

func TestStakeDistributionEqualNodes(t *testing.T) {
	f := newFixture(t, defaultConfig())
	n1, _ := f.addNode("a", 0, 100)
	n2, _ := f.addNode("b", 0, 100)

	// zero gap caps the even share at zero; everything converges on one node
	allocs, err := f.d.ComputeStakeDistribution(big.NewInt(50))
	require.NoError(t, err)
	got := amounts(allocs)
	assert.Equal(t, int64(50), got[n1.ID]+got[n2.ID])
	assert.True(t, got[n1.ID] == 50 || got[n2.ID] == 50)
}

func TestUnstakeDistributionInsufficient(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.addNode("a", 0, 100)
	f.addNode("b", 0, 50)

	_, err := f.d.ComputeUnstakeDistribution(big.NewInt(151))
	assert.True(t, reverts.IsRevertErr(err))

	_, err = f.d.ComputeUnstakeDistribution(big.NewInt(150))
	assert.NoError(t, err)
}

func TestUnstakeDistributionBlockedNodes(t *testing.T) {
	f := newFixture(t, defaultConfig())
	n1, _ := f.addNode("open", 0, 100)
	n2, _ := f.addNode("blocked", 0, 500)
	require.NoError(t, f.reg.SetUnstakingBlocked(n2.ID, true))

	// the blocked node's balance is invisible to withdrawals
	_, err := f.d.ComputeUnstakeDistribution(big.NewInt(101))
	assert.True(t, reverts.IsRevertErr(err))

	allocs, err := f.d.ComputeUnstakeDistribution(big.NewInt(100))
	require.NoError(t, err)
	got := amounts(allocs)
	assert.Equal(t, int64(100), got[n1.ID])
	_, listed := got[n2.ID]
	assert.False(t, listed)
}

func TestUnstakeDistributionSmallSingleNode(t *testing.T) {
	f := newFixture(t, defaultConfig())
	rich, _ := f.addNode("rich", 0, 10)
	poor, _ := f.addNode("poor", 0, 4)

	// a small request comes wholly from the richest node
	allocs, err := f.d.ComputeUnstakeDistribution(big.NewInt(2))
	require.NoError(t, err)
	got := amounts(allocs)
	assert.Equal(t, int64(2), got[rich.ID])
	assert.Equal(t, int64(0), got[poor.ID])
}

func TestUnstakeDistributionLargeSplitsDespiteFit(t *testing.T) {
	f := newFixture(t, defaultConfig())
	rich, _ := f.addNode("rich", 0, 100)
	poor, _ := f.addNode("poor", 0, 90)

	// the richest could cover everything, but past the split threshold the
	// request spreads so no single queue drains
	allocs, err := f.d.ComputeUnstakeDistribution(big.NewInt(100))
	require.NoError(t, err)
	got := amounts(allocs)
	assert.Equal(t, int64(55), got[rich.ID])
	assert.Equal(t, int64(45), got[poor.ID])
}

func TestUnstakeDistributionEvenSplit(t *testing.T) {
	f := newFixture(t, defaultConfig())
	rich, _ := f.addNode("rich", 0, 60)
	poor, _ := f.addNode("poor", 0, 50)

	allocs, err := f.d.ComputeUnstakeDistribution(big.NewInt(80))
	require.NoError(t, err)
	got := amounts(allocs)
	assert.Equal(t, int64(45), got[rich.ID])
	assert.Equal(t, int64(35), got[poor.ID])
}

func TestUnstakeDistributionProportional(t *testing.T) {
	f := newFixture(t, defaultConfig())
	n1, _ := f.addNode("a", 0, 90)
	n2, _ := f.addNode("b", 0, 30)
	n3, _ := f.addNode("c", 0, 30)

	// the even split would overdraw the richest, so the pull goes
	// proportional to safe capacity with dust settling richest-first
	allocs, err := f.d.ComputeUnstakeDistribution(big.NewInt(149))
	require.NoError(t, err)
	got := amounts(allocs)
	assert.Equal(t, int64(90), got[n1.ID])
	assert.Equal(t, int64(30), got[n2.ID])
	assert.Equal(t, int64(29), got[n3.ID])
}

func TestUnstakeDistributionDrawdown(t *testing.T) {
	cfg := defaultConfig()
	cfg.MinOperateThreshold = big.NewInt(50)
	f := newFixture(t, cfg)
	n1, _ := f.addNode("a", 0, 100) // safe 50
	n2, _ := f.addNode("b", 0, 40)  // safe 0

	// safe capacity is 50, the rest draws both nodes below the threshold
	allocs, err := f.d.ComputeUnstakeDistribution(big.NewInt(120))
	require.NoError(t, err)
	got := amounts(allocs)
	assert.Equal(t, int64(100), got[n1.ID])
	assert.Equal(t, int64(20), got[n2.ID])
}

func TestUnstakeDistributionOperatorCoversReserve(t *testing.T) {
	cfg := defaultConfig()
	cfg.MinOperateThreshold = big.NewInt(50)
	f := newFixture(t, cfg)
	// the operator's own stake covers the threshold, the whole protocol
	// stake is safe
	n1, _ := f.addNode("covered", 50, 100)

	allocs, err := f.d.ComputeUnstakeDistribution(big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, int64(100), amounts(allocs)[n1.ID])
}

// TestUnstakeDistributionComplete fuzzes node balances and request sizes and
// checks the allocation laws: the full amount is split, no node is pulled
// past its net stake, and rejection happens exactly when the pool as a whole
// cannot cover the request.
func TestUnstakeDistributionComplete(t *testing.T) {
	type scenario struct {
		Nets      [5]uint16
		Threshold uint16
		Amount    uint32
	}

	fz := fuzz.NewWithSeed(42)
	for round := 0; round < 200; round++ {
		var s scenario
		fz.Fuzz(&s)

		cfg := defaultConfig()
		cfg.MinOperateThreshold = big.NewInt(int64(s.Threshold % 500))
		f := newFixture(t, cfg)

		sumNet := int64(0)
		nets := make(map[uint64]int64)
		for i, net := range s.Nets {
			n, _ := f.addNode(string(rune('a'+i)), 0, int64(net))
			nets[n.ID] = int64(net)
			sumNet += int64(net)
		}
		amount := int64(s.Amount%70000) + 1

		allocs, err := f.d.ComputeUnstakeDistribution(big.NewInt(amount))
		if amount > sumNet {
			require.Error(t, err, "round %d", round)
			continue
		}
		require.NoError(t, err, "round %d", round)

		total := int64(0)
		for id, a := range amounts(allocs) {
			require.True(t, a >= 0, "round %d: negative allocation", round)
			require.True(t, a <= nets[id], "round %d: node %d overdrawn", round, id)
			total += a
		}
		require.Equal(t, amount, total, "round %d: incomplete allocation", round)
	}
}

// TestStakeDistributionComplete is the stake-side counterpart: deposits are
// always fully allocated with nothing negative.
func TestStakeDistributionComplete(t *testing.T) {
	type scenario struct {
		Nets      [4]uint16
		Threshold uint16
		Amount    uint32
	}

	fz := fuzz.NewWithSeed(7)
	for round := 0; round < 200; round++ {
		var s scenario
		fz.Fuzz(&s)

		cfg := defaultConfig()
		cfg.MinOperateThreshold = big.NewInt(int64(s.Threshold % 500))
		f := newFixture(t, cfg)
		for i, net := range s.Nets {
			f.addNode(string(rune('a'+i)), 0, int64(net))
		}
		amount := int64(s.Amount%70000) + 1

		allocs, err := f.d.ComputeStakeDistribution(big.NewInt(amount))
		require.NoError(t, err, "round %d", round)

		total := int64(0)
		for _, a := range amounts(allocs) {
			require.True(t, a >= 0, "round %d: negative allocation", round)
			total += a
		}
		require.Equal(t, amount, total, "round %d: incomplete allocation", round)
	}
}
