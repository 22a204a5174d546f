// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakewell/stakewell/staking/reverts"
)

type fakeAllocator struct {
	staked     *big.Int
	unstaked   *big.Int
	seq        int
	stakeErr   error
	unstakeErr error
}

func newFakeAllocator() *fakeAllocator {
	return &fakeAllocator{staked: new(big.Int), unstaked: new(big.Int)}
}

func (f *fakeAllocator) DistributeReward(now uint64) error { return nil }

func (f *fakeAllocator) Stake(amount *big.Int) error {
	if f.stakeErr != nil {
		return f.stakeErr
	}
	f.staked.Add(f.staked, amount)
	return nil
}

func (f *fakeAllocator) Unstake(to common.Address, amount *big.Int, now uint64) (int, error) {
	if f.unstakeErr != nil {
		return 0, f.unstakeErr
	}
	f.unstaked.Add(f.unstaked, amount)
	f.seq++
	return f.seq, nil
}

func (f *fakeAllocator) Claim(user common.Address, now uint64) (*big.Int, *big.Int, error) {
	return new(big.Int), new(big.Int), nil
}

var (
	alice = common.BytesToAddress([]byte{0xaa})
	bob   = common.BytesToAddress([]byte{0xbb})
)

func TestInitialStake(t *testing.T) {
	alloc := newFakeAllocator()
	l := New(alloc)

	require.NoError(t, l.Stake(alice, big.NewInt(1000), 0))

	// 1:1 before the first reward restake
	assert.Equal(t, big.NewInt(1000), l.BalanceOf(alice))
	assert.Equal(t, new(big.Int).Mul(big.NewInt(1000), Scale), new(big.Int).Mul(l.SharesOf(alice), l.Ratio()))
	assert.Equal(t, big.NewInt(1000), l.TotalValue())
	assert.Equal(t, big.NewInt(1000), alloc.staked)

	err := l.Stake(alice, big.NewInt(0), 0)
	assert.True(t, reverts.IsRevertErr(err))
}

func TestRatioMovesOnlyOnRestake(t *testing.T) {
	alloc := newFakeAllocator()
	l := New(alloc)

	require.NoError(t, l.Stake(alice, big.NewInt(1000), 0))
	before := l.Ratio()

	require.NoError(t, l.Stake(bob, big.NewInt(500), 0))
	require.NoError(t, l.Unstake(bob, big.NewInt(200), 0))
	assert.Equal(t, before, l.Ratio(), "stake and unstake leave the ratio alone")

	// re-staked reward moves it
	require.NoError(t, l.IncreaseTotalValue(big.NewInt(130)))
	assert.Equal(t, 1, l.Ratio().Cmp(before))
	assert.Equal(t, big.NewInt(1430), l.TotalValue())

	// both holders appreciate proportionally, shares untouched
	aliceShares := l.SharesOf(alice)
	assert.Equal(t, 1, l.BalanceOf(alice).Cmp(big.NewInt(1000)))
	assert.Equal(t, aliceShares, l.SharesOf(alice))
}

func TestRoundingFavorsPool(t *testing.T) {
	alloc := newFakeAllocator()
	l := New(alloc)

	require.NoError(t, l.Stake(alice, big.NewInt(1000), 0))
	require.NoError(t, l.IncreaseTotalValue(big.NewInt(333)))

	// mint rounds shares up, balance derivation rounds value down
	for _, v := range []int64{1, 7, 999, 123456789} {
		value := big.NewInt(v)
		shares := l.SharesForValue(value)
		back := l.ValueForShares(shares)
		diff := new(big.Int).Sub(back, value)
		assert.True(t, diff.Sign() >= 0, "ceil mint can not undershoot")
		assert.True(t, diff.Cmp(big.NewInt(1)) <= 0, "round trip drift above one unit")
	}
}

func TestUnstakeInsufficientShares(t *testing.T) {
	alloc := newFakeAllocator()
	l := New(alloc)

	require.NoError(t, l.Stake(alice, big.NewInt(1000), 0))

	err := l.Unstake(alice, big.NewInt(1001), 0)
	assert.True(t, reverts.IsRevertErr(err))

	err = l.Unstake(bob, big.NewInt(1), 0)
	assert.True(t, reverts.IsRevertErr(err))
	assert.Equal(t, big.NewInt(1000), l.TotalValue())
}

func TestStakeRollback(t *testing.T) {
	alloc := newFakeAllocator()
	l := New(alloc)

	alloc.stakeErr = reverts.New("no active nodes")
	err := l.Stake(alice, big.NewInt(1000), 0)
	require.Error(t, err)

	// a rejected stake leaves no trace
	assert.Equal(t, new(big.Int), l.SharesOf(alice))
	assert.Equal(t, new(big.Int), l.BalanceOf(alice))
	assert.Equal(t, new(big.Int), l.TotalShares())
	assert.Equal(t, new(big.Int), l.TotalValue())

	// and the ledger accepts a later stake normally
	alloc.stakeErr = nil
	require.NoError(t, l.Stake(alice, big.NewInt(1000), 0))
	assert.Equal(t, big.NewInt(1000), l.BalanceOf(alice))
}

func TestUnstakeRollback(t *testing.T) {
	alloc := newFakeAllocator()
	l := New(alloc)

	require.NoError(t, l.Stake(alice, big.NewInt(1000), 0))
	sharesBefore := l.SharesOf(alice)

	alloc.unstakeErr = errors.New("allocation failed")
	err := l.Unstake(alice, big.NewInt(400), 0)
	require.Error(t, err)

	// the burn is restored in full
	assert.Equal(t, sharesBefore, l.SharesOf(alice))
	assert.Equal(t, big.NewInt(1000), l.TotalValue())
	assert.Equal(t, sharesBefore, l.TotalShares())
}

func TestUnstakeBurns(t *testing.T) {
	alloc := newFakeAllocator()
	l := New(alloc)

	require.NoError(t, l.Stake(alice, big.NewInt(1000), 0))
	require.NoError(t, l.Unstake(alice, big.NewInt(400), 0))

	assert.Equal(t, big.NewInt(600), l.BalanceOf(alice))
	assert.Equal(t, big.NewInt(600), l.TotalValue())
	assert.Equal(t, big.NewInt(400), alloc.unstaked)
}

func TestTransfer(t *testing.T) {
	alloc := newFakeAllocator()
	l := New(alloc)

	require.NoError(t, l.Stake(alice, big.NewInt(1000), 0))
	half := new(big.Int).Div(l.SharesOf(alice), big.NewInt(2))

	require.NoError(t, l.Transfer(alice, bob, half))
	assert.Equal(t, big.NewInt(500), l.BalanceOf(alice))
	assert.Equal(t, big.NewInt(500), l.BalanceOf(bob))

	err := l.Transfer(alice, common.Address{}, big.NewInt(1))
	assert.True(t, reverts.IsRevertErr(err))

	err = l.Transfer(bob, alice, new(big.Int).Add(half, big.NewInt(1)))
	assert.True(t, reverts.IsRevertErr(err))
}

func TestMintValueAtCurrentRatio(t *testing.T) {
	alloc := newFakeAllocator()
	l := New(alloc)

	require.NoError(t, l.Stake(alice, big.NewInt(1000), 0))
	require.NoError(t, l.IncreaseTotalValue(big.NewInt(1000))) // ratio doubles

	require.NoError(t, l.MintValue(bob, big.NewInt(500)))

	// bob holds value, not the original share count
	assert.Equal(t, big.NewInt(500), l.BalanceOf(bob))
	assert.Equal(t, -1, l.SharesOf(bob).Cmp(l.SharesForValue(big.NewInt(501))))
	assert.Equal(t, big.NewInt(2500), l.TotalValue())
}

func TestTotalsInvariant(t *testing.T) {
	alloc := newFakeAllocator()
	l := New(alloc)

	require.NoError(t, l.Stake(alice, big.NewInt(12345), 0))
	require.NoError(t, l.Stake(bob, big.NewInt(6789), 0))
	require.NoError(t, l.IncreaseTotalValue(big.NewInt(555)))
	require.NoError(t, l.Unstake(alice, big.NewInt(1000), 0))

	sum := new(big.Int).Add(l.SharesOf(alice), l.SharesOf(bob))
	assert.Equal(t, l.TotalShares(), sum)

	// derived balances never exceed the pool's value
	derived := new(big.Int).Add(l.BalanceOf(alice), l.BalanceOf(bob))
	assert.True(t, derived.Cmp(l.TotalValue()) <= 0)
}
