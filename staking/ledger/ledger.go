// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package ledger maintains the share-based proportional-ownership accounting.
// Holders own shares; the value a holder can claim is derived at query time
// from a single value-per-share ratio. The ratio moves only when reward is
// re-staked, so balances track pool earnings without ever rebasing the
// per-holder share figures.
package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/stakewell/stakewell/log"
	"github.com/stakewell/stakewell/staking/guard"
	"github.com/stakewell/stakewell/staking/reverts"
)

var logger = log.WithContext("pkg", "ledger")

// Scale is the fixed-point base of the value-per-share ratio.
var Scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil)

// Allocator is the ledger's only view of the stake distributor. The ledger
// forwards raw value through it and never reaches into node internals.
type Allocator interface {
	DistributeReward(now uint64) error
	Stake(amount *big.Int) error
	Unstake(to common.Address, amount *big.Int, now uint64) (seq int, err error)
	Claim(user common.Address, now uint64) (claimed, expired *big.Int, err error)
}

// Ledger owns all share balances. No other component mutates them.
//
// Invariant: sum(shares[*]) == totalShares.
type Ledger struct {
	totalShares *big.Int
	totalValue  *big.Int
	ratio       *big.Int // value per share, Scale-based fixed point

	shares    map[common.Address]*big.Int
	allocator Allocator

	entry guard.Guard
}

func New(allocator Allocator) *Ledger {
	return &Ledger{
		totalShares: new(big.Int),
		totalValue:  new(big.Int),
		ratio:       new(big.Int).Set(Scale), // 1:1 until first reward restake
		shares:      make(map[common.Address]*big.Int),
		allocator:   allocator,
	}
}

// SetAllocator wires the distributor after construction. The two components
// reference each other through narrow interfaces only.
func (l *Ledger) SetAllocator(allocator Allocator) {
	l.allocator = allocator
}

// SharesForValue converts value to shares, rounding up. Minting and
// unstake-debits both round against the holder so issued shares can never
// outgrow totalValue.
func (l *Ledger) SharesForValue(value *big.Int) *big.Int {
	n := new(big.Int).Mul(value, Scale)
	n.Add(n, new(big.Int).Sub(l.ratio, big.NewInt(1)))
	return n.Div(n, l.ratio)
}

// ValueForShares converts shares to value, rounding down.
func (l *Ledger) ValueForShares(shares *big.Int) *big.Int {
	n := new(big.Int).Mul(shares, l.ratio)
	return n.Div(n, Scale)
}

// Stake converts deposited value into shares for holder and forwards the
// value to the allocator. Reward distribution runs first so the mint executes
// at a fresh ratio.
func (l *Ledger) Stake(holder common.Address, value *big.Int, now uint64) error {
	release, err := l.entry.Enter()
	if err != nil {
		return err
	}
	defer release()

	if value.Sign() <= 0 {
		return reverts.New("zero amount")
	}

	if err := l.allocator.DistributeReward(now); err != nil {
		return errors.Wrap(err, "distribute reward")
	}

	// credit before yielding to the allocator, undone if allocation fails
	minted := l.mint(holder, value)
	l.totalValue.Add(l.totalValue, value)

	if err := l.allocator.Stake(value); err != nil {
		held := l.shares[holder]
		held.Sub(held, minted)
		l.totalShares.Sub(l.totalShares, minted)
		l.totalValue.Sub(l.totalValue, value)
		return err
	}

	logger.Info("staked", "holder", holder, "value", value, "shares", minted)
	return nil
}

// Unstake burns the shares equivalent to value from the holder and forwards
// the withdrawal to the allocator, which queues the delayed claim.
func (l *Ledger) Unstake(holder common.Address, value *big.Int, now uint64) error {
	release, err := l.entry.Enter()
	if err != nil {
		return err
	}
	defer release()

	if value.Sign() <= 0 {
		return reverts.New("zero amount")
	}

	if err := l.allocator.DistributeReward(now); err != nil {
		return errors.Wrap(err, "distribute reward")
	}

	burned := l.SharesForValue(value)
	held, ok := l.shares[holder]
	if !ok || burned.Cmp(held) > 0 {
		return reverts.New("insufficient shares")
	}

	// debit before yielding to the allocator
	held.Sub(held, burned)
	l.totalShares.Sub(l.totalShares, burned)
	l.totalValue.Sub(l.totalValue, value)

	seq, err := l.allocator.Unstake(holder, value, now)
	if err != nil {
		// the allocation failed atomically, restore the burn
		held.Add(held, burned)
		l.totalShares.Add(l.totalShares, burned)
		l.totalValue.Add(l.totalValue, value)
		return err
	}

	logger.Info("unstaked", "holder", holder, "value", value, "shares", burned, "seq", seq)
	return nil
}

// Claim settles the user's matured withdrawal requests. Expired portions come
// back as freshly minted shares instead of a payout.
func (l *Ledger) Claim(user common.Address, now uint64) (claimed, expired *big.Int, err error) {
	release, err := l.entry.Enter()
	if err != nil {
		return nil, nil, err
	}
	defer release()

	return l.allocator.Claim(user, now)
}

// Transfer moves shares directly between holders.
func (l *Ledger) Transfer(from, to common.Address, shares *big.Int) error {
	release, err := l.entry.Enter()
	if err != nil {
		return err
	}
	defer release()

	if shares.Sign() <= 0 {
		return reverts.New("zero amount")
	}
	if to == (common.Address{}) {
		return reverts.New("zero recipient address")
	}
	held, ok := l.shares[from]
	if !ok || shares.Cmp(held) > 0 {
		return reverts.New("insufficient shares")
	}

	held.Sub(held, shares)
	dst, ok := l.shares[to]
	if !ok {
		dst = new(big.Int)
		l.shares[to] = dst
	}
	dst.Add(dst, shares)

	logger.Info("transferred shares", "from", from, "to", to, "shares", shares)
	return nil
}

// IncreaseTotalValue adds re-staked reward to the pool's value and updates
// the ratio. This is the only operation that moves the ratio. Restricted to
// the allocator.
func (l *Ledger) IncreaseTotalValue(amount *big.Int) error {
	if amount.Sign() < 0 {
		return reverts.New("negative amount")
	}
	l.totalValue.Add(l.totalValue, amount)
	if l.totalShares.Sign() > 0 {
		l.ratio.Mul(l.totalValue, Scale)
		l.ratio.Div(l.ratio, l.totalShares)
	}
	logger.Debug("increased total value", "amount", amount, "totalValue", l.totalValue, "ratio", l.ratio)
	return nil
}

// MintValue re-credits expired withdrawal value as shares at the current
// ratio: the holder regains proportional exposure, not the literal original
// amount. Restricted to the allocator.
func (l *Ledger) MintValue(holder common.Address, value *big.Int) error {
	if value.Sign() <= 0 {
		return reverts.New("zero amount")
	}
	minted := l.mint(holder, value)
	l.totalValue.Add(l.totalValue, value)
	logger.Info("re-minted expired value", "holder", holder, "value", value, "shares", minted)
	return nil
}

func (l *Ledger) mint(holder common.Address, value *big.Int) *big.Int {
	minted := l.SharesForValue(value)
	held, ok := l.shares[holder]
	if !ok {
		held = new(big.Int)
		l.shares[holder] = held
	}
	held.Add(held, minted)
	l.totalShares.Add(l.totalShares, minted)
	return minted
}

// BalanceOf reports the holder's current value, derived from shares at the
// ratio in force now.
func (l *Ledger) BalanceOf(holder common.Address) *big.Int {
	held, ok := l.shares[holder]
	if !ok {
		return new(big.Int)
	}
	return l.ValueForShares(held)
}

// SharesOf returns the holder's raw share balance.
func (l *Ledger) SharesOf(holder common.Address) *big.Int {
	held, ok := l.shares[holder]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(held)
}

func (l *Ledger) TotalShares() *big.Int {
	return new(big.Int).Set(l.totalShares)
}

func (l *Ledger) TotalValue() *big.Int {
	return new(big.Int).Set(l.totalValue)
}

// Ratio returns the current value-per-share conversion factor.
func (l *Ledger) Ratio() *big.Int {
	return new(big.Int).Set(l.ratio)
}
