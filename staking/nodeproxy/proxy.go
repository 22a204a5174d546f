// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package nodeproxy mediates all value transfer between the pool and one
// physical staking node. A proxy shares a single physical staking position
// between the node operator's own stake and the pool's (protocol) stake, and
// tracks the in-flight withdrawal requests it has submitted on behalf of
// each user.
package nodeproxy

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/stakewell/stakewell/log"
	"github.com/stakewell/stakewell/staking/reverts"
)

var logger = log.WithContext("pkg", "nodeproxy")

// infoCacheSize bounds the per-proxy cache of terminal withdrawal lookups.
const infoCacheSize = 1024

type withdrawal struct {
	physicalID  uint64
	amount      *big.Int
	claimableAt uint64
}

// Proxy tracks one node's stake split and its per-user withdrawal queues.
//
// Invariant: pendingUnstake <= protocolStake at all times.
type Proxy struct {
	node  PhysicalNode
	relay ValueRelay
	addr  common.Address

	operatorStake  *big.Int
	operatorReward *big.Int
	protocolStake  *big.Int
	protocolReward *big.Int
	pendingUnstake *big.Int
	disconnected   bool

	// operator earns no reward share below this floor
	minOperatorStake *big.Int

	queues  map[common.Address][]*withdrawal
	cursors map[common.Address]int

	infoCache *lru.Cache
}

// New creates a proxy over the given physical node. addr is the address the
// proxy receives value at, used as recipient for relay and withdrawal calls.
func New(node PhysicalNode, relay ValueRelay, addr common.Address, minOperatorStake *big.Int) *Proxy {
	cache, _ := lru.New(infoCacheSize)
	return &Proxy{
		node:             node,
		relay:            relay,
		addr:             addr,
		operatorStake:    new(big.Int),
		operatorReward:   new(big.Int),
		protocolStake:    new(big.Int),
		protocolReward:   new(big.Int),
		pendingUnstake:   new(big.Int),
		minOperatorStake: new(big.Int).Set(minOperatorStake),
		queues:           make(map[common.Address][]*withdrawal),
		cursors:          make(map[common.Address]int),
		infoCache:        cache,
	}
}

// Address returns the proxy's receiving address.
func (p *Proxy) Address() common.Address {
	return p.addr
}

// OperatorStake returns the gross operator-owned stake.
func (p *Proxy) OperatorStake() *big.Int {
	return new(big.Int).Set(p.operatorStake)
}

// ProtocolStake returns the gross pool-owned stake.
func (p *Proxy) ProtocolStake() *big.Int {
	return new(big.Int).Set(p.protocolStake)
}

// PendingUnstake returns the total amount of submitted, unfinalized withdrawals.
func (p *Proxy) PendingUnstake() *big.Int {
	return new(big.Int).Set(p.pendingUnstake)
}

// NetProtocolStake returns protocol stake minus pending withdrawals.
func (p *Proxy) NetProtocolStake() *big.Int {
	return new(big.Int).Sub(p.protocolStake, p.pendingUnstake)
}

// AccruedRewards returns the running totals of split rewards.
func (p *Proxy) AccruedRewards() (operator, protocol *big.Int) {
	return new(big.Int).Set(p.operatorReward), new(big.Int).Set(p.protocolReward)
}

func (p *Proxy) Disconnected() bool {
	return p.disconnected
}

// SetDisconnected flags the proxy's physical node as gone. Queued withdrawals
// of a disconnected node are treated as expired for everyone but the allocator.
func (p *Proxy) SetDisconnected(disconnected bool) {
	p.disconnected = disconnected
}

// Stake locks pool funds into the physical node.
func (p *Proxy) Stake(amount *big.Int) error {
	if amount.Sign() <= 0 {
		return reverts.New("zero amount")
	}
	if err := p.node.Stake(amount); err != nil {
		return errors.Wrap(err, "node stake")
	}
	p.protocolStake.Add(p.protocolStake, amount)
	return nil
}

// StakeOperator locks operator-owned funds into the physical node.
func (p *Proxy) StakeOperator(amount *big.Int) error {
	if amount.Sign() <= 0 {
		return reverts.New("zero amount")
	}
	if err := p.node.Stake(amount); err != nil {
		return errors.Wrap(err, "node stake")
	}
	p.operatorStake.Add(p.operatorStake, amount)
	return nil
}

// ClaimReward pulls the node's accrued reward through the value relay and
// splits it pro-rata between operator stake and protocol stake. Operators
// below the minimum stake floor are treated as non-contributing and receive
// nothing.
func (p *Proxy) ClaimReward() (operatorShare, protocolShare *big.Int, err error) {
	reward, err := p.relay.Withdraw(p.addr)
	if err != nil {
		return nil, nil, errors.Wrap(err, "relay withdraw")
	}
	if reward == nil || reward.Sign() <= 0 {
		return new(big.Int), new(big.Int), nil
	}

	operatorShare = new(big.Int)
	if p.operatorStake.Cmp(p.minOperatorStake) >= 0 {
		total := new(big.Int).Add(p.operatorStake, p.protocolStake)
		if total.Sign() > 0 {
			operatorShare.Mul(reward, p.operatorStake)
			operatorShare.Div(operatorShare, total)
		}
	}
	protocolShare = new(big.Int).Sub(reward, operatorShare)

	p.operatorReward.Add(p.operatorReward, operatorShare)
	p.protocolReward.Add(p.protocolReward, protocolShare)

	logger.Debug("claimed node reward", "proxy", p.addr, "reward", reward,
		"operator", operatorShare, "protocol", protocolShare)
	return operatorShare, protocolShare, nil
}

// Unstake submits a withdrawal of pool funds to the physical node and
// enqueues the resulting request under the given user.
func (p *Proxy) Unstake(user common.Address, amount *big.Int) (claimableAt uint64, err error) {
	if amount.Sign() <= 0 {
		return 0, reverts.New("zero amount")
	}
	avail := p.NetProtocolStake()
	if amount.Cmp(avail) > 0 {
		return 0, reverts.New("insufficient unstakeable balance")
	}

	// debit before yielding control to the node
	p.pendingUnstake.Add(p.pendingUnstake, amount)

	id, err := p.node.SubmitWithdrawal(p.addr, amount)
	if err != nil {
		p.pendingUnstake.Sub(p.pendingUnstake, amount)
		return 0, errors.Wrap(err, "submit withdrawal")
	}
	info, err := p.node.WithdrawalInfo(id)
	if err != nil {
		p.pendingUnstake.Sub(p.pendingUnstake, amount)
		return 0, errors.Wrap(err, "withdrawal info")
	}

	p.queues[user] = append(p.queues[user], &withdrawal{
		physicalID:  id,
		amount:      new(big.Int).Set(amount),
		claimableAt: info.ClaimableAt,
	})
	return info.ClaimableAt, nil
}

// ReassignLast moves the newest unclaimed withdrawal from one queue to
// another. The allocator uses it to take over a submitted withdrawal it can
// no longer attribute to the original user.
func (p *Proxy) ReassignLast(from, to common.Address) error {
	queue := p.queues[from]
	if p.cursors[from] >= len(queue) {
		return errors.New("no unclaimed withdrawal to reassign")
	}
	last := queue[len(queue)-1]
	p.queues[from] = queue[:len(queue)-1]
	p.queues[to] = append(p.queues[to], last)
	logger.Debug("reassigned withdrawal", "proxy", p.addr, "from", from, "to", to, "amount", last.amount)
	return nil
}

// ClaimUnstaked walks the user's queue from the first unclaimed entry while
// entries are claim-eligible (claimableAt <= now and <= timeLimit), finalizing
// each against the physical node. The queue is time-ordered, so the walk
// stops at the first entry not yet eligible. At most limit entries are
// processed per call; the remainder waits for the next call.
//
// Success moves the entry's value out of the node; a closed claim window
// ("expired") keeps the funds staked and grants nothing. A disconnected
// proxy reports every entry as expired without touching the physical node,
// unless the caller is the allocator itself.
func (p *Proxy) ClaimUnstaked(
	user common.Address,
	timeLimit uint64,
	now uint64,
	limit int,
	allocator bool,
) (claimed, expired *big.Int, err error) {
	claimed = new(big.Int)
	expired = new(big.Int)

	queue := p.queues[user]
	i := p.cursors[user]
	processed := 0

	for ; i < len(queue) && processed < limit; i++ {
		entry := queue[i]

		if p.disconnected && !allocator {
			// the node is gone; its pending withdrawals can never transfer
			p.pendingUnstake.Sub(p.pendingUnstake, entry.amount)
			expired.Add(expired, entry.amount)
			processed++
			continue
		}

		if entry.claimableAt > now || entry.claimableAt > timeLimit {
			break
		}

		// settle our accounting before the external call
		p.pendingUnstake.Sub(p.pendingUnstake, entry.amount)

		state, execErr := p.node.ExecuteWithdrawal(entry.physicalID)
		if execErr != nil {
			p.pendingUnstake.Add(p.pendingUnstake, entry.amount)
			return nil, nil, errors.Wrap(execErr, "execute withdrawal")
		}

		switch state {
		case WithdrawalTransferred:
			p.protocolStake.Sub(p.protocolStake, entry.amount)
			claimed.Add(claimed, entry.amount)
		case WithdrawalExpired:
			// funds reverted to the staking position
			expired.Add(expired, entry.amount)
		default:
			return nil, nil, errors.Errorf("withdrawal %d finalized in state %v", entry.physicalID, state)
		}
		p.cacheTerminal(entry.physicalID, entry.amount, entry.claimableAt, state)
		processed++
	}
	p.cursors[user] = i

	return claimed, expired, nil
}

// PendingCount returns how many of the user's queue entries are not yet finalized.
func (p *Proxy) PendingCount(user common.Address) int {
	return len(p.queues[user]) - p.cursors[user]
}

// Withdrawal returns the current view of a submitted withdrawal, serving
// finalized entries from cache.
func (p *Proxy) Withdrawal(physicalID uint64) (*WithdrawalInfo, error) {
	if cached, ok := p.infoCache.Get(physicalID); ok {
		return cached.(*WithdrawalInfo), nil
	}
	info, err := p.node.WithdrawalInfo(physicalID)
	if err != nil {
		return nil, errors.Wrap(err, "withdrawal info")
	}
	if info.State != WithdrawalPending {
		p.infoCache.Add(physicalID, info)
	}
	return info, nil
}

func (p *Proxy) cacheTerminal(id uint64, amount *big.Int, claimableAt uint64, state WithdrawalState) {
	p.infoCache.Add(id, &WithdrawalInfo{
		Recipient:   p.addr,
		Amount:      new(big.Int).Set(amount),
		ClaimableAt: claimableAt,
		State:       state,
	})
}
