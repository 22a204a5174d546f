// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package distributor_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/stakewell/stakewell/staking/distributor"
	"github.com/stakewell/stakewell/staking/nodeproxy"
	"github.com/stakewell/stakewell/staking/registry"
	"github.com/stakewell/stakewell/staking/simnode"
)

const (
	testLockup = 100
	testToken  = "SWT"
)

var (
	allocAddr    = common.BytesToAddress([]byte("test-allocator"))
	treasuryAddr = common.BytesToAddress([]byte{0xd1})
	vaultAddr    = common.BytesToAddress([]byte{0xe1})
	taxAddr      = common.BytesToAddress([]byte{0xf1})
	userAddr     = common.BytesToAddress([]byte{0xaa})
)

// payment is one recorded disbursement.
type payment struct {
	token  string
	amount *big.Int
	to     common.Address
	reason string
}

type recordLog struct {
	entries []payment
}

func (r *recordLog) Record(token string, amount *big.Int, to common.Address, reason string) error {
	r.entries = append(r.entries, payment{token, new(big.Int).Set(amount), to, reason})
	return nil
}

func (r *recordLog) total(to common.Address, reason string) *big.Int {
	sum := new(big.Int)
	for _, e := range r.entries {
		if e.to == to && e.reason == reason {
			sum.Add(sum, e.amount)
		}
	}
	return sum
}

type fakeMinter struct {
	increased *big.Int
	minted    map[common.Address]*big.Int
}

func newFakeMinter() *fakeMinter {
	return &fakeMinter{increased: new(big.Int), minted: make(map[common.Address]*big.Int)}
}

func (m *fakeMinter) IncreaseTotalValue(amount *big.Int) error {
	m.increased.Add(m.increased, amount)
	return nil
}

func (m *fakeMinter) MintValue(holder common.Address, value *big.Int) error {
	held, ok := m.minted[holder]
	if !ok {
		held = new(big.Int)
		m.minted[holder] = held
	}
	held.Add(held, value)
	return nil
}

type fixture struct {
	t   *testing.T
	reg *registry.Registry
	d   *distributor.Distributor

	now    uint64
	minter *fakeMinter
	log    *recordLog
	relays []*simnode.Relay

	nextAddr byte
}

func defaultConfig() distributor.Config {
	return distributor.Config{
		FeeRate:               2000,
		FeeDistribution:       distributor.FeeDistribution{Operators: 50, Treasury: 20, Vault: 30},
		MinOperateThreshold:   new(big.Int),
		UnstakeSplitThreshold: big.NewInt(5),
		LockupPeriod:          testLockup,
		ClaimBatchLimit:       10,
		Treasury:              treasuryAddr,
		Vault:                 vaultAddr,
		Token:                 testToken,
	}
}

func newFixture(t *testing.T, cfg distributor.Config) *fixture {
	reg := registry.New()
	log := &recordLog{}
	d, err := distributor.New(reg, cfg, log, allocAddr)
	require.NoError(t, err)
	minter := newFakeMinter()
	d.SetMinter(minter)

	return &fixture{
		t:        t,
		reg:      reg,
		d:        d,
		now:      1_000_000,
		minter:   minter,
		log:      log,
		nextAddr: 1,
	}
}

// addNode registers a node whose simulated withdrawal delay and window both
// equal the lockup period, keeping the physical timing aligned with the
// request queue.
func (f *fixture) addNode(name string, operatorStake, protocolStake int64) (*registry.Node, *simnode.Relay) {
	addr := common.BytesToAddress([]byte{f.nextAddr})
	operator := common.BytesToAddress([]byte{0x80 + f.nextAddr})
	f.nextAddr++

	node := simnode.NewNode(func() uint64 { return f.now }, testLockup, testLockup)
	relay := simnode.NewRelay()
	relay.Authorize(addr)
	f.relays = append(f.relays, relay)

	proxy := nodeproxy.New(node, relay, addr, new(big.Int))
	if operatorStake > 0 {
		require.NoError(f.t, proxy.StakeOperator(big.NewInt(operatorStake)))
	}
	if protocolStake > 0 {
		require.NoError(f.t, proxy.Stake(big.NewInt(protocolStake)))
	}

	id, err := f.reg.Register(name, proxy, operator)
	require.NoError(f.t, err)
	n, err := f.reg.Get(id)
	require.NoError(f.t, err)
	return n, relay
}

// amounts flattens an allocation list into per-node-id amounts.
func amounts(allocs []*distributor.Allocation) map[uint64]int64 {
	out := make(map[uint64]int64, len(allocs))
	for _, a := range allocs {
		out[a.Node.ID] = a.Amount.Int64()
	}
	return out
}
