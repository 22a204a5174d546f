// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package distributor_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakewell/stakewell/staking/distributor"
	"github.com/stakewell/stakewell/staking/nodeproxy"
	"github.com/stakewell/stakewell/staking/simnode"
)

func TestUnstakeQueuesRequest(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.addNode("a", 0, 1000)

	seq, err := f.d.Unstake(userAddr, big.NewInt(300), f.now)
	require.NoError(t, err)
	assert.Equal(t, 1, seq)

	seq, err = f.d.Unstake(userAddr, big.NewInt(200), f.now)
	require.NoError(t, err)
	assert.Equal(t, 2, seq)

	assert.Equal(t, 2, f.d.RequestCount(userAddr))
	reqs := f.d.RequestPage(userAddr, 0, 0)
	require.Len(t, reqs, 2)
	assert.Equal(t, big.NewInt(200), reqs[0].Amount, "most recent first")
	assert.Equal(t, f.now+testLockup, reqs[0].ClaimableAt)
	assert.Equal(t, distributor.RequestUnclaimed, reqs[0].State)
}

func TestClaimLifecycle(t *testing.T) {
	f := newFixture(t, defaultConfig())
	n, _ := f.addNode("a", 0, 1000)

	_, err := f.d.Unstake(userAddr, big.NewInt(300), f.now)
	require.NoError(t, err)

	// nothing claimable inside the lockup
	claimable, count := f.d.ClaimableOf(userAddr, f.now)
	assert.Equal(t, int64(0), claimable.Int64())
	assert.Equal(t, 0, count)

	claimed, expired, err := f.d.Claim(userAddr, f.now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), claimed.Int64())
	assert.Equal(t, int64(0), expired.Int64())

	// inside the claim window the request pays out
	f.now += testLockup
	claimable, count = f.d.ClaimableOf(userAddr, f.now)
	assert.Equal(t, big.NewInt(300), claimable)
	assert.Equal(t, 1, count)

	claimed, expired, err = f.d.Claim(userAddr, f.now)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(300), claimed)
	assert.Equal(t, int64(0), expired.Int64())

	assert.Equal(t, big.NewInt(300), f.log.total(userAddr, "unstake claim"))
	assert.Equal(t, big.NewInt(700), n.Proxy.ProtocolStake())

	reqs := f.d.RequestPage(userAddr, 0, 0)
	assert.Equal(t, distributor.RequestClaimed, reqs[0].State)

	// settled requests never re-claim
	claimable, _ = f.d.ClaimableOf(userAddr, f.now)
	assert.Equal(t, int64(0), claimable.Int64())
	claimed, _, err = f.d.Claim(userAddr, f.now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), claimed.Int64())
}

func TestClaimExpiry(t *testing.T) {
	f := newFixture(t, defaultConfig())
	n, _ := f.addNode("a", 0, 1000)

	_, err := f.d.Unstake(userAddr, big.NewInt(300), f.now)
	require.NoError(t, err)

	// the claim window closes; the value converts back into shares
	f.now += 2 * testLockup
	claimed, expired, err := f.d.Claim(userAddr, f.now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), claimed.Int64())
	assert.Equal(t, big.NewInt(300), expired)

	assert.Equal(t, big.NewInt(300), f.minter.minted[userAddr])
	assert.Equal(t, int64(0), f.log.total(userAddr, "unstake claim").Int64())
	// the funds never left the node
	assert.Equal(t, big.NewInt(1000), n.Proxy.ProtocolStake())

	reqs := f.d.RequestPage(userAddr, 0, 0)
	assert.Equal(t, distributor.RequestExpired, reqs[0].State)
}

func TestClaimExpiredWindowEdge(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.addNode("a", 0, 1000)

	_, err := f.d.Unstake(userAddr, big.NewInt(100), f.now)
	require.NoError(t, err)

	// the last second of the window still claims
	f.now += 2*testLockup - 1
	claimed, expired, err := f.d.Claim(userAddr, f.now)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), claimed)
	assert.Equal(t, int64(0), expired.Int64())
}

func TestClaimBatchLimit(t *testing.T) {
	cfg := defaultConfig()
	cfg.ClaimBatchLimit = 2
	f := newFixture(t, cfg)
	f.addNode("a", 0, 1000)

	for i := 0; i < 5; i++ {
		_, err := f.d.Unstake(userAddr, big.NewInt(100), f.now)
		require.NoError(t, err)
	}

	f.now += testLockup
	claimed, _, err := f.d.Claim(userAddr, f.now)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(200), claimed)

	claimed, _, err = f.d.Claim(userAddr, f.now)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(200), claimed)

	claimed, _, err = f.d.Claim(userAddr, f.now)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), claimed)
}

func TestClaimSpansNodes(t *testing.T) {
	f := newFixture(t, defaultConfig())
	n1, _ := f.addNode("a", 0, 600)
	n2, _ := f.addNode("b", 0, 500)

	// large enough to split across both queues
	_, err := f.d.Unstake(userAddr, big.NewInt(1000), f.now)
	require.NoError(t, err)

	f.now += testLockup
	claimed, expired, err := f.d.Claim(userAddr, f.now)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), claimed)
	assert.Equal(t, int64(0), expired.Int64())

	left := new(big.Int).Add(n1.Proxy.ProtocolStake(), n2.Proxy.ProtocolStake())
	assert.Equal(t, big.NewInt(100), left)
}

func TestClaimFromDeactivatedNode(t *testing.T) {
	f := newFixture(t, defaultConfig())
	n, _ := f.addNode("a", 0, 1000)

	_, err := f.d.Unstake(userAddr, big.NewInt(300), f.now)
	require.NoError(t, err)

	// deactivation removes the node from allocation, not from settlement
	require.NoError(t, f.reg.SetActive(n.ID, false))

	f.now += testLockup
	claimed, _, err := f.d.Claim(userAddr, f.now)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(300), claimed)
}

func TestClaimDisconnectedNodeExpires(t *testing.T) {
	f := newFixture(t, defaultConfig())
	n, _ := f.addNode("a", 0, 1000)

	_, err := f.d.Unstake(userAddr, big.NewInt(300), f.now)
	require.NoError(t, err)

	n.Proxy.SetDisconnected(true)

	f.now += testLockup
	claimed, expired, err := f.d.Claim(userAddr, f.now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), claimed.Int64())
	assert.Equal(t, big.NewInt(300), expired)
	assert.Equal(t, big.NewInt(300), f.minter.minted[userAddr])
}

func TestRequestPagination(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.addNode("a", 0, 2000)

	for i := 1; i <= 5; i++ {
		_, err := f.d.Unstake(userAddr, big.NewInt(int64(i*100)), f.now)
		require.NoError(t, err)
	}

	// page 1 holds the most recent requests
	page := f.d.RequestPage(userAddr, 2, 1)
	require.Len(t, page, 2)
	assert.Equal(t, big.NewInt(500), page[0].Amount)
	assert.Equal(t, big.NewInt(400), page[1].Amount)

	page = f.d.RequestPage(userAddr, 2, 2)
	require.Len(t, page, 2)
	assert.Equal(t, big.NewInt(300), page[0].Amount)

	// an out-of-range page clamps to the last one
	page = f.d.RequestPage(userAddr, 2, 99)
	require.Len(t, page, 1)
	assert.Equal(t, big.NewInt(100), page[0].Amount)

	// page size zero returns the full history
	all := f.d.RequestPage(userAddr, 0, 0)
	require.Len(t, all, 5)
	assert.Equal(t, big.NewInt(500), all[0].Amount)
	assert.Equal(t, big.NewInt(100), all[4].Amount)

	assert.Nil(t, f.d.RequestPage(common.BytesToAddress([]byte{0x77}), 2, 1))
}

func TestUnstakeForDeregisterAndRestake(t *testing.T) {
	f := newFixture(t, defaultConfig())
	n1, _ := f.addNode("leaving", 0, 600)
	n2, _ := f.addNode("staying", 0, 400)

	drained, err := f.d.UnstakeForDeregister(n1.ID)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(600), drained)
	assert.Equal(t, int64(0), n1.Proxy.NetProtocolStake().Int64())

	// rebalancing withdrawals never enter the user request queues
	assert.Equal(t, 0, f.d.RequestCount(userAddr))

	f.now += testLockup
	moved, err := f.d.ClaimAndRestake(n1.ID, n2.ID, f.now)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(600), moved)
	assert.Equal(t, int64(0), n1.Proxy.ProtocolStake().Int64())
	assert.Equal(t, big.NewInt(1000), n2.Proxy.ProtocolStake())
}

func TestClaimAndRestakeRequiresActiveTarget(t *testing.T) {
	f := newFixture(t, defaultConfig())
	n1, _ := f.addNode("a", 0, 600)
	n2, _ := f.addNode("b", 0, 400)
	require.NoError(t, f.reg.SetActive(n2.ID, false))

	require.NoError(t, f.d.UnstakeForRebalancing(n1.ID, big.NewInt(100)))

	f.now += testLockup
	_, err := f.d.ClaimAndRestake(n1.ID, n2.ID, f.now)
	assert.Error(t, err)
}

// faultyNode refuses withdrawal submissions when tripped.
type faultyNode struct {
	*simnode.Node
	fail bool
}

func (n *faultyNode) SubmitWithdrawal(recipient common.Address, amount *big.Int) (uint64, error) {
	if n.fail {
		return 0, errors.New("node unavailable")
	}
	return n.Node.SubmitWithdrawal(recipient, amount)
}

func TestUnstakePartialFailureLeavesNoRequest(t *testing.T) {
	f := newFixture(t, defaultConfig())
	good, _ := f.addNode("good", 0, 600)

	broken := &faultyNode{Node: simnode.NewNode(func() uint64 { return f.now }, testLockup, testLockup)}
	addr := common.BytesToAddress([]byte{0x02})
	relay := simnode.NewRelay()
	relay.Authorize(addr)
	proxy := nodeproxy.New(broken, relay, addr, new(big.Int))
	require.NoError(t, proxy.Stake(big.NewInt(600)))
	badID, err := f.reg.Register("broken", proxy, common.BytesToAddress([]byte{0x82}))
	require.NoError(t, err)

	// 800 splits evenly; the second node's submission fails mid-flight
	broken.fail = true
	_, err = f.d.Unstake(userAddr, big.NewInt(800), f.now)
	require.Error(t, err)

	// the user ends up with no request and nothing claimable
	assert.Equal(t, 0, f.d.RequestCount(userAddr))
	f.now += testLockup
	claimed, expired, err := f.d.Claim(userAddr, f.now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), claimed.Int64())
	assert.Equal(t, int64(0), expired.Int64())

	// the withdrawal already submitted on the first node now belongs to
	// the allocator and is recyclable like any rebalancing withdrawal
	assert.Equal(t, big.NewInt(400), good.Proxy.PendingUnstake())
	moved, err := f.d.ClaimAndRestake(good.ID, badID, f.now)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(400), moved)
}

func TestClaimWindowFixedAtCreation(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.addNode("a", 0, 1000)

	_, err := f.d.Unstake(userAddr, big.NewInt(300), f.now)
	require.NoError(t, err)
	reqs := f.d.RequestPage(userAddr, 0, 0)
	require.Len(t, reqs, 1)
	assert.Equal(t, f.now+2*testLockup, reqs[0].ExpiresAt)

	// a longer lockup configured afterwards must not stretch the window
	require.NoError(t, f.d.SetLockupPeriod(10*testLockup))

	f.now += 2 * testLockup
	claimed, expired, err := f.d.Claim(userAddr, f.now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), claimed.Int64())
	assert.Equal(t, big.NewInt(300), expired)
	assert.Equal(t, distributor.RequestExpired, f.d.RequestPage(userAddr, 0, 0)[0].State)
}
