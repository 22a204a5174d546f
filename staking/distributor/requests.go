// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package distributor

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/stakewell/stakewell/staking/registry"
)

// RequestState tracks an unstaking request through its claim lifecycle.
type RequestState uint8

const (
	RequestUnclaimed RequestState = iota
	RequestClaimed
	RequestExpired
)

func (s RequestState) String() string {
	switch s {
	case RequestUnclaimed:
		return "unclaimed"
	case RequestClaimed:
		return "claimed"
	case RequestExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// UnstakingRequest is one user withdrawal waiting out its lockup. It may be
// claimed within [ClaimableAt, ExpiresAt); once that window closes its value
// converts back into shares at the then-current ratio. Both bounds are fixed
// at creation, so later lockup changes leave outstanding requests alone.
type UnstakingRequest struct {
	Amount      *big.Int
	ClaimableAt uint64
	ExpiresAt   uint64
	State       RequestState
}

func (r *UnstakingRequest) copy() *UnstakingRequest {
	return &UnstakingRequest{
		Amount:      new(big.Int).Set(r.Amount),
		ClaimableAt: r.ClaimableAt,
		ExpiresAt:   r.ExpiresAt,
		State:       r.State,
	}
}

// Claim settles the user's matured requests, bounded by the claim batch
// limit. Requests inside their window are claimed and paid out; requests
// whose window closed are expired and their value re-minted as shares at the
// current ratio. Both figures come from the physical walk of the node
// queues, so a disconnected node's entries surface here as expired.
func (d *Distributor) Claim(user common.Address, now uint64) (claimed, expired *big.Int, err error) {
	release, err := d.entry.Enter()
	if err != nil {
		return nil, nil, err
	}
	defer release()

	logger.Debug("claiming", "user", user)

	reqs := d.requests[user]
	cursor := d.cursors[user]
	processed := 0
	var timeLimit uint64

	for i := cursor; i < len(reqs) && processed < d.cfg.ClaimBatchLimit; i++ {
		r := reqs[i]
		if r.ClaimableAt > now {
			// the queue is time-ordered, nothing later is eligible either
			break
		}
		if now >= r.ExpiresAt {
			r.State = RequestExpired
		} else {
			r.State = RequestClaimed
		}
		timeLimit = r.ClaimableAt
		cursor = i + 1
		processed++
	}
	d.cursors[user] = cursor

	claimed = new(big.Int)
	expired = new(big.Int)
	if processed == 0 {
		return claimed, expired, nil
	}

	// drive the physical queues; deactivated nodes still hold user funds
	err = d.reg.Iter(func(n *registry.Node) error {
		c, e, claimErr := n.Proxy.ClaimUnstaked(user, timeLimit, now, d.cfg.ClaimBatchLimit, false)
		if claimErr != nil {
			return errors.Wrapf(claimErr, "claim node %d", n.ID)
		}
		claimed.Add(claimed, c)
		expired.Add(expired, e)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if expired.Sign() > 0 {
		if err := d.minter.MintValue(user, expired); err != nil {
			return nil, nil, errors.Wrap(err, "re-mint expired value")
		}
	}
	if claimed.Sign() > 0 {
		if err := d.paylog.Record(d.cfg.Token, claimed, user, "unstake claim"); err != nil {
			return nil, nil, errors.Wrap(err, "record claim")
		}
	}

	logger.Info("claimed", "user", user, "claimed", claimed, "expired", expired, "requests", processed)
	return claimed, expired, nil
}

// ClaimableOf returns the total amount and count of the user's requests that
// are inside their claim window right now.
func (d *Distributor) ClaimableOf(user common.Address, now uint64) (*big.Int, int) {
	total := new(big.Int)
	count := 0
	for _, r := range d.requests[user][d.cursors[user]:] {
		if r.ClaimableAt > now {
			break
		}
		if now < r.ExpiresAt {
			total.Add(total, r.Amount)
			count++
		}
	}
	return total, count
}

// RequestCount returns how many requests the user has ever made.
func (d *Distributor) RequestCount(user common.Address) int {
	return len(d.requests[user])
}

// RequestPage returns a most-recent-first page of the user's requests.
// pageSize 0 returns everything; pageNum 0 means the first page; a page
// number past the end clamps to the last page.
func (d *Distributor) RequestPage(user common.Address, pageSize, pageNum int) []*UnstakingRequest {
	reqs := d.requests[user]
	total := len(reqs)
	if total == 0 {
		return nil
	}

	if pageSize <= 0 {
		pageSize = total
	}
	if pageNum < 1 {
		pageNum = 1
	}
	lastPage := (total + pageSize - 1) / pageSize
	if pageNum > lastPage {
		pageNum = lastPage
	}

	// page 1 holds the most recent requests
	end := total - (pageNum-1)*pageSize
	start := end - pageSize
	if start < 0 {
		start = 0
	}

	page := make([]*UnstakingRequest, 0, end-start)
	for i := end - 1; i >= start; i-- {
		page = append(page, reqs[i].copy())
	}
	return page
}
