// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package guard provides the reentrancy protection used by state-mutating
// pool entry points. The hosting environment serializes top-level calls, so
// the hazard is not parallelism but a collaborator re-entering an entry point
// while a previous invocation is still on the stack.
package guard

import (
	"github.com/stakewell/stakewell/staking/reverts"
)

// Guard is an exclusive flag shared by a group of entry points. Nested entry
// into any guarded operation of the same group fails immediately instead of
// running on partially updated state.
type Guard struct {
	entered bool
}

// Enter acquires the guard. The returned release function must run on every
// exit path, including error exits.
func (g *Guard) Enter() (release func(), err error) {
	if g.entered {
		return nil, reverts.New("reentrant call")
	}
	g.entered = true
	return func() { g.entered = false }, nil
}

// Held reports whether the guard is currently taken.
func (g *Guard) Held() bool {
	return g.entered
}
