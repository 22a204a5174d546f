// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package staking exposes the pool over REST: read access for everyone,
// mutating operations for the host that drives the engine.
package staking

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/stakewell/stakewell/api/utils"
	"github.com/stakewell/stakewell/staking"
)

type Staking struct {
	pool *staking.Pool
}

func New(pool *staking.Pool) *Staking {
	return &Staking{pool}
}

func parseAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, errors.Errorf("invalid address %s", raw)
	}
	return common.HexToAddress(raw), nil
}

func parseNodeID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.WithMessage(err, "invalid node id")
	}
	return id, nil
}

func parsePageQuery(req *http.Request) (pageSize, pageNum int, err error) {
	if raw := req.URL.Query().Get("pageSize"); raw != "" {
		if pageSize, err = strconv.Atoi(raw); err != nil || pageSize < 0 {
			return 0, 0, errors.New("invalid pageSize")
		}
	}
	if raw := req.URL.Query().Get("pageNum"); raw != "" {
		if pageNum, err = strconv.Atoi(raw); err != nil || pageNum < 0 {
			return 0, 0, errors.New("invalid pageNum")
		}
	}
	return pageSize, pageNum, nil
}

func (s *Staking) handleGetPool(w http.ResponseWriter, _ *http.Request) error {
	return utils.WriteJSON(w, &PoolStatus{
		TotalValue:  hexOrDecimal(s.pool.TotalValue()),
		TotalShares: hexOrDecimal(s.pool.TotalShares()),
		Ratio:       hexOrDecimal(s.pool.Ratio()),
		Nodes:       s.pool.NodeCount(),
	})
}

func (s *Staking) handleGetNodes(w http.ResponseWriter, _ *http.Request) error {
	count := s.pool.NodeCount()
	nodes := make([]*Node, 0, count)
	for id := uint64(1); id <= uint64(count); id++ {
		info, err := s.pool.NodeInfo(id)
		if err != nil {
			return err
		}
		nodes = append(nodes, convertNode(info))
	}
	return utils.WriteJSON(w, nodes)
}

func (s *Staking) handleGetNode(w http.ResponseWriter, req *http.Request) error {
	id, err := parseNodeID(mux.Vars(req)["id"])
	if err != nil {
		return utils.BadRequest(err)
	}
	info, err := s.pool.NodeInfo(id)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, convertNode(info))
}

func (s *Staking) handleGetAccount(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(mux.Vars(req)["address"])
	if err != nil {
		return utils.BadRequest(err)
	}
	claimable, count := s.pool.ClaimableOf(addr)
	return utils.WriteJSON(w, &Account{
		Balance:        hexOrDecimal(s.pool.BalanceOf(addr)),
		Shares:         hexOrDecimal(s.pool.SharesOf(addr)),
		Claimable:      hexOrDecimal(claimable),
		ClaimableCount: count,
		Requests:       len(s.pool.Requests(addr, 0, 0)),
	})
}

func (s *Staking) handleGetRequests(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(mux.Vars(req)["address"])
	if err != nil {
		return utils.BadRequest(err)
	}
	pageSize, pageNum, err := parsePageQuery(req)
	if err != nil {
		return utils.BadRequest(err)
	}
	return utils.WriteJSON(w, convertRequests(s.pool.Requests(addr, pageSize, pageNum)))
}

func (s *Staking) handleStake(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(mux.Vars(req)["address"])
	if err != nil {
		return utils.BadRequest(err)
	}
	var body AmountBody
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if body.value() == nil {
		return utils.BadRequest(errors.New("amount required"))
	}
	if err := s.pool.Stake(addr, body.value()); err != nil {
		return err
	}
	return utils.WriteJSON(w, utils.M{"staked": body.Amount})
}

func (s *Staking) handleUnstake(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(mux.Vars(req)["address"])
	if err != nil {
		return utils.BadRequest(err)
	}
	var body AmountBody
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if body.value() == nil {
		return utils.BadRequest(errors.New("amount required"))
	}
	if err := s.pool.Unstake(addr, body.value()); err != nil {
		return err
	}
	return utils.WriteJSON(w, utils.M{"unstaked": body.Amount})
}

func (s *Staking) handleClaim(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(mux.Vars(req)["address"])
	if err != nil {
		return utils.BadRequest(err)
	}
	claimed, expired, err := s.pool.Claim(addr)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, &ClaimResult{
		Claimed: hexOrDecimal(claimed),
		Expired: hexOrDecimal(expired),
	})
}

func (s *Staking) handleTransfer(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(mux.Vars(req)["address"])
	if err != nil {
		return utils.BadRequest(err)
	}
	var body TransferBody
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if body.Shares == nil {
		return utils.BadRequest(errors.New("shares required"))
	}
	if err := s.pool.Transfer(addr, body.To, (*big.Int)(body.Shares)); err != nil {
		return err
	}
	return utils.WriteJSON(w, utils.M{"transferred": body.Shares})
}

func (s *Staking) handleSetNodeFlag(set func(uint64, bool) error) utils.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) error {
		id, err := parseNodeID(mux.Vars(req)["id"])
		if err != nil {
			return utils.BadRequest(err)
		}
		var body FlagBody
		if err := utils.ParseJSON(req.Body, &body); err != nil {
			return utils.BadRequest(errors.WithMessage(err, "body"))
		}
		if err := set(id, body.Value); err != nil {
			return err
		}
		return utils.WriteJSON(w, utils.M{"id": id, "value": body.Value})
	}
}

func (s *Staking) handleSetNodeOperator(w http.ResponseWriter, req *http.Request) error {
	id, err := parseNodeID(mux.Vars(req)["id"])
	if err != nil {
		return utils.BadRequest(err)
	}
	var body OperatorBody
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := s.pool.SetNodeOperator(id, body.Operator); err != nil {
		return err
	}
	return utils.WriteJSON(w, utils.M{"id": id, "operator": body.Operator})
}

func (s *Staking) handleSetNodeName(w http.ResponseWriter, req *http.Request) error {
	id, err := parseNodeID(mux.Vars(req)["id"])
	if err != nil {
		return utils.BadRequest(err)
	}
	var body NameBody
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := s.pool.SetNodeName(id, body.Name); err != nil {
		return err
	}
	return utils.WriteJSON(w, utils.M{"id": id, "name": body.Name})
}

func (s *Staking) handleDistributeReward(w http.ResponseWriter, _ *http.Request) error {
	if err := s.pool.ForceDistributeReward(); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Staking) handleRebalanceUnstake(w http.ResponseWriter, req *http.Request) error {
	id, err := parseNodeID(mux.Vars(req)["id"])
	if err != nil {
		return utils.BadRequest(err)
	}
	var body AmountBody
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if body.value() == nil {
		// no amount drains the node for deregistration
		drained, err := s.pool.UnstakeForDeregister(id)
		if err != nil {
			return err
		}
		return utils.WriteJSON(w, utils.M{"unstaked": hexOrDecimal(drained)})
	}
	if err := s.pool.UnstakeForRebalancing(id, body.value()); err != nil {
		return err
	}
	return utils.WriteJSON(w, utils.M{"unstaked": body.Amount})
}

func (s *Staking) handleRestake(w http.ResponseWriter, req *http.Request) error {
	var body RestakeBody
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	moved, err := s.pool.ClaimAndRestake(body.ClaimNode, body.StakeNode)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, utils.M{"moved": hexOrDecimal(moved)})
}

func (s *Staking) handleSetParams(w http.ResponseWriter, req *http.Request) error {
	var body ParamsBody
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}

	if body.FeeRate != nil {
		if err := s.pool.SetFeeRate(*body.FeeRate); err != nil {
			return err
		}
	}
	if body.FeeDistribution != nil {
		if err := s.pool.SetFeeDistribution(*body.FeeDistribution); err != nil {
			return err
		}
	}
	if body.LockupPeriod != nil {
		if err := s.pool.SetLockupPeriod(*body.LockupPeriod); err != nil {
			return err
		}
	}
	if body.UnstakeSplitThreshold != nil {
		if err := s.pool.SetUnstakeSplitThreshold((*big.Int)(body.UnstakeSplitThreshold)); err != nil {
			return err
		}
	}
	if body.MinOperateThreshold != nil {
		if err := s.pool.SetMinOperateThreshold((*big.Int)(body.MinOperateThreshold)); err != nil {
			return err
		}
	}
	if body.TaxRate != nil {
		receiver := s.pool.Config().TaxReceiver
		if body.TaxReceiver != nil {
			receiver = *body.TaxReceiver
		}
		if err := s.pool.SetTax(*body.TaxRate, receiver); err != nil {
			return err
		}
	}
	return s.handleGetParams(w, req)
}

func (s *Staking) handleGetParams(w http.ResponseWriter, _ *http.Request) error {
	cfg := s.pool.Config()
	return utils.WriteJSON(w, utils.M{
		"feeRate":               cfg.FeeRate,
		"feeDistribution":       cfg.FeeDistribution,
		"lockupPeriod":          cfg.LockupPeriod,
		"unstakeSplitThreshold": hexOrDecimal(cfg.UnstakeSplitThreshold),
		"minOperateThreshold":   hexOrDecimal(cfg.MinOperateThreshold),
		"taxRate":               cfg.TaxRate,
		"taxReceiver":           cfg.TaxReceiver,
		"token":                 cfg.Token,
	})
}

func (s *Staking) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("staking_get_pool").
		HandlerFunc(utils.WrapHandlerFunc(s.handleGetPool))
	sub.Path("/nodes").
		Methods(http.MethodGet).
		Name("staking_get_nodes").
		HandlerFunc(utils.WrapHandlerFunc(s.handleGetNodes))
	sub.Path("/nodes/{id}").
		Methods(http.MethodGet).
		Name("staking_get_node").
		HandlerFunc(utils.WrapHandlerFunc(s.handleGetNode))
	sub.Path("/accounts/{address}").
		Methods(http.MethodGet).
		Name("staking_get_account").
		HandlerFunc(utils.WrapHandlerFunc(s.handleGetAccount))
	sub.Path("/accounts/{address}/requests").
		Methods(http.MethodGet).
		Name("staking_get_requests").
		HandlerFunc(utils.WrapHandlerFunc(s.handleGetRequests))
	sub.Path("/accounts/{address}/stake").
		Methods(http.MethodPost).
		Name("staking_post_stake").
		HandlerFunc(utils.WrapHandlerFunc(s.handleStake))
	sub.Path("/accounts/{address}/unstake").
		Methods(http.MethodPost).
		Name("staking_post_unstake").
		HandlerFunc(utils.WrapHandlerFunc(s.handleUnstake))
	sub.Path("/accounts/{address}/claim").
		Methods(http.MethodPost).
		Name("staking_post_claim").
		HandlerFunc(utils.WrapHandlerFunc(s.handleClaim))
	sub.Path("/accounts/{address}/transfer").
		Methods(http.MethodPost).
		Name("staking_post_transfer").
		HandlerFunc(utils.WrapHandlerFunc(s.handleTransfer))
	sub.Path("/params").
		Methods(http.MethodGet).
		Name("staking_get_params").
		HandlerFunc(utils.WrapHandlerFunc(s.handleGetParams))

	admin := sub.PathPrefix("/admin").Subrouter()
	admin.Path("/nodes/{id}/active").
		Methods(http.MethodPost).
		Name("staking_admin_set_active").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSetNodeFlag(s.pool.SetNodeActive)))
	admin.Path("/nodes/{id}/blocked").
		Methods(http.MethodPost).
		Name("staking_admin_set_blocked").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSetNodeFlag(s.pool.SetNodeUnstakingBlocked)))
	admin.Path("/nodes/{id}/taxoptin").
		Methods(http.MethodPost).
		Name("staking_admin_set_taxoptin").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSetNodeFlag(s.pool.SetNodeTaxOptIn)))
	admin.Path("/nodes/{id}/disconnected").
		Methods(http.MethodPost).
		Name("staking_admin_set_disconnected").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSetNodeFlag(s.pool.SetNodeDisconnected)))
	admin.Path("/nodes/{id}/operator").
		Methods(http.MethodPost).
		Name("staking_admin_set_operator").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSetNodeOperator))
	admin.Path("/nodes/{id}/name").
		Methods(http.MethodPost).
		Name("staking_admin_set_name").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSetNodeName))
	admin.Path("/nodes/{id}/unstake").
		Methods(http.MethodPost).
		Name("staking_admin_rebalance_unstake").
		HandlerFunc(utils.WrapHandlerFunc(s.handleRebalanceUnstake))
	admin.Path("/restake").
		Methods(http.MethodPost).
		Name("staking_admin_restake").
		HandlerFunc(utils.WrapHandlerFunc(s.handleRestake))
	admin.Path("/distribute").
		Methods(http.MethodPost).
		Name("staking_admin_distribute").
		HandlerFunc(utils.WrapHandlerFunc(s.handleDistributeReward))
	admin.Path("/params").
		Methods(http.MethodPost).
		Name("staking_admin_set_params").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSetParams))
}
