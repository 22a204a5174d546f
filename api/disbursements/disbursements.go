// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package disbursements serves the payment log over REST.
package disbursements

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/stakewell/stakewell/api/utils"
	"github.com/stakewell/stakewell/paylog"
)

// Disbursement for marshal one recorded payment
type Disbursement struct {
	Seq    uint64               `json:"seq"`
	Token  string               `json:"token"`
	Amount math.HexOrDecimal256 `json:"amount,string"`
	To     common.Address       `json:"to"`
	Reason string               `json:"reason"`
}

type Disbursements struct {
	log *paylog.PayLog
}

func New(log *paylog.PayLog) *Disbursements {
	return &Disbursements{log}
}

func (d *Disbursements) handleGetLog(w http.ResponseWriter, req *http.Request) error {
	pageSize, pageNum := 0, 0
	var err error
	if raw := req.URL.Query().Get("pageSize"); raw != "" {
		if pageSize, err = strconv.Atoi(raw); err != nil || pageSize < 0 {
			return utils.BadRequest(errors.New("invalid pageSize"))
		}
	}
	if raw := req.URL.Query().Get("pageNum"); raw != "" {
		if pageNum, err = strconv.Atoi(raw); err != nil || pageNum < 0 {
			return utils.BadRequest(errors.New("invalid pageNum"))
		}
	}

	entries, err := d.log.GetLog(pageSize, pageNum)
	if err != nil {
		return err
	}
	out := make([]*Disbursement, len(entries))
	for i, e := range entries {
		out[i] = &Disbursement{
			Seq:    e.Seq,
			Token:  e.Token,
			Amount: math.HexOrDecimal256(*e.Amount),
			To:     e.To,
			Reason: e.Reason,
		}
	}
	return utils.WriteJSON(w, out)
}

func (d *Disbursements) handleGetCount(w http.ResponseWriter, _ *http.Request) error {
	count, err := d.log.Count()
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, utils.M{"count": count})
}

func (d *Disbursements) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("disbursements_get_log").
		HandlerFunc(utils.WrapHandlerFunc(d.handleGetLog))
	sub.Path("/count").
		Methods(http.MethodGet).
		Name("disbursements_get_count").
		HandlerFunc(utils.WrapHandlerFunc(d.handleGetCount))
}
