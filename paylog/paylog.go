// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package paylog records every disbursement the pool makes and serves them
// back most-recent-first in pages.
package paylog

import (
	"database/sql"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const tableSchema = `CREATE TABLE IF NOT EXISTS disbursement (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	token TEXT NOT NULL,
	amount TEXT NOT NULL,
	recipient BLOB(20) NOT NULL,
	reason TEXT NOT NULL
);`

// Entry is one recorded disbursement.
type Entry struct {
	Seq    uint64
	Token  string
	Amount *big.Int
	To     common.Address
	Reason string
}

// PayLog is the sqlite-backed disbursement log.
type PayLog struct {
	path          string
	db            *sql.DB
	driverVersion string
}

// New creates or opens a disbursement log at the given path.
func New(path string) (payLog *PayLog, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if payLog == nil {
			db.Close()
		}
	}()
	if _, err := db.Exec(tableSchema); err != nil {
		return nil, err
	}

	driverVer, _, _ := sqlite3.Version()
	return &PayLog{
		path,
		db,
		driverVer,
	}, nil
}

// NewMem creates a disbursement log in ram.
func NewMem() (*PayLog, error) {
	return New(":memory:")
}

// Close closes the log db.
func (p *PayLog) Close() {
	p.db.Close()
}

func (p *PayLog) Path() string {
	return p.path
}

// Record appends a disbursement.
func (p *PayLog) Record(token string, amount *big.Int, to common.Address, reason string) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.New("invalid amount")
	}
	_, err := p.db.Exec(
		"INSERT INTO disbursement(token, amount, recipient, reason) VALUES(?, ?, ?, ?)",
		token, amount.String(), to.Bytes(), reason,
	)
	return errors.Wrap(err, "record disbursement")
}

// Count returns the total number of recorded disbursements.
func (p *PayLog) Count() (int, error) {
	row := p.db.QueryRow("SELECT COUNT(*) FROM disbursement")
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// GetLog returns a most-recent-first page of disbursements. pageSize 0
// returns the full log; pageNum 0 means the first page; a page number past
// the end clamps to the last page.
func (p *PayLog) GetLog(pageSize, pageNum int) ([]*Entry, error) {
	total, err := p.Count()
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
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

	rows, err := p.db.Query(
		"SELECT seq, token, amount, recipient, reason FROM disbursement ORDER BY seq DESC LIMIT ? OFFSET ?",
		pageSize, (pageNum-1)*pageSize,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			entry     Entry
			amount    string
			recipient []byte
		)
		if err := rows.Scan(&entry.Seq, &entry.Token, &amount, &recipient, &entry.Reason); err != nil {
			return nil, err
		}
		value, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return nil, errors.Errorf("corrupt amount %q at seq %d", amount, entry.Seq)
		}
		entry.Amount = value
		entry.To = common.BytesToAddress(recipient)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
