// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/stakewell/stakewell/staking/distributor"
)

// NodeConfig describes one simulated staking node to bring up.
type NodeConfig struct {
	Name     string `yaml:"name"`
	Operator string `yaml:"operator"`
	// OperatorStake is staked on the node's own account at startup.
	OperatorStake string `yaml:"operatorStake"`
	// WithdrawalDelay and ClaimWindow shape the node's unstaking timing,
	// in seconds. Zero values fall back to the pool's lockup period.
	WithdrawalDelay uint64 `yaml:"withdrawalDelay"`
	ClaimWindow     uint64 `yaml:"claimWindow"`
}

// Config is the yaml service configuration.
type Config struct {
	Token                 string                      `yaml:"token"`
	FeeRate               uint32                      `yaml:"feeRate"`
	FeeDistribution       distributor.FeeDistribution `yaml:"feeDistribution"`
	LockupPeriod          uint64                      `yaml:"lockupPeriod"`
	ClaimBatchLimit       int                         `yaml:"claimBatchLimit"`
	UnstakeSplitThreshold string                      `yaml:"unstakeSplitThreshold"`
	MinOperateThreshold   string                      `yaml:"minOperateThreshold"`
	// MinOperatorStake is the operator stake floor below which a node's
	// operator earns no reward share.
	MinOperatorStake      string                      `yaml:"minOperatorStake"`
	TaxRate               uint32                      `yaml:"taxRate"`
	TaxReceiver           string                      `yaml:"taxReceiver"`
	Treasury              string                      `yaml:"treasury"`
	Vault                 string                      `yaml:"vault"`

	Nodes []NodeConfig `yaml:"nodes"`
}

func defaultConfigContent() *Config {
	return &Config{
		Token:                 "SWT",
		FeeRate:               1000,
		FeeDistribution:       distributor.FeeDistribution{Operators: 50, Treasury: 20, Vault: 30},
		LockupPeriod:          24 * 3600,
		ClaimBatchLimit:       32,
		UnstakeSplitThreshold: "0",
		MinOperateThreshold:   "0",
		Treasury:              "0x0000000000000000000000000000000000000001",
		Vault:                 "0x0000000000000000000000000000000000000002",
	}
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessage(err, "read config")
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WithMessage(err, "parse config")
	}
	return &cfg, nil
}

func parseAmount(raw, field string) (*big.Int, error) {
	if raw == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return nil, errors.Errorf("%s: invalid amount %q", field, raw)
	}
	return v, nil
}

func parseOptionalAddress(raw, field string) (common.Address, error) {
	if raw == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, errors.Errorf("%s: invalid address %q", field, raw)
	}
	return common.HexToAddress(raw), nil
}

// distributorConfig converts the yaml view into live engine parameters.
func (c *Config) distributorConfig() (distributor.Config, error) {
	var (
		out distributor.Config
		err error
	)
	out.Token = c.Token
	out.FeeRate = c.FeeRate
	out.FeeDistribution = c.FeeDistribution
	out.LockupPeriod = c.LockupPeriod
	out.ClaimBatchLimit = c.ClaimBatchLimit
	out.TaxRate = c.TaxRate

	if out.UnstakeSplitThreshold, err = parseAmount(c.UnstakeSplitThreshold, "unstakeSplitThreshold"); err != nil {
		return out, err
	}
	if out.MinOperateThreshold, err = parseAmount(c.MinOperateThreshold, "minOperateThreshold"); err != nil {
		return out, err
	}
	if out.TaxReceiver, err = parseOptionalAddress(c.TaxReceiver, "taxReceiver"); err != nil {
		return out, err
	}
	if out.Treasury, err = parseOptionalAddress(c.Treasury, "treasury"); err != nil {
		return out, err
	}
	if out.Vault, err = parseOptionalAddress(c.Vault, "vault"); err != nil {
		return out, err
	}
	return out, nil
}
