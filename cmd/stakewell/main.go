// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/stakewell/stakewell/paylog"
	"github.com/stakewell/stakewell/staking"
	"github.com/stakewell/stakewell/staking/nodeproxy"
	"github.com/stakewell/stakewell/staking/simnode"
)

var (
	version   string
	gitCommit string
	gitTag    string
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "Stakewell",
		Usage:     "Pooled staking service",
		Copyright: "2026 The Stakewell developers",
		Flags: []cli.Flag{
			configFlag,
			dataDirFlag,
			apiAddrFlag,
			apiCorsFlag,
			verbosityFlag,
			jsonLogsFlag,
			enableAPILogsFlag,
			enableMetricsFlag,
			metricsAddrFlag,
			pprofFlag,
		},
		Action: defaultAction,
		Commands: []cli.Command{
			{
				Name:  "solo",
				Usage: "run a self-contained pool over simulated nodes for test & dev",
				Flags: []cli.Flag{
					soloNodesFlag,
					soloLockupFlag,
					soloRewardFlag,
					persistFlag,
					dataDirFlag,
					apiAddrFlag,
					apiCorsFlag,
					verbosityFlag,
					jsonLogsFlag,
					enableAPILogsFlag,
					enableMetricsFlag,
					metricsAddrFlag,
					pprofFlag,
				},
				Action: soloAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	initLogger(ctx)

	path := ctx.String(configFlag.Name)
	if path == "" {
		fatal("--config is required")
	}
	cfg, err := loadConfig(path)
	if err != nil {
		fatal(err)
	}
	if len(cfg.Nodes) == 0 {
		fatal("config declares no nodes")
	}

	payLog := openPayLog(ctx)
	defer func() { logger.Info("closing disbursement log..."); payLog.Close() }()

	pool, _, err := buildPool(cfg, payLog)
	if err != nil {
		fatal(err)
	}

	printStartupMessage(ctx, cfg, payLog)
	return runService(ctx, pool, payLog)
}

func soloAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	initLogger(ctx)

	cfg := defaultConfigContent()
	cfg.LockupPeriod = ctx.Uint64(soloLockupFlag.Name)
	for i := 0; i < ctx.Int(soloNodesFlag.Name); i++ {
		cfg.Nodes = append(cfg.Nodes, NodeConfig{
			Name:     fmt.Sprintf("solo-%d", i+1),
			Operator: common.BytesToAddress([]byte{0x80, byte(i + 1)}).Hex(),
		})
	}

	var payLog *paylog.PayLog
	var err error
	if ctx.Bool(persistFlag.Name) {
		payLog = openPayLog(ctx)
	} else if payLog, err = paylog.NewMem(); err != nil {
		fatal(err)
	}
	defer func() { logger.Info("closing disbursement log..."); payLog.Close() }()

	pool, relays, err := buildPool(cfg, payLog)
	if err != nil {
		fatal(err)
	}

	// scripted reward accrual keeps solo pools appreciating
	if reward, ok := new(big.Int).SetString(ctx.String(soloRewardFlag.Name), 10); ok && reward.Sign() > 0 {
		go accrueRewards(relays, reward, time.Duration(cfg.LockupPeriod)*time.Second)
	}

	printStartupMessage(ctx, cfg, payLog)
	return runService(ctx, pool, payLog)
}

func openPayLog(ctx *cli.Context) *paylog.PayLog {
	dir := ctx.String(dataDirFlag.Name)
	if dir == "" {
		fatal("no data directory available")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		fatal(err)
	}
	payLog, err := paylog.New(filepath.Join(dir, "disbursements.db"))
	if err != nil {
		fatal(err)
	}
	return payLog
}

// buildPool assembles the engine from the yaml view: one simulated physical
// node and relay per declared node.
func buildPool(cfg *Config, payLog *paylog.PayLog) (*staking.Pool, []*simnode.Relay, error) {
	distCfg, err := cfg.distributorConfig()
	if err != nil {
		return nil, nil, err
	}
	minOperatorStake, err := parseAmount(cfg.MinOperatorStake, "minOperatorStake")
	if err != nil {
		return nil, nil, err
	}

	clock := staking.SystemClock{}
	pool, err := staking.NewPool(distCfg, payLog, clock)
	if err != nil {
		return nil, nil, err
	}

	var relays []*simnode.Relay
	for i, nc := range cfg.Nodes {
		operator, err := parseOptionalAddress(nc.Operator, "operator")
		if err != nil {
			return nil, nil, err
		}
		if operator == (common.Address{}) {
			return nil, nil, errors.Errorf("node %q: operator required", nc.Name)
		}

		delay, window := nc.WithdrawalDelay, nc.ClaimWindow
		if delay == 0 {
			delay = cfg.LockupPeriod
		}
		if window == 0 {
			window = cfg.LockupPeriod
		}

		addr := common.BytesToAddress([]byte{0x51, byte(i + 1)})
		node := simnode.NewNode(clock.Now, delay, window)
		relay := simnode.NewRelay()
		relay.Authorize(addr)
		relays = append(relays, relay)

		proxy := nodeproxy.New(node, relay, addr, minOperatorStake)
		if nc.OperatorStake != "" {
			stake, err := parseAmount(nc.OperatorStake, "operatorStake")
			if err != nil {
				return nil, nil, err
			}
			if stake.Sign() > 0 {
				if err := proxy.StakeOperator(stake); err != nil {
					return nil, nil, errors.WithMessagef(err, "node %q operator stake", nc.Name)
				}
			}
		}

		if _, err := pool.RegisterNode(nc.Name, proxy, operator); err != nil {
			return nil, nil, errors.WithMessagef(err, "register node %q", nc.Name)
		}
	}
	return pool, relays, nil
}

func accrueRewards(relays []*simnode.Relay, reward *big.Int, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		for _, r := range relays {
			r.Accrue(reward)
		}
	}
}

func printStartupMessage(ctx *cli.Context, cfg *Config, payLog *paylog.PayLog) {
	fmt.Printf(`Starting %v
    Nodes         [ %v ]
    Lockup        [ %v seconds ]
    Fee           [ %v bps ]
    Disbursements [ %v ]
    API portal    [ http://%v/ ]
`,
		fullVersion(),
		len(cfg.Nodes),
		cfg.LockupPeriod,
		cfg.FeeRate,
		payLog.Path(),
		ctx.String(apiAddrFlag.Name),
	)
}
