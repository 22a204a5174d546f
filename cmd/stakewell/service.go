// Copyright (c) 2026 The Stakewell developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/stakewell/stakewell/api"
	"github.com/stakewell/stakewell/log"
	"github.com/stakewell/stakewell/metrics"
	"github.com/stakewell/stakewell/paylog"
	"github.com/stakewell/stakewell/staking"
)

var logger = log.WithContext("pkg", "main")

// runService serves the API (and optionally metrics) until an exit signal
// arrives, then drains both servers.
func runService(ctx *cli.Context, pool *staking.Pool, payLog *paylog.PayLog) error {
	handler := api.New(pool, payLog, api.Options{
		AllowedOrigins:  ctx.String(apiCorsFlag.Name),
		PprofOn:         ctx.Bool(pprofFlag.Name),
		EnableReqLogger: ctx.Bool(enableAPILogsFlag.Name),
		EnableMetrics:   ctx.Bool(enableMetricsFlag.Name),
	})

	apiListener, err := net.Listen("tcp", ctx.String(apiAddrFlag.Name))
	if err != nil {
		return errors.WithMessage(err, "listen API addr")
	}
	apiServer := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	var metricsServer *http.Server
	var metricsListener net.Listener
	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
		metricsListener, err = net.Listen("tcp", ctx.String(metricsAddrFlag.Name))
		if err != nil {
			return errors.WithMessage(err, "listen metrics addr")
		}
		metricsServer = &http.Server{Handler: metrics.HTTPHandler(), ReadHeaderTimeout: 10 * time.Second}
	}

	var group errgroup.Group

	group.Go(func() error {
		logger.Info("API server started", "addr", apiListener.Addr())
		if err := apiServer.Serve(apiListener); err != http.ErrServerClosed {
			return errors.WithMessage(err, "API server")
		}
		return nil
	})
	if metricsServer != nil {
		group.Go(func() error {
			logger.Info("metrics server started", "addr", metricsListener.Addr())
			if err := metricsServer.Serve(metricsListener); err != http.ErrServerClosed {
				return errors.WithMessage(err, "metrics server")
			}
			return nil
		})
	}
	group.Go(func() error {
		<-handleExitSignal()
		logger.Info("exit signal received, shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown", "error", err)
			}
		}
		return apiServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
