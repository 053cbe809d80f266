// Command riskwatch serves a live risk dashboard for a Hyperliquid wallet:
// balance, open positions and recent trades, refreshed on a timer.
//
// Usage:
//
//	riskwatch --config config.yaml          run monitor and dashboard
//	riskwatch report --days 7 --side SELL   print the tables once
//	riskwatch setup                         create a config interactively
//
// Without --config the settings come from the environment:
//
//	WALLET_ADDRESS, PRIVATE_KEY, TESTNET, TRADE_HISTORY_DAYS, REFRESH_INTERVAL, LISTEN_ADDR
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/vadiminshakov/riskwatch/config"
	"github.com/vadiminshakov/riskwatch/internal"
	"github.com/vadiminshakov/riskwatch/internal/domain"
	"github.com/vadiminshakov/riskwatch/internal/logger"
	"github.com/vadiminshakov/riskwatch/internal/setup"
)

func main() {
	app := &cli.App{
		Name:     "riskwatch",
		HelpName: "riskwatch",
		Usage:    "Hyperliquid wallet risk dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to yaml config",
				EnvVars: []string{"RISKWATCH_CONFIG"},
			},
		},
		Action: runAction,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Refresh the account and serve the dashboard",
				Action: runAction,
			},
			{
				Name:  "report",
				Usage: "Fetch once and print balance, positions and trades",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "days", Aliases: []string{"d"}, Usage: "trade history window, 1-7 (default from config)"},
					&cli.StringFlag{Name: "symbol", Aliases: []string{"s"}, Usage: "eg. BTC/USDC:USDC", Value: domain.FilterAll},
					&cli.StringFlag{Name: "side", Usage: "All, BUY or SELL", Value: domain.FilterAll},
				},
				Action: reportAction,
			},
			{
				Name:  "setup",
				Usage: "Interactive configuration wizard",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "file to write", Value: setup.DefaultFile},
				},
				Action: func(c *cli.Context) error {
					return setup.RunTUI(c.String("output"))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "riskwatch:", err)
		os.Exit(1)
	}
}

func prepare(c *cli.Context) (context.Context, context.CancelFunc, config.Config, *zap.Logger, error) {
	conf, err := config.Get(c.String("config"))
	if err != nil {
		return nil, nil, config.Config{}, nil, err
	}

	log, err := logger.New(logger.Config{Level: conf.LogLevel, File: conf.LogFile})
	if err != nil {
		return nil, nil, config.Config{}, nil, err
	}

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	return ctx, cancel, conf, log, nil
}

func runAction(c *cli.Context) error {
	ctx, cancel, conf, log, err := prepare(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer log.Sync()

	rw, err := internal.NewRiskWatch(ctx, conf, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := rw.Close(); err != nil {
			log.Warn("close equity store", zap.Error(err))
		}
	}()

	log.Info("riskwatch started",
		zap.String("wallet", rw.Config.WalletAddress),
		zap.String("network", rw.Config.Network.String()),
		zap.String("listen", rw.Config.ListenAddr),
		zap.Duration("refresh_interval", rw.Config.RefreshInterval))

	return rw.Run(ctx)
}

func reportAction(c *cli.Context) error {
	ctx, cancel, conf, log, err := prepare(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer log.Sync()

	filter := domain.TradeFilter{
		Days:   c.Int("days"),
		Symbol: c.String("symbol"),
		Side:   c.String("side"),
	}
	return internal.Report(ctx, conf, log, os.Stdout, filter)
}
