// Command sse_load opens many concurrent connections to a dashboard stream
// (/snapshot/stream or /equity/stream) and reports event throughput.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "sse_load",
		Usage: "load test the dashboard SSE streams",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080/snapshot/stream", Usage: "SSE endpoint URL"},
			&cli.IntFlag{Name: "conns", Value: 1000, Usage: "number of concurrent connections to open"},
			&cli.DurationFlag{Name: "dur", Value: 60 * time.Second, Usage: "test duration (0 for until interrupted)"},
			&cli.DurationFlag{Name: "ramp", Usage: "spread connection starts across this window"},
		},
		Action: func(c *cli.Context) error {
			conns := c.Int("conns")
			if conns <= 0 {
				return fmt.Errorf("invalid conns: %d", conns)
			}

			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ramp := c.Duration("ramp")
			if ramp == 0 {
				ramp = defaultRampUp(conns)
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := loadConfig{URL: c.String("url"), Connections: conns, Duration: c.Duration("dur"), RampUp: ramp}
			logger.Info("starting SSE load", zap.String("url", cfg.URL), zap.Int("conns", conns),
				zap.Duration("duration", cfg.Duration), zap.Duration("ramp", ramp))

			s := runLoad(ctx, cfg, logger)
			fmt.Printf("done: connected=%d connect_errs=%d stream_errs=%d events=%d no_data=%d elapsed=%s events/s=%.2f\n",
				s.Connected, s.ConnectErrs, s.StreamErrs, s.Events, s.NoData, s.Elapsed.Truncate(time.Millisecond), s.EventsPerSecond())
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
