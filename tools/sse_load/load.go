package main

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type loadConfig struct {
	URL         string
	Connections int
	Duration    time.Duration
	RampUp      time.Duration
	Report      time.Duration
}

// Stats counters collected across all connections.
type Stats struct {
	Connected   int64
	ConnectErrs int64
	StreamErrs  int64
	Events      int64
	NoData      int64
	Elapsed     time.Duration
}

// EventsPerSecond average event rate over the run.
func (s Stats) EventsPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Events) / s.Elapsed.Seconds()
}

type counters struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	events      atomic.Int64
	noData      atomic.Int64
}

func (c *counters) snapshot(elapsed time.Duration) Stats {
	return Stats{
		Connected:   c.connected.Load(),
		ConnectErrs: c.connectErrs.Load(),
		StreamErrs:  c.streamErrs.Load(),
		Events:      c.events.Load(),
		NoData:      c.noData.Load(),
		Elapsed:     elapsed,
	}
}

func defaultRampUp(connections int) time.Duration {
	if connections <= 100 {
		return 0
	}
	// 1 second per 500 connections
	rampUp := time.Duration(connections/500) * time.Second
	if rampUp < time.Second {
		rampUp = time.Second
	}
	return rampUp
}

// runLoad opens cfg.Connections streams and counts events until ctx ends or cfg.Duration passes.
func runLoad(ctx context.Context, cfg loadConfig, logger *zap.Logger) Stats {
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}
	if cfg.Report <= 0 {
		cfg.Report = 5 * time.Second
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     cfg.Connections + 100,
			MaxIdleConns:        cfg.Connections + 100,
			MaxIdleConnsPerHost: cfg.Connections + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	var (
		c     counters
		wg    sync.WaitGroup
		start = time.Now()
	)

	var interval time.Duration
	if cfg.RampUp > 0 {
		interval = cfg.RampUp / time.Duration(cfg.Connections)
	}

	stopReport := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.Report)
		defer ticker.Stop()
		for {
			select {
			case <-stopReport:
				return
			case <-ticker.C:
				s := c.snapshot(time.Since(start))
				logger.Info("status",
					zap.Int64("connected", s.Connected),
					zap.Int64("connect_errs", s.ConnectErrs),
					zap.Int64("stream_errs", s.StreamErrs),
					zap.Int64("events", s.Events),
					zap.Duration("elapsed", s.Elapsed.Truncate(time.Second)))
			}
		}
	}()

	for i := 0; i < cfg.Connections; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			stream(ctx, client, cfg.URL, &c)
		}()
	}

	wg.Wait()
	close(stopReport)

	return c.snapshot(time.Since(start))
}

func stream(ctx context.Context, client *http.Client, url string, c *counters) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		c.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.connectErrs.Add(1)
		return
	}

	c.connected.Add(1)
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() == nil {
				c.streamErrs.Add(1)
			}
			return
		}
		// heartbeats start with ':' and are not counted
		switch {
		case strings.HasPrefix(line, "event: no_data"):
			c.noData.Add(1)
		case strings.HasPrefix(line, "event: "):
			c.events.Add(1)
		}
	}
}
