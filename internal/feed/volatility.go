/*

This file contains the volatility feed client: a websocket consumer that
streams volatility samples from a configured endpoint into the engine. The
engine treats the feed as an untrusted collaborator, so out-of-order or
malformed frames are dropped here and never reach the monitor.

*/

package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/adaptive-vault/aev/internal/logger"
)

// ApplyFunc delivers one validated sample to the engine.
type ApplyFunc func(sampleBps int64, timestamp time.Time) error

// Frame is the wire format of one volatility sample.
type Frame struct {
	Timestamp     int64 `json:"timestamp"` // unix seconds
	VolatilityBps int64 `json:"volatility_bps"`
}

// Client consumes a volatility websocket stream and applies each sample.
type Client struct {
	url            string
	apply          ApplyFunc
	reconnectDelay time.Duration
	maxDelay       time.Duration
	logger         zerolog.Logger
}

// NewClient creates a feed client. Reconnection backoff starts at
// reconnectDelay and doubles up to thirty seconds.
func NewClient(url string, apply ApplyFunc) *Client {
	return &Client{
		url:            url,
		apply:          apply,
		reconnectDelay: time.Second,
		maxDelay:       30 * time.Second,
		logger:         logger.GetForComponent("volatility_feed"),
	}
}

// Run consumes the stream until the context is cancelled, reconnecting with
// exponential backoff after any connection failure.
func (c *Client) Run(ctx context.Context) {
	c.logger.Info().Str("url", c.url).Msg("Starting volatility feed")

	delay := c.reconnectDelay
	for {
		if ctx.Err() != nil {
			c.logger.Info().Msg("Volatility feed stopped")
			return
		}

		err := c.consume(ctx)
		if ctx.Err() != nil {
			c.logger.Info().Msg("Volatility feed stopped")
			return
		}
		c.logger.Warn().Err(err).Dur("retryIn", delay).Msg("Feed connection lost, reconnecting")

		select {
		case <-ctx.Done():
			c.logger.Info().Msg("Volatility feed stopped")
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.maxDelay {
			delay = c.maxDelay
		}
	}
}

// consume dials once and reads frames until the connection drops.
func (c *Client) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.logger.Info().Msg("Feed connected")

	// Close the connection when the context is cancelled so the blocking
	// read below returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var frame Frame
		if err := json.Unmarshal(payload, &frame); err != nil {
			c.logger.Warn().Err(err).Msg("Dropping malformed feed frame")
			continue
		}
		if frame.Timestamp <= 0 || frame.VolatilityBps < 0 {
			c.logger.Warn().
				Int64("timestamp", frame.Timestamp).
				Int64("volatilityBps", frame.VolatilityBps).
				Msg("Dropping invalid feed frame")
			continue
		}

		if err := c.apply(frame.VolatilityBps, time.Unix(frame.Timestamp, 0).UTC()); err != nil {
			// Stale samples come from replayed streams after a reconnect.
			c.logger.Warn().Err(err).Msg("Sample rejected by engine")
		}
	}
}
