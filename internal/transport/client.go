// Package transport owns the persistent WebSocket connection to the match
// server. It frames typed messages, keeps the link alive with app-level
// PING/PONG, and reconnects with linear backoff when the link drops for a
// retryable reason.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/contender-app/battle-client/pkg/types"
)

// Status is the connection lifecycle as seen by the UI layer.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusClosed       Status = "closed" // deliberate local close
	StatusFailed       Status = "failed" // retries exhausted or non-retryable
)

// Config fixes one client's endpoint and retry policy.
type Config struct {
	BaseURL      string // e.g. ws://localhost:8080
	GameID       int
	PlayerID     int
	BaseDelay    time.Duration // reconnect delay is BaseDelay * attempt number
	MaxAttempts  int
	PingInterval time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig fills the retry and keepalive policy.
func DefaultConfig(baseURL string, gameID, playerID int) Config {
	return Config{
		BaseURL:      baseURL,
		GameID:       gameID,
		PlayerID:     playerID,
		BaseDelay:    time.Second,
		MaxAttempts:  5,
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Client is one match session's connection. Construct with New, drive with
// Run, stop with Close. One instance per (game id, player id) pair.
type Client struct {
	cfg    Config
	clock  clockwork.Clock
	logger *zap.Logger

	inbox    chan types.Message
	statusCh chan Status
	sendCh   chan types.Message

	closeOnce chan struct{} // closed by Close; suppresses reconnection
}

// New builds a client. Run must be called before Send delivers anything.
func New(cfg Config, clk clockwork.Clock, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:       cfg,
		clock:     clk,
		logger:    logger,
		inbox:     make(chan types.Message, 64),
		statusCh:  make(chan Status, 8),
		sendCh:    make(chan types.Message, 64),
		closeOnce: make(chan struct{}),
	}
}

// Messages delivers decoded inbound frames in arrival order.
func (c *Client) Messages() <-chan types.Message { return c.inbox }

// StatusChanges delivers connection lifecycle transitions.
func (c *Client) StatusChanges() <-chan Status { return c.statusCh }

// Send enqueues an outbound message. Drops with a warning if the outbound
// buffer is full rather than blocking the caller.
func (c *Client) Send(msg types.Message) {
	select {
	case c.sendCh <- msg:
	default:
		c.logger.Warn("outbound buffer full, dropping message", zap.Any("msg", msg))
	}
}

// Close deliberately tears the connection down. No reconnection follows.
func (c *Client) Close() {
	select {
	case <-c.closeOnce:
	default:
		close(c.closeOnce)
	}
}

// Run dials and services the connection until ctx is cancelled, Close is
// called, retries are exhausted, or the server rejects the session with a
// non-retryable close. The inbox is closed on return.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.inbox)

	url := fmt.Sprintf("%s/ws/%d?player_id=%d", c.cfg.BaseURL, c.cfg.GameID, c.cfg.PlayerID)
	attempt := 0

	for {
		if c.manuallyClosed() || ctx.Err() != nil {
			c.setStatus(StatusClosed)
			return nil
		}

		conn, err := c.dial(ctx, url)
		if err != nil {
			attempt++
			if retryErr := c.backoff(ctx, attempt, err); retryErr != nil {
				return retryErr
			}
			continue
		}

		attempt = 0
		c.setStatus(StatusConnected)
		c.logger.Info("connected", zap.String("url", url))

		err = c.serve(ctx, conn)

		if c.manuallyClosed() || ctx.Err() != nil {
			c.setStatus(StatusClosed)
			return nil
		}
		if isNonRetryable(err) {
			c.setStatus(StatusFailed)
			return fmt.Errorf("server rejected session: %w", err)
		}

		attempt++
		if retryErr := c.backoff(ctx, attempt, err); retryErr != nil {
			return retryErr
		}
	}
}

func (c *Client) dial(ctx context.Context, url string) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, url, nil)
	return conn, err
}

// serve pumps one live connection: a writer goroutine drains sendCh and
// keeps the link alive; the read loop decodes frames into the inbox.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	// Unblock the read loop when Close is called mid-read.
	go func() {
		select {
		case <-c.closeOnce:
			conn.Close(websocket.StatusNormalClosure, "client closed")
		case <-connCtx.Done():
		}
	}()

	go c.writeLoop(connCtx, conn)

	for {
		_, data, err := conn.Read(connCtx)
		if err != nil {
			return err
		}
		msg, err := types.Decode(data)
		if err != nil {
			c.logger.Warn("dropping undecodable frame", zap.Error(err))
			continue
		}
		select {
		case c.inbox <- msg:
		case <-connCtx.Done():
			return connCtx.Err()
		}
	}
}

func (c *Client) writeLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := c.clock.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.sendCh:
			if err := c.write(ctx, conn, msg); err != nil {
				c.logger.Warn("write failed", zap.Error(err))
				return
			}
		case <-ticker.Chan():
			if err := c.write(ctx, conn, types.Ping{}); err != nil {
				c.logger.Warn("keepalive failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) write(ctx context.Context, conn *websocket.Conn, msg types.Message) error {
	data, err := types.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

// backoff waits BaseDelay * attempt before the next dial. Returns an error
// when retries are exhausted or the wait is interrupted.
func (c *Client) backoff(ctx context.Context, attempt int, cause error) error {
	if attempt > c.cfg.MaxAttempts {
		c.setStatus(StatusFailed)
		return fmt.Errorf("giving up after %d attempts: %w", c.cfg.MaxAttempts, cause)
	}
	delay := time.Duration(attempt) * c.cfg.BaseDelay
	c.setStatus(StatusReconnecting)
	c.logger.Info("reconnecting",
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
		zap.Error(cause))

	select {
	case <-c.clock.After(delay):
		return nil
	case <-c.closeOnce:
		c.setStatus(StatusClosed)
		return nil
	case <-ctx.Done():
		c.setStatus(StatusClosed)
		return nil
	}
}

func (c *Client) manuallyClosed() bool {
	select {
	case <-c.closeOnce:
		return true
	default:
		return false
	}
}

func (c *Client) setStatus(s Status) {
	select {
	case c.statusCh <- s:
	default:
		// A stalled listener must not stall the connection.
	}
}

// isNonRetryable reports whether the close reason indicates a guaranteed
// failure. The server closes with policy violation (1008) for an unknown
// game, a player outside the match, or a malformed player id; redialing
// those would loop forever against the same rejection.
func isNonRetryable(err error) bool {
	if err == nil {
		return false
	}
	return websocket.CloseStatus(err) == websocket.StatusPolicyViolation
}
