// ABOUTME: WebSocket client for the discovery gateway
// ABOUTME: Handles connection, handshake and routing of discovery events
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/Resonate-Protocol/bonjour-go/internal/protocol"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrNotConnected is returned when sending on a closed client
var ErrNotConnected = errors.New("not connected")

const handshakeTimeout = 5 * time.Second

// Config holds client configuration
type Config struct {
	ServerAddr string
	Logger     *zap.Logger
}

// Client is a gateway connection
type Client struct {
	config Config
	logger *zap.Logger
	conn   *websocket.Conn
	mu     sync.RWMutex

	// Hello is the gateway's greeting, set by Connect
	Hello protocol.ServerHello

	// Message channels
	Services           chan protocol.Service
	DiscoveryFinished  chan protocol.DiscoveryFinished
	ResolutionFinished chan protocol.ResolutionFinished
	NoServices         chan protocol.NoServices
	Errors             chan protocol.ServerError

	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new gateway client
func NewClient(config Config) *Client {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:             config,
		logger:             config.Logger,
		Services:           make(chan protocol.Service, 100),
		DiscoveryFinished:  make(chan protocol.DiscoveryFinished, 1),
		ResolutionFinished: make(chan protocol.ResolutionFinished, 1),
		NoServices:         make(chan protocol.NoServices, 1),
		Errors:             make(chan protocol.ServerError, 10),
		ctx:                ctx,
		cancel:             cancel,
	}
}

// Connect dials the gateway and waits for server/hello
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: "/discover"}
	c.logger.Info("connecting", zap.String("url", u.String()))

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

func (c *Client) handshake() error {
	_ = c.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	var msg protocol.Message
	if err := c.conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	_ = c.conn.SetReadDeadline(time.Time{})

	if msg.Type != protocol.TypeServerHello {
		return fmt.Errorf("expected %s, got %s", protocol.TypeServerHello, msg.Type)
	}
	if err := protocol.DecodePayload(msg.Payload, &c.Hello); err != nil {
		return err
	}

	c.logger.Info("handshake complete",
		zap.String("gateway", c.Hello.Name),
		zap.String("software", c.Hello.Software))
	return nil
}

// Start asks the gateway to search for serviceType
func (c *Client) Start(req protocol.DiscoveryStart) error {
	return c.sendJSON(protocol.Message{Type: protocol.TypeDiscoveryStart, Payload: req})
}

// Stop cancels the running search
func (c *Client) Stop() error {
	return c.sendJSON(protocol.Message{Type: protocol.TypeDiscoveryStop})
}

func (c *Client) sendJSON(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrNotConnected
	}
	return c.conn.WriteJSON(msg)
}

func (c *Client) readMessages() {
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.logger.Debug("read error", zap.Error(err))
			}
			return
		}
		c.handleJSONMessage(data)
	}
}

// handleJSONMessage routes JSON messages
func (c *Client) handleJSONMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("failed to parse message", zap.Error(err))
		return
	}

	switch msg.Type {
	case protocol.TypeService:
		var svc protocol.Service
		if c.decode(msg, &svc) {
			deliver(c.ctx, c.Services, svc)
		}

	case protocol.TypeDiscoveryFinished:
		var fin protocol.DiscoveryFinished
		if c.decode(msg, &fin) {
			deliver(c.ctx, c.DiscoveryFinished, fin)
		}

	case protocol.TypeResolutionFinished:
		var fin protocol.ResolutionFinished
		if c.decode(msg, &fin) {
			deliver(c.ctx, c.ResolutionFinished, fin)
		}

	case protocol.TypeNoServices:
		var none protocol.NoServices
		if c.decode(msg, &none) {
			deliver(c.ctx, c.NoServices, none)
		}

	case protocol.TypeServerError:
		var serverErr protocol.ServerError
		if c.decode(msg, &serverErr) {
			deliver(c.ctx, c.Errors, serverErr)
		}

	default:
		c.logger.Debug("unknown message type", zap.String("type", msg.Type))
	}
}

func (c *Client) decode(msg protocol.Message, v interface{}) bool {
	if err := protocol.DecodePayload(msg.Payload, v); err != nil {
		c.logger.Warn("bad payload", zap.String("type", msg.Type), zap.Error(err))
		return false
	}
	return true
}

func deliver[T any](ctx context.Context, ch chan<- T, v T) {
	select {
	case ch <- v:
	case <-ctx.Done():
	}
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		_ = c.conn.Close()
		c.logger.Info("connection closed")
	}
}

// Done is closed once the connection is closed
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
