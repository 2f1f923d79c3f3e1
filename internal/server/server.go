// ABOUTME: Discovery gateway server
// ABOUTME: Runs one discovery session per WebSocket connection and caches resolved services
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Resonate-Protocol/bonjour-go/internal/metrics"
	"github.com/Resonate-Protocol/bonjour-go/internal/protocol"
	"github.com/Resonate-Protocol/bonjour-go/internal/version"
	"github.com/Resonate-Protocol/bonjour-go/pkg/discovery"
	"github.com/Resonate-Protocol/bonjour-go/pkg/facility"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// AdvertiseService is the service type the gateway announces itself under
const AdvertiseService = "_bonjour-gw._tcp."

const (
	defaultCacheSize = 256
	loopQueueSize    = 64
	sendQueueSize    = 100
	writeDeadline    = 10 * time.Second
	pingInterval     = 30 * time.Second
)

// FacilityFactory creates the facility backing one connection's session
type FacilityFactory func(d discovery.Dispatcher) (facility.Closer, error)

// Config holds server configuration
type Config struct {
	Listen     string
	Name       string
	Timeout    time.Duration
	CacheSize  int
	EnableMDNS bool
	UseTUI     bool

	Logger  *zap.Logger
	Metrics *metrics.Collector

	// NewFacility defaults to facility.New with Backend and Facility
	NewFacility FacilityFactory
	Backend     string
	Facility    facility.Options
}

// Server is the discovery gateway
type Server struct {
	config   Config
	serverID string
	logger   *zap.Logger

	upgrader websocket.Upgrader

	httpServer *http.Server
	mux        *http.ServeMux

	cache *lru.Cache[string, protocol.Service]

	clients   map[string]*Client
	clientsMu sync.RWMutex

	advertiser *facility.Advertiser
	tui        *ServerTUI

	ctx    context.Context
	cancel context.CancelFunc

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Client is one connected gateway client and its discovery session
type Client struct {
	ID     string
	Remote string
	Conn   *websocket.Conn

	loop     *discovery.Loop
	session  *discovery.Session
	facility facility.Closer
	selector string

	// written on the loop, read by the TUI
	mu          sync.RWMutex
	serviceType string
	phase       discovery.Phase
	found       int

	sendMu   sync.Mutex
	closed   bool
	sendChan chan interface{}
}

// New creates a new server instance
func New(config Config) (*Server, error) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Name == "" {
		config.Name = version.Product
	}
	if config.CacheSize <= 0 {
		config.CacheSize = defaultCacheSize
	}
	if config.Timeout <= 0 {
		config.Timeout = discovery.DefaultTimeout
	}
	if config.NewFacility == nil {
		backend, opts := config.Backend, config.Facility.Bounded(config.Timeout)
		if opts.Logger == nil {
			opts.Logger = config.Logger
		}
		config.NewFacility = func(d discovery.Dispatcher) (facility.Closer, error) {
			return facility.New(backend, d, opts)
		}
	}

	cache, err := lru.New[string, protocol.Service](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		ctx:      ctx,
		cancel:   cancel,
		config:   config,
		serverID: uuid.New().String(),
		logger:   config.Logger,
		upgrader: websocket.Upgrader{
			// the gateway serves trusted local networks only
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		cache:    cache,
		clients:  make(map[string]*Client),
		stopChan: make(chan struct{}),
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/discover", s.handleWebSocket)
	s.mux.HandleFunc("/services", s.handleServices)
	if config.Metrics != nil {
		s.mux.Handle("/metrics", config.Metrics.Handler())
	}

	return s, nil
}

// Handler returns the gateway's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until Stop is called, the TUI quits or the listener fails
func (s *Server) Start() error {
	s.logger.Info("gateway starting",
		zap.String("name", s.config.Name),
		zap.String("id", s.serverID),
		zap.String("listen", s.config.Listen))

	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	if s.config.UseTUI {
		s.tui = NewServerTUI()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.tui.Start(s.config.Name, ln.Addr().String()); err != nil {
				s.logger.Error("TUI failed", zap.Error(err))
			}
		}()
	}

	if s.config.EnableMDNS {
		s.startAdvertising(ln.Addr())
	}

	s.httpServer = &http.Server{Handler: s.mux}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var tuiQuitChan <-chan struct{}
	if s.tui != nil {
		tuiQuitChan = s.tui.QuitChan()
	}

	var serverErr error
	select {
	case <-s.stopChan:
		s.logger.Info("gateway shutting down")
	case <-tuiQuitChan:
		s.logger.Info("TUI quit requested, shutting down")
	case err := <-errChan:
		s.logger.Error("HTTP server error", zap.Error(err))
		serverErr = fmt.Errorf("HTTP server failed: %w", err)
	}

	return multierr.Append(serverErr, s.shutdown())
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

func (s *Server) startAdvertising(addr net.Addr) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return
	}

	adv, err := facility.Advertise(facility.AdvertiseConfig{
		Instance: s.config.Name,
		Service:  AdvertiseService,
		Port:     tcp.Port,
		Text:     []string{"path=/discover", "version=" + strconv.Itoa(protocol.Version)},
		Logger:   s.logger,
	})
	if err != nil {
		s.logger.Warn("failed to start mDNS advertisement", zap.Error(err))
		return
	}
	s.advertiser = adv
}

func (s *Server) shutdown() error {
	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.tui != nil {
		s.tui.Stop()
	}

	var err error
	if s.advertiser != nil {
		err = multierr.Append(err, s.advertiser.Shutdown())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.httpServer != nil {
		err = multierr.Append(err, s.httpServer.Shutdown(ctx))
	}

	// hijacked websocket connections are not closed by Shutdown
	s.cancel()

	s.wg.Wait()
	s.logger.Info("gateway stopped cleanly")
	return err
}

// handleServices serves the cache of recently resolved services
func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	services := s.cache.Values()
	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(services); err != nil {
		s.logger.Warn("failed to write services", zap.Error(err))
	}
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.shutdownMu.RUnlock()
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade error", zap.Error(err))
		return
	}

	s.logger.Info("new WebSocket connection", zap.String("remote", r.RemoteAddr))

	s.handleConnection(conn, r.RemoteAddr)
}

// handleConnection manages a client connection and its session
func (s *Server) handleConnection(conn *websocket.Conn, remote string) {
	defer conn.Close()

	client := &Client{
		ID:       uuid.New().String(),
		Remote:   remote,
		Conn:     conn,
		loop:     discovery.NewLoop(loopQueueSize),
		sendChan: make(chan interface{}, sendQueueSize),
	}
	log := s.logger.With(zap.String("client", client.ID))

	fac, err := s.config.NewFacility(client.loop)
	if err != nil {
		log.Error("failed to create facility", zap.Error(err))
		data, _ := json.Marshal(protocol.Message{
			Type:    protocol.TypeServerError,
			Payload: protocol.ServerError{Error: protocol.ErrorBrowse, Message: err.Error()},
		})
		_ = conn.WriteMessage(websocket.TextMessage, data)
		return
	}
	client.facility = fac

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-s.ctx.Done():
			_ = conn.Close()
		case <-ctx.Done():
		}
	}()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = client.loop.Run(ctx)
	}()

	client.session = s.newSession(client, log)

	s.clientsMu.Lock()
	s.clients[client.ID] = client
	s.clientsMu.Unlock()
	s.updateTUI()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.clientWriter(client, log)
	}()

	defer func() {
		_ = client.loop.Call(client.session.Dispose)
		cancel()
		<-loopDone
		if err := client.facility.Close(); err != nil {
			log.Warn("facility close failed", zap.Error(err))
		}

		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		s.clientsMu.Unlock()

		client.closeSend()
		<-writerDone
		log.Info("client disconnected")
		s.updateTUI()
	}()

	hello := protocol.ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  protocol.Version,
		Software: version.String(),
	}
	if err := client.send(protocol.TypeServerHello, hello); err != nil {
		log.Warn("error sending server hello", zap.Error(err))
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn("WebSocket error", zap.Error(err))
			}
			return
		}

		s.handleClientMessage(client, log, data)
	}
}

// newSession builds the client's session; its callbacks run on client.loop
func (s *Server) newSession(client *Client, log *zap.Logger) *discovery.Session {
	config := discovery.Config{
		Timeout:    s.config.Timeout,
		Dispatcher: client.loop,
		Logger:     log,
		Selector: func(h discovery.Handle) bool {
			if client.selector == "" {
				return true
			}
			return matchName(client.selector, h.Name())
		},
		OnNoServicesFound: func() {
			client.setPhase(discovery.PhaseIdle, 0)
			client.trySend(log, protocol.TypeNoServices, protocol.NoServices{
				SessionID: client.session.ID().String(),
			})
			s.updateTUI()
		},
		OnDiscoveryFinished: func(all []discovery.Handle) {
			client.setPhase(discovery.PhaseDraining, len(all))
			client.trySend(log, protocol.TypeDiscoveryFinished, protocol.DiscoveryFinished{
				SessionID: client.session.ID().String(),
				Services:  names(all),
			})
			s.updateTUI()
		},
		OnResolutionFinished: func(all []discovery.Handle) {
			client.setPhase(discovery.PhaseIdle, len(all))
			client.trySend(log, protocol.TypeResolutionFinished, protocol.ResolutionFinished{
				SessionID: client.session.ID().String(),
				Services:  names(all),
			})
			s.updateTUI()
		},
	}
	if s.config.Metrics != nil {
		config.Observer = s.config.Metrics
	}

	return discovery.NewSession(client.facility, config)
}

// handleClientMessage processes messages from clients
func (s *Server) handleClientMessage(client *Client, log *zap.Logger, data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn("error unmarshaling message", zap.Error(err))
		client.trySend(log, protocol.TypeServerError, protocol.ServerError{
			Error:   protocol.ErrorInvalidRequest,
			Message: "malformed message",
		})
		return
	}

	switch msg.Type {
	case protocol.TypeDiscoveryStart:
		s.handleStart(client, log, msg.Payload)
	case protocol.TypeDiscoveryStop:
		if err := client.loop.Call(func() {
			client.session.Stop()
			client.setPhase(discovery.PhaseIdle, -1)
		}); err != nil {
			log.Warn("stop failed", zap.Error(err))
		}
		s.updateTUI()
	default:
		log.Debug("unknown message type", zap.String("type", msg.Type))
		client.trySend(log, protocol.TypeServerError, protocol.ServerError{
			Error:   protocol.ErrorUnknownType,
			Message: fmt.Sprintf("unknown message type %q", msg.Type),
		})
	}
}

func (s *Server) handleStart(client *Client, log *zap.Logger, payload interface{}) {
	var start protocol.DiscoveryStart
	if err := protocol.DecodePayload(payload, &start); err != nil {
		client.trySend(log, protocol.TypeServerError, protocol.ServerError{
			Error:   protocol.ErrorInvalidRequest,
			Message: err.Error(),
		})
		return
	}
	if start.Select != "" && !validPattern(start.Select) {
		client.trySend(log, protocol.TypeServerError, protocol.ServerError{
			Error:   protocol.ErrorInvalidRequest,
			Message: fmt.Sprintf("invalid select pattern %q", start.Select),
		})
		return
	}

	var startErr error
	err := client.loop.Call(func() {
		if client.session.IsSearching() {
			startErr = discovery.ErrAlreadySearching
			return
		}
		client.selector = start.Select
		startErr = client.session.Start(start.ServiceType, start.Domain, func(rec discovery.ServiceRecord) {
			s.serviceResolved(client, log, start.ServiceType, rec)
		})
		if startErr != nil {
			return
		}
		// session callbacks queue behind this call and see the new phase
		client.mu.Lock()
		client.serviceType = start.ServiceType
		client.mu.Unlock()
		client.setPhase(discovery.PhaseSearching, 0)
	})
	if err == nil {
		err = startErr
	}

	if err != nil {
		code := protocol.ErrorBrowse
		switch {
		case errors.Is(err, discovery.ErrAlreadySearching):
			code = protocol.ErrorAlreadySearching
		case errors.Is(err, discovery.ErrInvalidServiceType):
			code = protocol.ErrorInvalidRequest
		}
		client.trySend(log, protocol.TypeServerError, protocol.ServerError{Error: code, Message: err.Error()})
		return
	}

	s.updateTUI()
}

// serviceResolved runs on the client's loop
func (s *Server) serviceResolved(client *Client, log *zap.Logger, serviceType string, rec discovery.ServiceRecord) {
	svc := protocol.Service{
		SessionID: client.session.ID().String(),
		Name:      rec.Name,
		Address:   rec.Address,
		Port:      rec.Port,
	}
	s.cache.Add(serviceType+"/"+rec.Name, svc)
	client.trySend(log, protocol.TypeService, svc)
}

// clientWriter sends messages to the client
func (s *Server) clientWriter(client *Client, log *zap.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				log.Warn("error marshaling message", zap.Error(err))
				continue
			}
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("error writing message", zap.Error(err))
				_ = client.Conn.Close()
				drain(client.sendChan)
				return
			}

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				_ = client.Conn.Close()
				drain(client.sendChan)
				return
			}
		}
	}
}

// send queues a JSON message for the client
func (c *Client) send(msgType string, payload interface{}) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return errors.New("client closed")
	}

	select {
	case c.sendChan <- protocol.Message{Type: msgType, Payload: payload}:
		return nil
	default:
		return errors.New("client send buffer full")
	}
}

func (c *Client) trySend(log *zap.Logger, msgType string, payload interface{}) {
	if err := c.send(msgType, payload); err != nil {
		log.Warn("dropping message", zap.String("type", msgType), zap.Error(err))
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.sendChan)
	}
}

// setPhase records display state; found < 0 keeps the previous count
func (c *Client) setPhase(phase discovery.Phase, found int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.phase = phase
	if found >= 0 {
		c.found = found
	}
}

func drain(ch <-chan interface{}) {
	for range ch {
	}
}

func names(handles []discovery.Handle) []string {
	out := make([]string, len(handles))
	for i, h := range handles {
		out[i] = h.Name()
	}
	return out
}
