package websocket

import (
	"context"
	"net/http"
	"sync"

	"cosmossdk.io/log"
	"github.com/google/uuid"

	"github.com/openalpha/omnipool/api/middleware"
	"github.com/openalpha/omnipool/metrics"
)

// Server upgrades /ws requests and tracks live connections
type Server struct {
	hub    *Hub
	config *ServerConfig
	logger log.Logger

	connections      map[string]*Client
	connectionsPerIP map[string]int
	connectionsMu    sync.RWMutex

	totalConnections int64
}

// ServerConfig contains server configuration
type ServerConfig struct {
	MaxConnPerIP int        `toml:"max_conn_per_ip"`
	Hub          *HubConfig `toml:"hub"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		MaxConnPerIP: 10,
		Hub:          DefaultHubConfig(),
	}
}

// NewServer creates a new WebSocket server
func NewServer(config *ServerConfig, logger log.Logger) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}

	return &Server{
		hub:              NewHub(config.Hub),
		config:           config,
		logger:           logger.With("module", "websocket"),
		connections:      make(map[string]*Client),
		connectionsPerIP: make(map[string]int),
	}
}

// Run runs the hub until ctx is done
func (s *Server) Run(ctx context.Context) {
	s.hub.Run(ctx)
}

// ServeHTTP upgrades the request to a WebSocket connection
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := middleware.ClientIP(r)

	if !s.reserveIP(ip) {
		http.Error(w, "Too many connections from this IP", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.releaseIP(ip)
		s.logger.Debug("websocket upgrade failed", "ip", ip, "error", err)
		return
	}

	client := NewClient(s.hub, conn, uuid.New().String(), ip, s.logger)

	s.connectionsMu.Lock()
	s.connections[client.GetID()] = client
	s.totalConnections++
	s.connectionsMu.Unlock()
	metrics.GetCollector().RecordWSConnection(1)

	if !enqueue(s.hub, s.hub.register, client) {
		s.unregisterConnection(client)
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(s.unregisterConnection)
}

// reserveIP counts a connection attempt against the per-IP limit
func (s *Server) reserveIP(ip string) bool {
	s.connectionsMu.Lock()
	defer s.connectionsMu.Unlock()

	if s.connectionsPerIP[ip] >= s.config.MaxConnPerIP {
		return false
	}
	s.connectionsPerIP[ip]++
	return true
}

func (s *Server) releaseIP(ip string) {
	s.connectionsMu.Lock()
	defer s.connectionsMu.Unlock()

	s.connectionsPerIP[ip]--
	if s.connectionsPerIP[ip] <= 0 {
		delete(s.connectionsPerIP, ip)
	}
}

func (s *Server) unregisterConnection(client *Client) {
	s.connectionsMu.Lock()
	delete(s.connections, client.GetID())
	s.connectionsMu.Unlock()
	metrics.GetCollector().RecordWSConnection(-1)

	s.releaseIP(client.GetIP())
}

// Hub returns the hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Stats reports connection counters
func (s *Server) Stats() map[string]interface{} {
	s.connectionsMu.RLock()
	defer s.connectionsMu.RUnlock()

	return map[string]interface{}{
		"total_connections":  s.totalConnections,
		"active_connections": len(s.connections),
		"clients":            s.hub.GetClientCount(),
		"channels":           s.hub.GetChannelCount(),
	}
}
