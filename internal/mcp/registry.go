package mcp

import (
	"sort"
	"sync"

	"github.com/alertops/alertops/internal/config"
)

// ConnState represents the connection lifecycle of a registered server:
// absent -> pending -> connected -> pending (failure) or absent (cleanup).
type ConnState int

const (
	// StateAbsent indicates no connection has ever been attempted, or it
	// was removed by cleanup
	StateAbsent ConnState = iota
	// StatePending indicates the server is configured but not connected
	// (startup failure or a call-path disconnect); lazy connect will run
	// on next use
	StatePending
	// StateConnected indicates a live session is available
	StateConnected
)

// String returns the string representation of the connection state
func (s ConnState) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StatePending:
		return "pending"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Connection represents a live (or assumed-live) session to one server.
// It is owned exclusively by the registry entry for that server.
type Connection struct {
	Transport Transport
	Config    *config.MCPServerConfig
	Connected bool
}

// Registry holds static configuration and live connection state for every
// configured tool server. One execution slot per server is allocated at
// registration time and never removed for the process lifetime, so slot
// lookup is race-free even under concurrent calls.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]*config.MCPServerConfig
	conns   map[string]*Connection
	states  map[string]ConnState
	slots   map[string]*sync.Mutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		configs: make(map[string]*config.MCPServerConfig),
		conns:   make(map[string]*Connection),
		states:  make(map[string]ConnState),
		slots:   make(map[string]*sync.Mutex),
	}
}

// NewRegistryFromConfig builds a registry from the configured server map
func NewRegistryFromConfig(servers map[string]*config.MCPServerConfig) (*Registry, error) {
	r := NewRegistry()
	for name, serverConfig := range servers {
		if err := r.Register(name, serverConfig); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a server and allocates its execution slot
func (r *Registry) Register(name string, serverConfig *config.MCPServerConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.configs[name]; exists {
		return &DuplicateServerError{Server: name}
	}

	r.configs[name] = serverConfig
	r.states[name] = StateAbsent
	r.slots[name] = &sync.Mutex{}
	return nil
}

// Lookup returns the configuration for a server
func (r *Registry) Lookup(name string) (*config.MCPServerConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	serverConfig, exists := r.configs[name]
	if !exists {
		return nil, &UnknownServerError{Server: name}
	}
	return serverConfig, nil
}

// IsEnabled reports whether a server may be used for calls. Unknown
// servers report false; Lookup distinguishes the two conditions.
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	serverConfig, exists := r.configs[name]
	return exists && serverConfig.Enabled
}

// State returns the connection state for a server
func (r *Registry) State(name string) ConnState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.states[name]
}

// MarkConnected records a live connection for a server
func (r *Registry) MarkConnected(name string, transport Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	serverConfig := r.configs[name]
	if serverConfig == nil {
		return
	}
	r.conns[name] = &Connection{
		Transport: transport,
		Config:    serverConfig,
		Connected: true,
	}
	r.states[name] = StateConnected
}

// MarkPending records that a server is configured but not connected;
// the next call will attempt a lazy connect
func (r *Registry) MarkPending(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.configs[name]; !exists {
		return
	}
	if conn := r.conns[name]; conn != nil {
		conn.Connected = false
	}
	delete(r.conns, name)
	r.states[name] = StatePending
}

// MarkDisconnected removes a server's connection entirely (cleanup)
func (r *Registry) MarkDisconnected(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.configs[name]; !exists {
		return
	}
	if conn := r.conns[name]; conn != nil {
		conn.Connected = false
	}
	delete(r.conns, name)
	r.states[name] = StateAbsent
}

// Connection returns the live connection for a server, if any
func (r *Registry) Connection(name string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.conns[name]
	return conn, exists
}

// ConnectedServers returns the sorted names of servers currently connected
func (r *Registry) ConnectedServers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.conns))
	for name, conn := range r.conns {
		if conn.Connected {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Names returns the sorted names of all registered servers
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Slot returns the per-server execution slot. Slots exist for the
// process lifetime once registered; callers must not hold the registry's
// internal lock while blocking on a slot.
func (r *Registry) Slot(name string) *sync.Mutex {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slots[name]
}
