// ABOUTME: Discovery gateway message type definitions
// ABOUTME: JSON envelopes exchanged over the /discover websocket
package protocol

import (
	"encoding/json"
	"fmt"
)

// Version is the gateway protocol version sent in server/hello
const Version = 1

// Message types
const (
	TypeServerHello        = "server/hello"
	TypeServerError        = "server/error"
	TypeDiscoveryStart     = "discovery/start"
	TypeDiscoveryStop      = "discovery/stop"
	TypeService            = "discovery/service"
	TypeDiscoveryFinished  = "discovery/finished"
	TypeResolutionFinished = "resolution/finished"
	TypeNoServices         = "discovery/none"
)

// Error codes carried by server/error
const (
	ErrorAlreadySearching = "already_searching"
	ErrorInvalidRequest   = "invalid_request"
	ErrorUnknownType      = "unknown_type"
	ErrorBrowse           = "browse_failed"
)

// Message is the top-level wrapper for all gateway messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// DecodePayload converts a generic decoded payload into v
func DecodePayload(payload interface{}, v interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}

// ServerHello is sent by the gateway when a client connects
type ServerHello struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
	Software string `json:"software,omitempty"`
}

// ServerError reports a rejected request
type ServerError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// DiscoveryStart asks the gateway to search for a service type
type DiscoveryStart struct {
	ServiceType string `json:"service_type"`
	Domain      string `json:"domain,omitempty"`

	// Select is a path.Match pattern limiting which instances get resolved
	Select string `json:"select,omitempty"`
}

// Service is one resolved service instance
type Service struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"` // "a.b.c.d:port"
	Port      int    `json:"port"`
}

// DiscoveryFinished lists every instance the browse reported
type DiscoveryFinished struct {
	SessionID string   `json:"session_id"`
	Services  []string `json:"services"`
}

// ResolutionFinished marks the end of a search
type ResolutionFinished struct {
	SessionID string   `json:"session_id"`
	Services  []string `json:"services"`
}

// NoServices reports a search that timed out without results
type NoServices struct {
	SessionID string `json:"session_id"`
}
