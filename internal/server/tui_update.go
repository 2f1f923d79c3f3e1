// ABOUTME: TUI update helpers for the gateway
// ABOUTME: Snapshot client sessions into a ServerStatus
package server

import "sort"

// status builds a snapshot of the gateway state
func (s *Server) status() ServerStatus {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	clients := make([]ClientInfo, 0, len(s.clients))
	for _, client := range s.clients {
		client.mu.RLock()
		clients = append(clients, ClientInfo{
			ID:          client.ID,
			Remote:      client.Remote,
			ServiceType: client.serviceType,
			Phase:       client.phase.String(),
			Found:       client.found,
		})
		client.mu.RUnlock()
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].Remote < clients[j].Remote })

	return ServerStatus{
		Name:    s.config.Name,
		Listen:  s.config.Listen,
		Cached:  s.cache.Len(),
		Clients: clients,
	}
}

// updateTUI sends current gateway state to the TUI
func (s *Server) updateTUI() {
	if s.tui == nil {
		return
	}
	s.tui.Update(s.status())
}
