package hub

import (
	"sort"
	"time"

	"github.com/harshhpatil/recipegramapp-sub000/internal/model"
)

// MonitorService provides methods to gather hub statistics
type MonitorService struct {
	hub *Hub
}

// NewMonitorService creates a new monitor service
func NewMonitorService(hub *Hub) *MonitorService {
	return &MonitorService{hub: hub}
}

// GetStats gathers and returns all hub statistics
func (ms *MonitorService) GetStats() model.MonitorResponse {
	snapshot := ms.hub.registry.Snapshot()

	connectionStats := ms.getConnectionStats(snapshot)
	clients := ms.getClientList(snapshot)

	// Determine overall health status
	status := "healthy"
	if connectionStats.TotalConnected == 0 {
		status = "idle"
	}

	brokerMode := "local"
	if ms.hub.broker != nil {
		brokerMode = "redis"
	}

	return model.MonitorResponse{
		Status:      status,
		InstanceID:  ms.hub.opts.InstanceID,
		Broker:      brokerMode,
		Queued:      connectionStats.Queued,
		Connections: connectionStats,
		Clients:     clients,
	}
}

func (ms *MonitorService) getConnectionStats(snapshot []*Client) model.ConnectionStats {
	stats := model.ConnectionStats{
		TotalConnected: len(snapshot),
		ByState: map[string]int{
			StateAuthenticated.String(): 0,
			StateJoined.String():        0,
			StateActive.String():        0,
		},
	}

	for _, client := range snapshot {
		stats.Queued += len(client.inbound)
		stats.ByState[client.State().String()]++
		if client.Joined() {
			stats.TotalJoined++
		}
	}

	return stats
}

// getClientList returns connected clients, oldest connection first
func (ms *MonitorService) getClientList(snapshot []*Client) []model.ClientInfo {
	clients := make([]model.ClientInfo, 0, len(snapshot))

	for _, client := range snapshot {
		clients = append(clients, model.ClientInfo{
			ClientID:    client.ID,
			UserID:      client.userID,
			Username:    client.username,
			State:       client.State().String(),
			ConnectedAt: client.connectedAt.Format(time.RFC3339),
		})
	}

	sort.Slice(clients, func(i, j int) bool {
		return clients[i].ConnectedAt < clients[j].ConnectedAt
	})
	return clients
}
