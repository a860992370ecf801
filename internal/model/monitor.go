package model

// -----------------------------------------------------------------
// Monitor API Response Models
// -----------------------------------------------------------------

// MonitorResponse is the main response for the monitor API
type MonitorResponse struct {
	Status      string          `json:"status"`      // "healthy" or "idle"
	InstanceID  string          `json:"instanceId"`  // this gateway instance
	Broker      string          `json:"broker"`      // "local" or "redis"
	Queued      int             `json:"queued"`      // inbound events awaiting dispatch
	Connections ConnectionStats `json:"connections"` // Client connection stats
	Clients     []ClientInfo    `json:"clients"`     // List of connected clients
}

// ConnectionStats holds connection-related statistics
type ConnectionStats struct {
	TotalConnected int            `json:"totalConnected"` // Registered connections
	TotalJoined    int            `json:"totalJoined"`    // Connections subscribed to their private channel
	Queued         int            `json:"queued"`         // Inbound events awaiting dispatch, all connections
	ByState        map[string]int `json:"byState"`        // Count by connection state
}

// ClientInfo contains information about a connected client
type ClientInfo struct {
	ClientID    string `json:"clientId"`
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	State       string `json:"state"`
	ConnectedAt string `json:"connectedAt"` // ISO timestamp
}
