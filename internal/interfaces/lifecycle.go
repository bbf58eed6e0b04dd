package interfaces

import "context"

// SystemStatus represents the current system state
type SystemStatus struct {
	State            string `json:"state"`
	Environment      string `json:"environment"`
	SessionBackend   string `json:"session_backend"`
	ConnectedClients int    `json:"connected_clients"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

type LifecycleManager interface {
	GetCurrentStatus() SystemStatus
	Shutdown(ctx context.Context) error
}
