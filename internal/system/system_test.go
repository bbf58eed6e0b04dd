package system

import (
	"context"
	"testing"
	"time"

	"github.com/KevinKickass/FleetView/internal/api/websocket"
	"github.com/KevinKickass/FleetView/internal/config"
	"github.com/KevinKickass/FleetView/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to SystemState
		ok       bool
	}{
		{StateInitializing, StateRunning, true},
		{StateInitializing, StateError, true},
		{StateRunning, StateStopping, true},
		{StateStopping, StateStopped, true},
		{StateError, StateStopping, true},
		{StateRunning, StateInitializing, false},
		{StateStopped, StateRunning, false},
		{StateInitializing, StateStopped, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLifecycle_StartAndShutdown(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Server.HTTPPort = 0
	cfg.Server.GRPCPort = 0

	lm, err := NewLifecycleManager(session.NewMemoryStore(time.Hour), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "INITIALIZING", lm.GetCurrentStatus().State)

	updates := lm.SubscribeStatus()

	require.NoError(t, lm.Start())
	status := lm.GetCurrentStatus()
	assert.Equal(t, "RUNNING", status.State)
	assert.Equal(t, "development", status.Environment)
	assert.Equal(t, "memory", status.SessionBackend)
	assert.Equal(t, 0, status.ConnectedClients)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, lm.Shutdown(ctx))
	assert.Equal(t, "STOPPED", lm.GetCurrentStatus().State)

	var seen []SystemState
	for len(updates) > 0 {
		seen = append(seen, (<-updates).State)
	}
	assert.Equal(t, []SystemState{StateRunning, StateStopping, StateStopped}, seen)

	// a second call is a no-op
	assert.NoError(t, lm.Shutdown(ctx))
}

func TestRelayStatus(t *testing.T) {
	ch := make(chan SystemStatus, 4)
	for _, st := range []SystemState{StateRunning, StateStopping, StateStopped, StateError} {
		ch <- SystemStatus{State: st}
	}
	close(ch)

	var got []string
	relayStatus(ch, func(msg websocket.Message) {
		assert.Equal(t, websocket.MessageTypeSystemStatus, msg.Type)
		got = append(got, msg.Data.(websocket.SystemStatusData).Status)
	})

	assert.Equal(t, []string{"running", "shutting_down", "stopped", "error"}, got)
}
