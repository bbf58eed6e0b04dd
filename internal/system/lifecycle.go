package system

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/KevinKickass/FleetView/internal/api/rest"
	"github.com/KevinKickass/FleetView/internal/api/websocket"
	"github.com/KevinKickass/FleetView/internal/auth"
	"github.com/KevinKickass/FleetView/internal/config"
	"github.com/KevinKickass/FleetView/internal/health"
	"github.com/KevinKickass/FleetView/internal/interfaces"
	"github.com/KevinKickass/FleetView/internal/session"
	"github.com/KevinKickass/FleetView/internal/upstream"
	"github.com/KevinKickass/FleetView/internal/vehicle"
	"go.uber.org/zap"
)

const sessionSweepInterval = 5 * time.Minute

type LifecycleManager struct {
	config   *config.Config
	store    session.Store
	services rest.Services
	logger   *zap.Logger

	wsHub        *websocket.Hub
	restServer   *rest.Server
	healthServer *health.Server

	stateMu      sync.RWMutex
	currentState SystemState
	startedAt    time.Time
	lastError    string

	listenersMu     sync.RWMutex
	statusListeners []chan SystemStatus
	relay           chan SystemStatus

	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

func NewLifecycleManager(
	store session.Store,
	cfg *config.Config,
	logger *zap.Logger,
) (*LifecycleManager, error) {
	client, err := upstream.NewClient(cfg.API, logger.Named("upstream"))
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream client: %w", err)
	}

	artwork := vehicle.DefaultArtworkLoader(cfg.Vehicle.ArtworkPaths)
	vehicles := vehicle.NewService(
		vehicle.NewGenerator(nil, nil),
		vehicle.NewLayouts(artwork, logger),
		logger.Named("vehicle"),
	)

	return &LifecycleManager{
		config: cfg,
		store:  store,
		services: rest.Services{
			Sessions: session.NewManager(store, cfg.Session, cfg.Storage, cfg.IsProduction()),
			Guard:    auth.NewGuard(logger),
			Login:    auth.NewLoginFlow(client, cfg, logger),
			Profiles: auth.NewProfileService(client, cfg, logger),
			Upstream: client,
			Vehicles: vehicles,
		},
		logger:          logger,
		wsHub:           websocket.NewHub(logger.Named("ws")),
		healthServer:    health.NewServer(logger.Named("health")),
		currentState:    StateInitializing,
		shutdownChan:    make(chan struct{}),
		statusListeners: make([]chan SystemStatus, 0),
	}, nil
}

// Start starts the entire system
func (lm *LifecycleManager) Start() error {
	lm.logger.Info("Starting FleetView",
		zap.String("environment", lm.config.Server.Environment),
		zap.String("upstream", lm.config.BaseURL("")))

	// Start gRPC health server
	if err := lm.healthServer.Start(fmt.Sprintf(":%d", lm.config.Server.GRPCPort)); err != nil {
		lm.setError(fmt.Errorf("failed to start gRPC: %w", err))
		return err
	}

	go lm.wsHub.Run()

	lm.relay = lm.SubscribeStatus()
	go relayStatus(lm.relay, lm.wsHub.Broadcast)

	// Start REST API Server
	if err := lm.startRESTServer(); err != nil {
		lm.setError(fmt.Errorf("failed to start REST API: %w", err))
		return err
	}

	if ms, ok := lm.store.(*session.MemoryStore); ok {
		go lm.sweepSessions(ms)
	}

	lm.stateMu.Lock()
	lm.startedAt = time.Now()
	lm.stateMu.Unlock()

	lm.setState(StateRunning)
	lm.healthServer.SetServing(true)
	lm.broadcastStatus()

	lm.logger.Info("System started successfully",
		zap.Int("grpc_port", lm.config.Server.GRPCPort),
		zap.Int("http_port", lm.config.Server.HTTPPort),
		zap.String("session_backend", lm.config.Session.Backend))

	return nil
}

func (lm *LifecycleManager) startRESTServer() error {
	lm.restServer = rest.NewServer(lm.config, lm, lm.logger.Named("http"), lm.wsHub, lm.services)
	return lm.restServer.Start()
}

func (lm *LifecycleManager) sweepSessions(ms *session.MemoryStore) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := ms.Sweep(); n > 0 {
				lm.logger.Debug("Expired sessions removed", zap.Int("count", n))
			}
		case <-lm.shutdownChan:
			return
		}
	}
}

// Shutdown gracefully shuts down the system
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")

		lm.setState(StateStopping)
		lm.healthServer.SetServing(false)
		lm.broadcastStatus()

		shutdownErr = lm.gracefulShutdown(ctx)

		lm.setState(StateStopped)
		lm.broadcastStatus()
		if lm.relay != nil {
			lm.UnsubscribeStatus(lm.relay)
		}

		close(lm.shutdownChan)
	})

	return shutdownErr
}

func (lm *LifecycleManager) gracefulShutdown(ctx context.Context) error {
	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	// 1. REST API Server graceful shutdown
	if lm.restServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			if err := lm.restServer.Shutdown(shutdownCtx); err != nil {
				errChan <- fmt.Errorf("rest api shutdown failed: %w", err)
			}
		}()
	}

	// 2. gRPC health server
	wg.Add(1)
	go func() {
		defer wg.Done()
		lm.logger.Info("Stopping gRPC health server")
		lm.healthServer.Stop(ctx)
	}()

	// Wait for all shutdowns
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	// Hijacked websocket connections survive http.Server.Shutdown.
	defer lm.wsHub.Stop()

	select {
	case <-done:
		lm.logger.Info("Graceful shutdown completed")
		return nil
	case <-ctx.Done():
		lm.logger.Warn("Shutdown timeout, forcing stop")
		return fmt.Errorf("shutdown timeout exceeded")
	case err := <-errChan:
		return err
	}
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()

	if err := ValidateTransition(lm.currentState, state); err != nil {
		lm.logger.Warn("Ignoring state change", zap.Error(err))
		return
	}
	lm.currentState = state
}

func (lm *LifecycleManager) setError(err error) {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()
	lm.currentState = StateError
	lm.lastError = err.Error()
}

// GetCurrentStatus returns current system status (Interface implementation)
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()

	var uptime int64
	if !lm.startedAt.IsZero() {
		uptime = int64(time.Since(lm.startedAt).Seconds())
	}

	return interfaces.SystemStatus{
		State:            lm.currentState.String(),
		Environment:      lm.config.Server.Environment,
		SessionBackend:   lm.config.Session.Backend,
		ConnectedClients: lm.wsHub.GetClientCount(),
		UptimeSeconds:    uptime,
	}
}

// getStatusInternal returns typed status (for internal use)
func (lm *LifecycleManager) getStatusInternal() SystemStatus {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()

	return SystemStatus{
		State:     lm.currentState,
		StartedAt: lm.startedAt,
		Timestamp: time.Now().Unix(),
		Error:     lm.lastError,
	}
}

func (lm *LifecycleManager) broadcastStatus() {
	status := lm.getStatusInternal()

	lm.listenersMu.RLock()
	defer lm.listenersMu.RUnlock()

	for _, listener := range lm.statusListeners {
		select {
		case listener <- status:
		default:
			// Channel full, skip
		}
	}
}

// SubscribeStatus subscribes to status updates
func (lm *LifecycleManager) SubscribeStatus() chan SystemStatus {
	ch := make(chan SystemStatus, 10)

	lm.listenersMu.Lock()
	lm.statusListeners = append(lm.statusListeners, ch)
	lm.listenersMu.Unlock()

	return ch
}

// UnsubscribeStatus unsubscribes from status updates
func (lm *LifecycleManager) UnsubscribeStatus(ch chan SystemStatus) {
	lm.listenersMu.Lock()
	defer lm.listenersMu.Unlock()

	for i, listener := range lm.statusListeners {
		if listener == ch {
			lm.statusListeners = append(lm.statusListeners[:i], lm.statusListeners[i+1:]...)
			close(ch)
			break
		}
	}
}

// relayStatus publishes every status change as a system_status message until
// ch is closed.
func relayStatus(ch <-chan SystemStatus, publish func(websocket.Message)) {
	for status := range ch {
		publish(websocket.NewSystemStatusMessage(statusLabel(status.State)))
	}
}

func statusLabel(s SystemState) string {
	if s == StateStopping {
		return "shutting_down"
	}
	return strings.ToLower(s.String())
}
