package sessions

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/pawmatch/backend/internal/services/discovery"
)

// Factory builds a ready-to-start engine for one identity.
type Factory func(ctx context.Context, userID int64) (*discovery.Engine, error)

// Manager keeps one discovery engine per signed-in identity. The first
// request for an identity spins the engine up; sign-out tears it down
// and waits for its in-flight persistence to settle.
type Manager struct {
	mu      sync.Mutex
	log     *zap.Logger
	factory Factory
	engines map[int64]*discovery.Engine
}

func NewManager(log *zap.Logger, factory Factory) *Manager {
	if log == nil {
		log = zap.NewNop()
	}

	return &Manager{
		log:     log,
		factory: factory,
		engines: make(map[int64]*discovery.Engine),
	}
}

// Engine returns the identity's engine, creating and starting it on
// first use.
func (m *Manager) Engine(ctx context.Context, userID int64) (*discovery.Engine, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid session identity")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if eng, ok := m.engines[userID]; ok {
		return eng, nil
	}

	eng, err := m.factory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("build discovery session: %w", err)
	}
	if err := eng.Start(ctx); err != nil {
		return nil, fmt.Errorf("start discovery session: %w", err)
	}

	m.engines[userID] = eng
	m.log.Info("discovery session started", zap.Int64("user_id", userID))

	return eng, nil
}

// End tears down the identity's session. False when none was active.
// Quota state survives in its store; history and the queue do not.
func (m *Manager) End(userID int64) bool {
	m.mu.Lock()
	eng, ok := m.engines[userID]
	delete(m.engines, userID)
	m.mu.Unlock()

	if !ok {
		return false
	}

	eng.Close()
	m.log.Info("discovery session ended", zap.Int64("user_id", userID))
	return true
}

// Shutdown ends every active session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	engines := m.engines
	m.engines = make(map[int64]*discovery.Engine)
	m.mu.Unlock()

	for userID, eng := range engines {
		eng.Close()
		m.log.Info("discovery session ended", zap.Int64("user_id", userID))
	}
}
