package quota

import (
	"errors"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

var ErrExhausted = errors.New("Has alcanzado el límite de consultas para esta sesión")

// Flows that consume one consultation.
const (
	FlowTravelQuestion    = "travel_question"
	FlowDestinationSearch = "destination_search"
)

var countedFlows = map[string]bool{
	FlowTravelQuestion:    true,
	FlowDestinationSearch: true,
}

// Unlimited is returned as remaining when no limit applies.
const Unlimited = -1

// Validator counts LLM consultations per session over a rolling window that
// starts with the session's first counted request.
type Validator struct {
	limit    int
	disabled bool
	window   time.Duration
	mu       sync.Mutex
	counts   *cache.Cache
	logger   *zap.Logger
}

// NewValidator builds a validator allowing limit consultations per session
// every 24 hours. limit <= 0 or disabled turns the check off.
func NewValidator(limit int, disabled bool, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	const window = 24 * time.Hour
	return &Validator{
		limit:    limit,
		disabled: disabled,
		window:   window,
		counts:   cache.New(window, time.Hour),
		logger:   logger,
	}
}

// Consume records one consultation for sessionID and returns how many remain.
// Requests without a session are not counted: they start a new one.
func (v *Validator) Consume(sessionID, flow string) (int, error) {
	if !countedFlows[flow] {
		v.logger.Debug("quota skip", zap.String("flow", flow), zap.String("reason", "unknown_flow"))
		return Unlimited, nil
	}
	if v.disabled || v.limit <= 0 {
		return Unlimited, nil
	}
	if sessionID == "" {
		return v.limit, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	used := 0
	if n, ok := v.counts.Get(sessionID); ok {
		used = n.(int)
	}
	if used >= v.limit {
		v.logger.Info("quota exhausted", zap.String("session_id", sessionID), zap.String("flow", flow), zap.Int("limit", v.limit))
		return 0, ErrExhausted
	}
	if used == 0 {
		v.counts.Set(sessionID, 1, v.window)
	} else if _, err := v.counts.IncrementInt(sessionID, 1); err != nil {
		return 0, err
	}
	remaining := v.limit - used - 1
	v.logger.Debug("quota consume", zap.String("session_id", sessionID), zap.String("flow", flow), zap.Int("remaining", remaining))
	return remaining, nil
}

// Refund gives back one consultation taken by Consume, for requests that
// failed before producing an answer.
func (v *Validator) Refund(sessionID, flow string) {
	if !countedFlows[flow] || v.disabled || v.limit <= 0 || sessionID == "" {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if n, ok := v.counts.Get(sessionID); ok && n.(int) > 0 {
		_, _ = v.counts.DecrementInt(sessionID, 1)
		v.logger.Debug("quota refund", zap.String("session_id", sessionID), zap.String("flow", flow))
	}
}
