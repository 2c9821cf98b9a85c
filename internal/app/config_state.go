package app

import (
	"context"
	"fmt"
	"sync"

	"mgmtd/internal/domain"
)

// ConfigState holds the active config and the outcome of the last reload.
type ConfigState struct {
	mu        sync.RWMutex
	current   domain.Config
	reloadErr error
}

func NewConfigState(cfg domain.Config) *ConfigState {
	return &ConfigState{current: cfg}
}

func (s *ConfigState) Current() domain.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *ConfigState) Update(cfg domain.Config) {
	s.mu.Lock()
	s.current = cfg
	s.reloadErr = nil
	s.mu.Unlock()
}

func (s *ConfigState) Failed(err error) {
	s.mu.Lock()
	s.reloadErr = err
	s.mu.Unlock()
}

// Check reports the last reload failure as a health problem.
func (s *ConfigState) Check(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.reloadErr != nil {
		return fmt.Errorf("last config reload failed: %w", s.reloadErr)
	}
	return nil
}

// Parameters returns the free-form parameters section of the active config.
func (s *ConfigState) Parameters() any {
	params := s.Current().Parameters
	if params == nil {
		return map[string]any{}
	}
	return params
}
