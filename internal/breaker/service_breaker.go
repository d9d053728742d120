// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Execute when the breaker refuses the
// call outright.
var ErrCircuitOpen = errors.New("breaker: circuit open")

// CircuitState mirrors the gate breaker's three states for a
// general-purpose dependency call (the memory-worker UDS RPC).
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// ServiceBreakerConfig configures failure/success thresholds and the
// open-state timeout.
type ServiceBreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
}

// DefaultServiceBreakerConfig mirrors the teacher's defaults.
func DefaultServiceBreakerConfig() ServiceBreakerConfig {
	return ServiceBreakerConfig{FailureThreshold: 5, SuccessThreshold: 2, OpenTimeout: 30 * time.Second}
}

// ServiceBreaker wraps an arbitrary dependency call with the standard
// closed/open/half-open state machine.
type ServiceBreaker struct {
	config      ServiceBreakerConfig
	mu          sync.RWMutex
	state       CircuitState
	failures    int
	successes   int
	lastFailure time.Time
}

// NewServiceBreaker constructs a breaker with the given config.
func NewServiceBreaker(cfg ServiceBreakerConfig) *ServiceBreaker {
	return &ServiceBreaker{config: cfg, state: CircuitClosed}
}

// Execute runs fn if the circuit allows it, recording the outcome.
func (b *ServiceBreaker) Execute(fn func() error) error {
	if !b.allowRequest() {
		return ErrCircuitOpen
	}
	err := fn()
	b.recordResult(err == nil)
	if err != nil {
		return fmt.Errorf("breaker: call failed: %w", err)
	}
	return nil
}

func (b *ServiceBreaker) allowRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == CircuitOpen {
		if time.Since(b.lastFailure) >= b.config.OpenTimeout {
			b.state = CircuitHalfOpen
			b.successes = 0
		} else {
			return false
		}
	}
	return true
}

func (b *ServiceBreaker) recordResult(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if success {
		b.recordSuccess()
	} else {
		b.recordFailure()
	}
}

func (b *ServiceBreaker) recordSuccess() {
	switch b.state {
	case CircuitHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.state = CircuitClosed
			b.failures = 0
			b.successes = 0
		}
	case CircuitClosed:
		b.failures = 0
	}
}

func (b *ServiceBreaker) recordFailure() {
	b.lastFailure = time.Now()
	switch b.state {
	case CircuitHalfOpen:
		b.state = CircuitOpen
	case CircuitClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.state = CircuitOpen
		}
	}
}

// State returns the current state.
func (b *ServiceBreaker) State() CircuitState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Reset forces the breaker back to closed.
func (b *ServiceBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = CircuitClosed
	b.failures = 0
	b.successes = 0
}

// Registry keeps one ServiceBreaker per named dependency.
type Registry struct {
	defaultConfig ServiceBreakerConfig
	mu            sync.Mutex
	breakers      map[string]*ServiceBreaker
}

// NewRegistry constructs an empty registry with the given default
// config for breakers created on first Get.
func NewRegistry(defaultConfig ServiceBreakerConfig) *Registry {
	return &Registry{defaultConfig: defaultConfig, breakers: map[string]*ServiceBreaker{}}
}

// Get returns (creating if needed) the breaker for name.
func (r *Registry) Get(name string) *ServiceBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	if !ok {
		b = NewServiceBreaker(r.defaultConfig)
		r.breakers[name] = b
	}
	return b
}

// ResetAll resets every breaker in the registry.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.breakers {
		b.Reset()
	}
}
