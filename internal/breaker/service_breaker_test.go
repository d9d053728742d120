// Copyright (C) 2026 HookGuard Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceBreakerOpensAfterFailureThreshold(t *testing.T) {
	b := NewServiceBreaker(ServiceBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, OpenTimeout: time.Minute})
	fail := errors.New("boom")

	_ = b.Execute(func() error { return fail })
	assert.Equal(t, CircuitClosed, b.State(), "state after 1 failure")
	_ = b.Execute(func() error { return fail })
	assert.Equal(t, CircuitOpen, b.State(), "state after 2 failures")
}

func TestServiceBreakerRefusesWhileOpen(t *testing.T) {
	b := NewServiceBreaker(ServiceBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: time.Minute})
	_ = b.Execute(func() error { return errors.New("boom") })

	err := b.Execute(func() error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestServiceBreakerHalfOpenRecoversAfterTimeout(t *testing.T) {
	b := NewServiceBreaker(ServiceBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: time.Millisecond})
	_ = b.Execute(func() error { return errors.New("boom") })
	require.Equal(t, CircuitOpen, b.State())

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, CircuitClosed, b.State(), "state after recovery success")
}

func TestServiceBreakerResetForcesClosed(t *testing.T) {
	b := NewServiceBreaker(ServiceBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: time.Minute})
	_ = b.Execute(func() error { return errors.New("boom") })
	b.Reset()
	assert.Equal(t, CircuitClosed, b.State())
}

func TestRegistryReusesBreakerPerName(t *testing.T) {
	r := NewRegistry(DefaultServiceBreakerConfig())
	a := r.Get("memory-worker")
	b := r.Get("memory-worker")
	assert.Same(t, a, b, "Get should return the same breaker instance for the same name")

	other := r.Get("other-service")
	assert.NotSame(t, a, other, "Get should return distinct breakers for distinct names")
}

func TestRegistryResetAll(t *testing.T) {
	r := NewRegistry(ServiceBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: time.Minute})
	b := r.Get("memory-worker")
	_ = b.Execute(func() error { return errors.New("boom") })
	require.Equal(t, CircuitOpen, b.State())

	r.ResetAll()
	assert.Equal(t, CircuitClosed, b.State(), "state after ResetAll")
}
