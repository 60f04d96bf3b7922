// Package store provides Gateway implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/tortipos/pos"
)

// =============================================================================
// MEMORY GATEWAY - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps the encoded document, so Load always returns an independent
// copy and goes through the same decode path as the durable gateways.
type Memory struct {
	mu    sync.RWMutex
	doc   []byte
	saves int

	// failWith, when set, makes Save return it without storing anything.
	failWith error
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Save(_ context.Context, s *pos.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return m.failWith
	}
	doc, err := pos.EncodeState(s)
	if err != nil {
		return err
	}
	m.doc = doc
	m.saves++
	return nil
}

func (m *Memory) Load(_ context.Context) (*pos.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.doc == nil {
		return nil, pos.ErrNoSavedState
	}
	return pos.DecodeState("memory", m.doc)
}

// SetRaw replaces the stored document. Used to simulate corrupted storage.
func (m *Memory) SetRaw(doc []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = append([]byte(nil), doc...)
}

// Fail sets or clears the error returned by Save.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Saves reports how many successful saves happened.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
