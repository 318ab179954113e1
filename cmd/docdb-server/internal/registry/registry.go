// Package registry tracks in-flight query executions so a client can hold
// a cursor open across HTTP requests: begin a query, page through its
// results, and know it gets torn down (context cancelled) if it sits
// idle too long, is removed, or the manager is closed. A client
// disconnect is not detected.
package registry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/nullstore/docdb/internal/planner"
)

// Execution is one open query's server-side state: its cursor, the
// context that bounds it, and the bookkeeping needed to expire it.
type Execution struct {
	ID         string
	ClientID   string
	Namespace  string
	CreatedAt  time.Time
	LastUsedAt time.Time
	Context    context.Context
	Cancel     context.CancelFunc

	Cursor planner.Cursor
}

// Manager manages open executions with an idle TTL and per-client caps.
type Manager struct {
	mu           sync.RWMutex
	executions   map[string]*Execution
	byClient     map[string][]string // clientID -> []execID
	idleTimeout  time.Duration
	maxOpen      int
	maxPerClient int
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

// NewManager creates an execution registry and starts its idle-reaper.
func NewManager(idleTimeout time.Duration, maxOpen, maxPerClient int) *Manager {
	m := &Manager{
		executions:   make(map[string]*Execution),
		byClient:     make(map[string][]string),
		idleTimeout:  idleTimeout,
		maxOpen:      maxOpen,
		maxPerClient: maxPerClient,
		stopCh:       make(chan struct{}),
	}

	m.wg.Add(1)
	go m.cleanupLoop()

	return m
}

// Begin registers a new execution bound to ctx and returns it. The
// caller supplies the already-opened cursor; Begin only tracks it.
func (m *Manager) Begin(ctx context.Context, clientID, namespace string, cursor planner.Cursor) (*Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.executions) >= m.maxOpen {
		return nil, fmt.Errorf("max open executions reached (%d)", m.maxOpen)
	}

	clientExecs := m.byClient[clientID]
	if len(clientExecs) >= m.maxPerClient {
		return nil, fmt.Errorf("max executions per client reached (%d)", m.maxPerClient)
	}

	id, err := generateExecID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate execution ID: %w", err)
	}

	execCtx, cancel := context.WithCancel(ctx)

	exec := &Execution{
		ID:         id,
		ClientID:   clientID,
		Namespace:  namespace,
		CreatedAt:  time.Now(),
		LastUsedAt: time.Now(),
		Context:    execCtx,
		Cancel:     cancel,
		Cursor:     cursor,
	}

	m.executions[id] = exec
	m.byClient[clientID] = append(clientExecs, id)

	return exec, nil
}

// Get retrieves an execution by ID.
func (m *Manager) Get(id string) (*Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exec, ok := m.executions[id]
	if !ok {
		return nil, fmt.Errorf("execution not found: %s", id)
	}

	return exec, nil
}

// Touch refreshes an execution's idle deadline.
func (m *Manager) Touch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	exec, ok := m.executions[id]
	if !ok {
		return fmt.Errorf("execution not found: %s", id)
	}

	exec.LastUsedAt = time.Now()
	return nil
}

// Remove cancels and forgets an execution.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(id)
}

func (m *Manager) removeLocked(id string) error {
	exec, ok := m.executions[id]
	if !ok {
		return nil // already removed
	}

	exec.Cancel()
	delete(m.executions, id)

	clientExecs := m.byClient[exec.ClientID]
	for i, execID := range clientExecs {
		if execID == id {
			m.byClient[exec.ClientID] = append(clientExecs[:i], clientExecs[i+1:]...)
			break
		}
	}
	if len(m.byClient[exec.ClientID]) == 0 {
		delete(m.byClient, exec.ClientID)
	}

	return nil
}

// Stats returns the current open-execution count and distinct client count.
func (m *Manager) Stats() (total, byClientCount int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.executions), len(m.byClient)
}

// Close stops the reaper and cancels every open execution.
func (m *Manager) Close() error {
	close(m.stopCh)
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, exec := range m.executions {
		exec.Cancel()
	}

	m.executions = make(map[string]*Execution)
	m.byClient = make(map[string][]string)

	return nil
}

func (m *Manager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.cleanupIdle()
		}
	}
}

func (m *Manager) cleanupIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var toRemove []string
	for id, exec := range m.executions {
		if now.Sub(exec.LastUsedAt) > m.idleTimeout {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		m.removeLocked(id)
	}
}

func generateExecID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
