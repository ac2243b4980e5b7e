// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package credential

import (
	"context"
	"sync"
)

// TestSecretStore is an in-memory SecretStore for tests.  The *Err hook
// fields allow fault injection.
type TestSecretStore struct {
	mu      sync.Mutex
	secrets map[string]map[string]string

	// Fault injection hooks.  When non-nil and returning a non-nil error the
	// corresponding operation fails without mutating state.
	WriteErr   func(path Path) error
	DestroyErr func(path Path) error

	// DestroyCalls counts Destroy invocations, for idempotence assertions.
	DestroyCalls int
}

var _ SecretStore = (*TestSecretStore)(nil)

// NewTestSecretStore creates an empty TestSecretStore.
func NewTestSecretStore() *TestSecretStore {
	return &TestSecretStore{
		secrets: make(map[string]map[string]string),
	}
}

// Write implements SecretStore.
func (s *TestSecretStore) Write(_ context.Context, path Path, data map[string]string) error {
	if s.WriteErr != nil {
		if err := s.WriteErr(path); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[string]string, len(data))
	for k, v := range data {
		cp[k] = v
	}
	s.secrets[path.String()] = cp
	return nil
}

// Read implements SecretStore.
func (s *TestSecretStore) Read(_ context.Context, path Path) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.secrets[path.String()]
	if !ok {
		return nil, nil
	}
	cp := make(map[string]string, len(data))
	for k, v := range data {
		cp[k] = v
	}
	return cp, nil
}

// Exists implements SecretStore.
func (s *TestSecretStore) Exists(_ context.Context, path Path) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.secrets[path.String()]
	return ok, nil
}

// Destroy implements SecretStore.
func (s *TestSecretStore) Destroy(_ context.Context, path Path) error {
	if s.DestroyErr != nil {
		if err := s.DestroyErr(path); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DestroyCalls++
	delete(s.secrets, path.String())
	return nil
}

// Len returns the number of stored secrets.
func (s *TestSecretStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.secrets)
}
