// Package storage provides object storage for dispute evidence attachments.
package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	disputeapp "github.com/streamcart/backend/internal/application/dispute"
)

// InMemoryEvidenceStorage keeps attachment bodies in a map. Use this for
// development and tests until a real bucket is configured; nothing survives
// a restart.
type InMemoryEvidenceStorage struct {
	// BaseURL is the base URL for generated download links
	// Defaults to "https://evidence.example.com" if not set
	BaseURL string

	mu      sync.RWMutex
	objects map[string]storedObject
}

type storedObject struct {
	contentType string
	body        []byte
}

// NewInMemoryEvidenceStorage creates an empty in-memory evidence store
func NewInMemoryEvidenceStorage() *InMemoryEvidenceStorage {
	return &InMemoryEvidenceStorage{
		BaseURL: "https://evidence.example.com",
		objects: make(map[string]storedObject),
	}
}

// Ensure InMemoryEvidenceStorage satisfies the dispute service port
var _ disputeapp.EvidenceStorage = (*InMemoryEvidenceStorage)(nil)

// Put stores an attachment body under the given key
func (s *InMemoryEvidenceStorage) Put(_ context.Context, key, contentType string, body []byte) error {
	if key == "" {
		return errors.New("storage key is required")
	}

	stored := make([]byte, len(body))
	copy(stored, body)

	s.mu.Lock()
	s.objects[key] = storedObject{contentType: contentType, body: stored}
	s.mu.Unlock()

	return nil
}

// Get returns a stored attachment body and its content type
func (s *InMemoryEvidenceStorage) Get(_ context.Context, key string) ([]byte, string, error) {
	if key == "" {
		return nil, "", errors.New("storage key is required")
	}

	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()

	if !ok {
		return nil, "", errors.New("object not found: " + key)
	}
	return obj.body, obj.contentType, nil
}

// DownloadURL returns a fake link in the same shape a presigned URL would take
func (s *InMemoryEvidenceStorage) DownloadURL(_ context.Context, key string, expiresIn time.Duration) (string, time.Time, error) {
	if key == "" {
		return "", time.Time{}, errors.New("storage key is required")
	}

	expiresAt := time.Now().Add(expiresIn)
	url := s.BaseURL + "/download/" + key + "?expires=" + expiresAt.Format(time.RFC3339)
	return url, expiresAt, nil
}

// Delete removes a stored attachment
func (s *InMemoryEvidenceStorage) Delete(_ context.Context, key string) error {
	if key == "" {
		return errors.New("storage key is required")
	}

	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()

	return nil
}

// Exists checks whether an attachment is stored
func (s *InMemoryEvidenceStorage) Exists(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("storage key is required")
	}

	s.mu.RLock()
	_, ok := s.objects[key]
	s.mu.RUnlock()

	return ok, nil
}

// Size returns the number of stored attachments
func (s *InMemoryEvidenceStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
