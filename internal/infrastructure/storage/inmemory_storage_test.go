package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInMemoryEvidenceStorage(t *testing.T) {
	s := NewInMemoryEvidenceStorage()
	require.NotNil(t, s)
	assert.Equal(t, "https://evidence.example.com", s.BaseURL)
	assert.Equal(t, 0, s.Size())
}

func TestInMemoryEvidenceStorage_Put(t *testing.T) {
	s := NewInMemoryEvidenceStorage()
	ctx := context.Background()

	t.Run("stores attachment", func(t *testing.T) {
		err := s.Put(ctx, "disputes/d1/p1/receipt.pdf", "application/pdf", []byte("pdf-bytes"))
		require.NoError(t, err)

		body, contentType, err := s.Get(ctx, "disputes/d1/p1/receipt.pdf")
		require.NoError(t, err)
		assert.Equal(t, []byte("pdf-bytes"), body)
		assert.Equal(t, "application/pdf", contentType)
	})

	t.Run("copies the body", func(t *testing.T) {
		body := []byte("original")
		require.NoError(t, s.Put(ctx, "disputes/d1/p1/note.txt", "text/plain", body))

		body[0] = 'X'

		stored, _, err := s.Get(ctx, "disputes/d1/p1/note.txt")
		require.NoError(t, err)
		assert.Equal(t, []byte("original"), stored, "caller mutations must not leak into the store")
	})

	t.Run("overwrites existing key", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "disputes/d1/p1/v.txt", "text/plain", []byte("v1")))
		require.NoError(t, s.Put(ctx, "disputes/d1/p1/v.txt", "text/plain", []byte("v2")))

		stored, _, err := s.Get(ctx, "disputes/d1/p1/v.txt")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), stored)
	})

	t.Run("empty storage key", func(t *testing.T) {
		err := s.Put(ctx, "", "text/plain", []byte("x"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage key is required")
	})
}

func TestInMemoryEvidenceStorage_Exists(t *testing.T) {
	s := NewInMemoryEvidenceStorage()
	ctx := context.Background()

	t.Run("false for unknown key", func(t *testing.T) {
		ok, err := s.Exists(ctx, "disputes/unknown")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("true after put", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "disputes/d2/p1/a.png", "image/png", []byte{1, 2, 3}))

		ok, err := s.Exists(ctx, "disputes/d2/p1/a.png")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestInMemoryEvidenceStorage_Delete(t *testing.T) {
	s := NewInMemoryEvidenceStorage()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "disputes/d3/p1/a.png", "image/png", []byte{1}))
	require.NoError(t, s.Delete(ctx, "disputes/d3/p1/a.png"))

	ok, err := s.Exists(ctx, "disputes/d3/p1/a.png")
	require.NoError(t, err)
	assert.False(t, ok)

	t.Run("deleting unknown key succeeds", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "disputes/never-stored"))
	})
}

func TestInMemoryEvidenceStorage_DownloadURL(t *testing.T) {
	s := NewInMemoryEvidenceStorage()
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		url, expiresAt, err := s.DownloadURL(ctx, "disputes/d4/p1/a.png", 15*time.Minute)
		require.NoError(t, err)
		assert.Contains(t, url, "https://evidence.example.com/download/disputes/d4/p1/a.png")
		assert.True(t, expiresAt.After(time.Now()))
	})

	t.Run("empty storage key", func(t *testing.T) {
		_, _, err := s.DownloadURL(ctx, "", 15*time.Minute)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage key is required")
	})
}
