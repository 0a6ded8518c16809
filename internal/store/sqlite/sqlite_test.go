package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chrislearn/mofa-studio/internal/store"
	"github.com/chrislearn/mofa-studio/internal/store/storetest"
)

func makeMemoryStore(t *testing.T) store.Store {
	t.Helper()
	s, err := New(context.Background(), MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_Compliance(t *testing.T) {
	storetest.Run(t, makeMemoryStore)
}

func TestSQLiteStore_FileCompliance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		path := filepath.Join(t.TempDir(), "nested", "companion.db")
		s, err := New(context.Background(), path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSQLiteStore_SchemaIsIdempotent(t *testing.T) {
	s := makeMemoryStore(t).(interface {
		EnsureSchema(context.Context) error
	})
	require.NoError(t, s.EnsureSchema(context.Background()))
}
