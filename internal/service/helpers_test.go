package service

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository/sqlite"
)

// =========================================================================
// SHARED FIXTURES
// =========================================================================

// pngURI is the smallest payload http.DetectContentType reports as image/png.
var pngURI = "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestDB opens a fresh in-memory store.
func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func mustUser(t *testing.T, db *sqlite.DB, username string) *model.User {
	t.Helper()
	u := &model.User{
		Email:     username + "@example.com",
		Username:  username,
		FirstName: strings.ToUpper(username[:1]) + username[1:],
		LastName:  "Tester",
	}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}

func mustIngredient(t *testing.T, db *sqlite.DB, name, unit string) *model.Ingredient {
	t.Helper()
	ing := &model.Ingredient{Name: name, MeasurementUnit: unit}
	_, err := db.GetOrCreateIngredient(context.Background(), ing)
	require.NoError(t, err)
	return ing
}

func ptr[T any](v T) *T { return &v }

// memStore is an in-memory media.Store.
type memStore struct {
	mu        sync.Mutex
	files     map[string][]byte
	deleteErr error
	saveErr   error
}

func newMemStore() *memStore {
	return &memStore{files: map[string][]byte{}}
}

func (m *memStore) Save(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.files[key] = data
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.files, key)
	return nil
}

func (m *memStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.files {
		if strings.HasPrefix(k, prefix+"/") {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memStore) URL(key string) string {
	return "http://media.test/" + key
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[key]
	return ok
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

var errDiskFull = errors.New("disk full")

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
