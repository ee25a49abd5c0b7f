package template

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_HashesBody(t *testing.T) {
	r := NewRegistry()

	v, err := r.Register("ticket", "v1", `{"ver": 1}`, nil, StatusActive)
	require.NoError(t, err)

	assert.Equal(t, "ticket", v.TemplateID)
	assert.Equal(t, "v1", v.VersionID)
	assert.Equal(t, HashBody(`{"ver": 1}`), v.ContentHash)
	assert.Len(t, v.ContentHash, 64)
	assert.Equal(t, StatusActive, v.Status)
}

func TestRegister_DefaultsToActive(t *testing.T) {
	r := NewRegistry()

	v, err := r.Register("ticket", "v1", "{}", nil, "")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, v.Status)
}

func TestRegister_ImmutableContent(t *testing.T) {
	r := NewRegistry()

	_, err := r.Register("ticket", "v1", `{"a":1}`, nil, StatusActive)
	require.NoError(t, err)

	_, err = r.Register("ticket", "v1", `{"a":2}`, nil, StatusActive)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrImmutableVersion))

	got, ok := r.GetVersion("ticket", "v1")
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, got.Body, "failed re-registration leaves the version untouched")
}

func TestRegister_SameContentUpdatesStatus(t *testing.T) {
	r := NewRegistry()

	_, err := r.Register("ticket", "v1", `{"a":1}`, nil, StatusActive)
	require.NoError(t, err)

	v, err := r.Register("ticket", "v1", `{"a":1}`, nil, StatusArchived)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, v.Status)
	assert.Len(t, r.Versions("ticket"), 1)
}

func TestRegister_Rejects(t *testing.T) {
	r := NewRegistry()

	_, err := r.Register("", "v1", "{}", nil, StatusActive)
	assert.Error(t, err)
	_, err = r.Register("ticket", "", "{}", nil, StatusActive)
	assert.Error(t, err)
	_, err = r.Register("ticket", "v1", "{}", nil, "draft")
	assert.Error(t, err)
}

func TestGetActiveVersion(t *testing.T) {
	r := NewRegistry()

	_, ok := r.GetActiveVersion("ticket")
	assert.False(t, ok)

	_, err := r.Register("ticket", "v1", `{"ver":1}`, nil, StatusActive)
	require.NoError(t, err)
	_, err = r.Register("ticket", "v2", `{"ver":2}`, nil, StatusActive)
	require.NoError(t, err)
	_, err = r.Register("ticket", "v3", `{"ver":3}`, nil, StatusArchived)
	require.NoError(t, err)

	active, ok := r.GetActiveVersion("ticket")
	require.True(t, ok)
	assert.Equal(t, "v2", active.VersionID, "latest active, skipping archived")

	_, err = r.Register("ticket", "v2", `{"ver":2}`, nil, StatusArchived)
	require.NoError(t, err)

	active, ok = r.GetActiveVersion("ticket")
	require.True(t, ok)
	assert.Equal(t, "v1", active.VersionID)
}

func TestGetVersion_Missing(t *testing.T) {
	r := NewRegistry()

	_, ok := r.GetVersion("ticket", "v1")
	assert.False(t, ok)
}

func TestRegistry_ConcurrentRegister(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Register("ticket", "v1", `{"same":true}`, nil, StatusActive)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, r.Versions("ticket"), 1)
}
