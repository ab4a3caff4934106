package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScope_SortsAndDeduplicates(t *testing.T) {
	s, err := NewScope("tenant-b", "tenant-a", "tenant-b")
	require.NoError(t, err)

	assert.Equal(t, []string{"tenant-a", "tenant-b"}, s.TenantIDs())
	assert.Equal(t, 2, s.Size())
}

func TestNewScope_RejectsEmpty(t *testing.T) {
	_, err := NewScope()
	assert.Error(t, err)

	_, err = NewScope("tenant-a", "")
	assert.Error(t, err)
}

func TestScope_TenantIDsReturnsACopy(t *testing.T) {
	s, err := NewScope("tenant-a", "tenant-b")
	require.NoError(t, err)

	ids := s.TenantIDs()
	ids[0] = "tenant-evil"
	assert.Equal(t, []string{"tenant-a", "tenant-b"}, s.TenantIDs())
}

func TestScope_ZeroValueIsEmpty(t *testing.T) {
	var s Scope
	assert.Zero(t, s.Size())
	assert.Empty(t, s.TenantIDs())
}
