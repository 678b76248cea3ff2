package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiSigAccountOwners(t *testing.T) {
	m := &MultiSigAccount{GroupID: "G1", Threshold: 2}
	require.NoError(t, m.SetOwners([]string{"alice", "bob", "carol"}))

	owners, err := m.OwnerList()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, owners)

	assert.True(t, m.HasOwner("alice"))
	assert.True(t, m.HasOwner("carol"))
	assert.False(t, m.HasOwner("dave"))
}

func TestMultiSigAccountEmptyOwners(t *testing.T) {
	m := &MultiSigAccount{}
	owners, err := m.OwnerList()
	assert.NoError(t, err)
	assert.Empty(t, owners)
	assert.False(t, m.HasOwner("alice"))
}
