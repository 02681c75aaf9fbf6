package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDBRejectsMalformedDSN(t *testing.T) {
	db, err := NewDB("://not-a-connection-string")
	require.Error(t, err)
	assert.Nil(t, db)
}
