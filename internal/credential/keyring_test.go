package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	s := Store{Open: func() (keyring.Keyring, error) { return ring, nil }}

	require.NoError(t, s.Set("mirror-token", "secret"))
	got, err := s.Get("mirror-token")
	require.NoError(t, err)
	assert.Equal(t, "secret", got)

	require.NoError(t, s.Delete("mirror-token"))
	_, err = s.Get("mirror-token")
	assert.True(t, errors.Is(err, keyring.ErrKeyNotFound))
}
