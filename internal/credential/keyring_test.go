package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaultRoundTrip(t *testing.T) {
	v := NewVault(keyring.NewArrayKeyring(nil))

	_, err := v.Get(KeySMTPPassword)
	assert.ErrorIs(t, err, ErrNotFound)
	val, err := v.Lookup(KeySMTPPassword)
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, v.Set(KeySMTPPassword, "hunter2"))
	val, err = v.Get(KeySMTPPassword)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", val)

	require.NoError(t, v.Delete(KeySMTPPassword))
	_, err = v.Get(KeySMTPPassword)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSigningKeyGeneratedOnce(t *testing.T) {
	v := NewVault(keyring.NewArrayKeyring(nil))

	first, err := v.SigningKey()
	require.NoError(t, err)
	assert.Len(t, first, 32)

	second, err := v.SigningKey()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, v.Set(KeySigningKey, "not-hex"))
	_, err = v.SigningKey()
	assert.Error(t, err)
}
