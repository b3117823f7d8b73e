package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	addr := NewAddress(raw)

	encoded := addr.String()
	require.True(t, strings.HasPrefix(encoded, AddressHRP+"1"))

	decoded, err := DecodeAddress(encoded)
	require.NoError(t, err)
	require.Equal(t, raw, decoded.Bytes())
	require.Equal(t, addr.Raw(), decoded.Raw())
}

func TestDecodeAddressRejectsBadInput(t *testing.T) {
	_, err := DecodeAddress("not-bech32")
	require.Error(t, err)

	// Valid bech32 under a foreign prefix must be refused.
	other := NewAddress(make([]byte, 20)).String()
	foreign := "xx" + other[len(AddressHRP):]
	_, err = DecodeAddress(foreign)
	require.Error(t, err)
}

func TestNewAddressRequiresTwentyBytes(t *testing.T) {
	require.Panics(t, func() { NewAddress([]byte{0x01, 0x02}) })
}

func TestPrivateKeyRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	restored, err := PrivateKeyFromBytes(key.Bytes())
	require.NoError(t, err)
	require.Equal(t, key.Bytes(), restored.Bytes())
	require.Equal(t, key.PubKey().Address().String(), restored.PubKey().Address().String())
}
