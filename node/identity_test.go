// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentityPlaintextRoundTrip(t *testing.T) {
	id, err := GenerateIdentity()
	require.NoError(t, err)

	data, err := id.MarshalPlaintext()
	require.NoError(t, err)

	loaded, err := LoadIdentity(data, nil)
	require.NoError(t, err)
	require.Equal(t, id.PublicKey, loaded.PublicKey)
	require.Equal(t, id.PrivateKey, loaded.PrivateKey)
	require.Equal(t, id.PeerID(), loaded.PeerID())
}

func TestIdentityEncryptedRoundTrip(t *testing.T) {
	id, err := GenerateIdentity()
	require.NoError(t, err)

	passphrase := []byte("correct horse battery staple")
	data, err := id.MarshalEncrypted(passphrase)
	require.NoError(t, err)

	loaded, err := LoadIdentity(data, passphrase)
	require.NoError(t, err)
	require.Equal(t, id.PublicKey, loaded.PublicKey)
	require.Equal(t, id.PeerID(), loaded.PeerID())
}

func TestIdentityEncryptedRejectsWrongPassphrase(t *testing.T) {
	id, err := GenerateIdentity()
	require.NoError(t, err)

	data, err := id.MarshalEncrypted([]byte("right"))
	require.NoError(t, err)

	_, err = LoadIdentity(data, []byte("wrong"))
	require.Error(t, err)
}
