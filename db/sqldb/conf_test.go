package sqldb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeptools/gw-dbi/sec"
)

func TestConfPassword(t *testing.T) {
	key, err := sec.GenerateEncodedKey()
	require.NoError(t, err)
	cipher, err := sec.NewCipherFromEncodedKey(key)
	require.NoError(t, err)
	sealed, err := cipher.EncryptEncode([]byte("hunter2"))
	require.NoError(t, err)

	plain := &Conf{PW: "plain"}
	pw, err := plain.Password(nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", pw)

	c := &Conf{PW: "ignored", PWEnc: sealed}
	_, err = c.Password(nil)
	assert.ErrorIs(t, err, ErrNoDecrypter)

	require.NoError(t, c.ResolvePassword(cipher))
	assert.Equal(t, "hunter2", c.PW)
	assert.Empty(t, c.PWEnc)
}

type failingDecrypter struct{}

func (failingDecrypter) DecodeDecrypt(string) ([]byte, error) {
	return nil, errors.New("message authentication failed")
}

func TestConfPasswordDecryptError(t *testing.T) {
	c := &Conf{PWEnc: "xxx"}
	err := c.ResolvePassword(failingDecrypter{})
	assert.ErrorContains(t, err, "failed to decrypt pw_enc")
	assert.Equal(t, "xxx", c.PWEnc)
}
