package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticToken(t *testing.T) {
	tok, err := StaticToken(" abc ").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = StaticToken("").Token(context.Background())
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestEnvToken(t *testing.T) {
	t.Setenv("BOARDSYNC_TEST_TOKEN", "from-env")
	tok, err := EnvToken("BOARDSYNC_TEST_TOKEN").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-env", tok)

	t.Setenv("BOARDSYNC_TEST_TOKEN", "")
	_, err = EnvToken("BOARDSYNC_TEST_TOKEN").Token(context.Background())
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestFileToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")

	_, err := FileToken(path).Token(context.Background())
	assert.ErrorIs(t, err, ErrNoCredential)

	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0o600))
	tok, err := FileToken(path).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", tok)

	require.NoError(t, os.WriteFile(path, []byte("rotated"), 0o600))
	tok, err = FileToken(path).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rotated", tok)
}

func TestChain(t *testing.T) {
	tok, err := Chain{StaticToken(""), StaticToken("second")}.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", tok)

	_, err = Chain{StaticToken("")}.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestMintAndVerify(t *testing.T) {
	secret := []byte("test-secret")
	signed, err := MintDevToken(secret, 42, time.Hour)
	require.NoError(t, err)

	v := NewVerifier(secret)
	id, err := v.UserIDFromAuthHeader("Bearer " + signed)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = NewVerifier([]byte("other")).UserID(signed)
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredAndMalformed(t *testing.T) {
	secret := []byte("test-secret")
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := expired.SignedString(secret)
	require.NoError(t, err)

	v := NewVerifier(secret)
	_, err = v.UserID(signed)
	assert.Error(t, err)

	_, err = v.UserIDFromAuthHeader("")
	assert.ErrorIs(t, err, errMissingAuthorization)
	_, err = v.UserIDFromAuthHeader("Basic abc")
	assert.ErrorIs(t, err, errBadAuthorization)

	noSub := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	signed, err = noSub.SignedString(secret)
	require.NoError(t, err)
	_, err = v.UserID(signed)
	assert.Error(t, err)
}

func TestMintRequiresSecret(t *testing.T) {
	_, err := MintDevToken(nil, 1, time.Hour)
	assert.Error(t, err)
}
