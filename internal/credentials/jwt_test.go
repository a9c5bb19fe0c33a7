package credentials

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hilthontt/syncbroker/internal/domain"
)

func fixedEnv(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestGenerateAndVerifyRoundTrip(t *testing.T) {
	signer := &Signer{env: fixedEnv(map[string]string{"JWT_PRIVATE_KEY": "test-secret"})}
	user := domain.User{ID: "u1", Name: "Alice", Email: "alice@example.com"}

	token, err := signer.GenerateJWT(user)
	require.NoError(t, err)

	got, err := signer.GetUser(token)
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestVerifyJWTRejectsTampering(t *testing.T) {
	signer := &Signer{env: fixedEnv(map[string]string{"JWT_PRIVATE_KEY": "test-secret"})}
	user := domain.User{ID: "u1", Name: "Alice"}

	token, err := signer.GenerateJWT(user)
	require.NoError(t, err)

	// Replace the first signature character: unlike the last one, all six
	// of its bits are significant, so the decoded signature always changes.
	sig := strings.LastIndex(token, ".") + 1
	replacement := "A"
	if token[sig] == 'A' {
		replacement = "B"
	}
	tampered := token[:sig] + replacement + token[sig+1:]

	var out domain.User
	err = signer.VerifyJWT(tampered, &out)
	assert.ErrorIs(t, err, domain.ErrAuthInvalid)
}

func TestVerifyJWTRejectsTokenFromDifferentSecret(t *testing.T) {
	signerA := &Signer{env: fixedEnv(map[string]string{"JWT_PRIVATE_KEY": "secret-a"})}
	signerB := &Signer{env: fixedEnv(map[string]string{"JWT_PRIVATE_KEY": "secret-b"})}

	token, err := signerA.GenerateJWT(domain.User{ID: "u1", Name: "Alice"})
	require.NoError(t, err)

	_, err = signerB.GetUser(token)
	assert.ErrorIs(t, err, domain.ErrAuthInvalid)
}

func TestGetRoomClaimRoundTrip(t *testing.T) {
	signer := &Signer{env: fixedEnv(nil)}
	claim := domain.RoomClaim{Room: "room-1", User: domain.User{ID: "u1", Name: "Alice"}, Host: true}

	token, err := signer.GenerateJWT(claim)
	require.NoError(t, err)

	got, err := signer.GetRoomClaim(token)
	require.NoError(t, err)
	assert.Equal(t, claim, got)
}

func TestGetUserRejectsMissingRequiredFields(t *testing.T) {
	signer := &Signer{env: fixedEnv(nil)}

	token, err := signer.GenerateJWT(domain.RoomClaim{Room: "room-1"})
	require.NoError(t, err)

	_, err = signer.GetUser(token)
	assert.ErrorIs(t, err, domain.ErrAuthInvalid)
}
