package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hilthontt/syncbroker/internal/domain"
)

func TestConfirmUserDeliversToAwaiter(t *testing.T) {
	d := NewDeferredRegistry()
	signer := &Signer{env: fixedEnv(nil)}

	d.Register("tok-1")

	done := make(chan struct{})
	var gotToken string
	var gotErr error
	go func() {
		gotToken, gotErr = d.Await("tok-1")
		close(done)
	}()

	user := domain.User{ID: "u1", Name: "Alice"}
	confirmed, err := d.ConfirmUser("tok-1", user, signer)
	require.NoError(t, err)

	<-done
	require.NoError(t, gotErr)
	assert.Equal(t, confirmed, gotToken)

	got, err := signer.GetUser(gotToken)
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestAwaitUnknownTokenFailsImmediately(t *testing.T) {
	d := NewDeferredRegistry()

	_, err := d.Await("never-registered")
	assert.ErrorIs(t, err, domain.ErrAuthTimeout)
}

func TestConfirmUserUnknownTokenFails(t *testing.T) {
	d := NewDeferredRegistry()
	signer := &Signer{env: fixedEnv(nil)}

	_, err := d.ConfirmUser("never-registered", domain.User{ID: "u1", Name: "Alice"}, signer)
	assert.ErrorIs(t, err, domain.ErrAuthTimeout)
}

func TestConfirmUserSettlesOnlyOnce(t *testing.T) {
	d := NewDeferredRegistry()
	signer := &Signer{env: fixedEnv(nil)}

	d.Register("tok-1")

	_, err := d.ConfirmUser("tok-1", domain.User{ID: "u1", Name: "Alice"}, signer)
	require.NoError(t, err)

	_, err = d.ConfirmUser("tok-1", domain.User{ID: "u2", Name: "Bob"}, signer)
	assert.ErrorIs(t, err, domain.ErrAuthTimeout)
}
