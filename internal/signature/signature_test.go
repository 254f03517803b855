package signature

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	svc, err := NewService()
	require.NoError(t, err)
	defer svc.Close()

	msg := []byte("authenticate-me")
	sig, err := svc.Sign(msg)
	require.NoError(t, err)

	require.True(t, Verify(msg, sig, svc.PublicKey()))
}

func TestVerify_WrongKeyFails(t *testing.T) {
	a, err := NewService()
	require.NoError(t, err)
	defer a.Close()
	b, err := NewService()
	require.NoError(t, err)
	defer b.Close()

	msg := []byte("authenticate-me")
	sig, err := a.Sign(msg)
	require.NoError(t, err)

	require.False(t, Verify(msg, sig, b.PublicKey()))
}

func TestVerify_TamperedMessageFails(t *testing.T) {
	svc, err := NewService()
	require.NoError(t, err)
	defer svc.Close()

	sig, err := svc.Sign([]byte("original"))
	require.NoError(t, err)

	require.False(t, Verify([]byte("tampered"), sig, svc.PublicKey()))
}

func TestVerify_MalformedInputsDoNotPanic(t *testing.T) {
	require.False(t, Verify([]byte("x"), []byte("bad-sig"), []byte("bad-key")))
	require.False(t, Verify(nil, nil, nil))
}

func TestSignAfterClose_Fails(t *testing.T) {
	svc, err := NewService()
	require.NoError(t, err)
	svc.Close()

	_, err = svc.Sign([]byte("anything"))
	require.Error(t, err)
}
