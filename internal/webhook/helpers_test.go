package webhook_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return priv
}

// signEnvelope signs a platform-style webhook body whose data claim is the
// JSON-encoded envelope.
func signEnvelope(t *testing.T, priv *rsa.PrivateKey, envelope map[string]any) string {
	t.Helper()
	encoded, err := json.Marshal(envelope)
	require.NoError(t, err)
	return signClaims(t, priv, jwt.MapClaims{"data": string(encoded)})
}

func signClaims(t *testing.T, priv *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(priv)
	require.NoError(t, err)
	return token
}
