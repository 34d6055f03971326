package auth

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// tenantClaimPaths lists where platform tokens carry the instance id, in
// precedence order.
var tenantClaimPaths = [][]string{
	{"instanceId"},
	{"data", "metadata", "instanceId"},
	{"data", "instanceId"},
	{"sub"},
	{"app_instance_id"},
}

// ExtractTenantID returns the first non-empty instance id found along
// tenantClaimPaths.
func ExtractTenantID(claims map[string]any) string {
	for _, path := range tenantClaimPaths {
		v, ok := lookupPath(claims, path...)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// lookupPath walks nested objects. Intermediate values that are JSON
// strings are decoded on the way, since some token kinds serialize their
// data claim.
func lookupPath(m map[string]any, path ...string) (any, bool) {
	var cur any = m
	for _, key := range path {
		obj, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func asObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case jwt.MapClaims:
		return t, true
	case string:
		var obj map[string]any
		if err := json.Unmarshal([]byte(t), &obj); err != nil {
			return nil, false
		}
		return obj, true
	default:
		return nil, false
	}
}

// decodeUnverified reads the claims of a three-part token without checking
// its signature. The header is not inspected, so tokens without a usable
// alg still decode.
func decodeUnverified(raw string) (map[string]any, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("token has %d segments, want 3", len(parts))
	}
	payload, err := jwt.NewParser().DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decoding token claims: %w", err)
	}
	claims := jwt.MapClaims{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("decoding token claims: %w", err)
	}
	return claims, nil
}
