package config

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// KeySource records where the verification key came from.
type KeySource string

const (
	KeySourceEnv    KeySource = "env"
	KeySourceFile   KeySource = "file"
	KeySourceAbsent KeySource = "absent"
)

// VerificationKey is the platform public key used to check token and
// webhook signatures. It is resolved once at startup and never mutated.
type VerificationKey struct {
	Material string
	Source   KeySource
}

// Configured reports whether any key material is present.
func (k VerificationKey) Configured() bool {
	return k.Material != ""
}

// RSAPublicKey parses the key material. It returns (nil, nil) when no key
// is configured.
func (k VerificationKey) RSAPublicKey() (*rsa.PublicKey, error) {
	if !k.Configured() {
		return nil, nil
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(normalizePEM(k.Material)))
	if err != nil {
		return nil, fmt.Errorf("parsing %s verification key: %w", k.Source, err)
	}
	return pub, nil
}

// ResolveVerificationKey picks the key from the configured value first,
// then the key file, and otherwise reports it absent. It never fails: an
// unreadable file is logged and treated as absent.
func ResolveVerificationKey(cfg PlatformConfig, logger *slog.Logger) VerificationKey {
	if logger == nil {
		logger = slog.Default()
	}

	if material := strings.TrimSpace(cfg.PublicKey); material != "" {
		return VerificationKey{Material: material, Source: KeySourceEnv}
	}

	path := cfg.PublicKeyFile
	if path == "" {
		path = DefaultPublicKeyFile
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Debug("verification key file not found", "path", path)
	case err != nil:
		logger.Error("reading verification key file", "path", path, "error", err)
	default:
		if material := strings.TrimSpace(string(data)); material != "" {
			return VerificationKey{Material: material, Source: KeySourceFile}
		}
		logger.Warn("verification key file is empty", "path", path)
	}

	return VerificationKey{Source: KeySourceAbsent}
}

// normalizePEM restores newlines in keys that were pasted into a single
// environment variable line.
func normalizePEM(material string) string {
	if strings.Contains(material, "\n") {
		return material
	}
	return strings.ReplaceAll(material, `\n`, "\n")
}
