package config

import "strings"

// Environment names the deployment the process runs in.
type Environment string

const (
	EnvProduction  Environment = "production"
	EnvDevelopment Environment = "development"
	EnvTest        Environment = "test"
)

// IsProduction reports whether the environment must be treated as
// production. Only an explicit development-style name opts out, so an
// empty or unknown value is production.
func (e Environment) IsProduction() bool {
	switch strings.ToLower(strings.TrimSpace(string(e))) {
	case "development", "dev", "local", "test":
		return false
	default:
		return true
	}
}

// AllowsDegradedAuth reports whether request authentication may fall back
// to anonymous or unverified modes.
func (e Environment) AllowsDegradedAuth() bool {
	return !e.IsProduction()
}
