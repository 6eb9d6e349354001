package config

import (
	"os"
	"strings"
)

const (
	appEnvVar = "APP_ENV"

	// EnvironmentDevelopment is the default when APP_ENV is unset.
	EnvironmentDevelopment = "development"
	// EnvironmentProduction selects production configuration and defaults.
	EnvironmentProduction = "production"
	// EnvironmentStaging behaves like production for defaults and validation.
	EnvironmentStaging = "staging"
)

var environmentAliases = map[string]string{
	"dev":   EnvironmentDevelopment,
	"prod":  EnvironmentProduction,
	"stage": EnvironmentStaging,
	"stag":  EnvironmentStaging,
}

// getAppEnvironment reads the application environment from APP_ENV and
// defaults to development when no value is provided.
func getAppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return EnvironmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// resolveEnvSpecificPath selects an environment specific configuration file
// when one is registered for the current environment. An explicitly chosen
// path other than the default always wins.
func resolveEnvSpecificPath(path, defaultPath string, envPaths map[string]string) string {
	if path == "" {
		path = defaultPath
	}

	env := getAppEnvironment()
	if envPath, ok := envPaths[env]; ok {
		if path == defaultPath || path == envPath {
			return envPath
		}
	}

	return path
}

// AppEnvironment exposes the current application environment as configured
// through the APP_ENV environment variable, normalised with the same alias
// rules used for environment specific config files.
func AppEnvironment() string {
	return getAppEnvironment()
}

// IsProductionLike reports whether env should get production behaviour.
// Production and staging deployments default to machine-readable logging.
func IsProductionLike(env string) bool {
	switch env {
	case EnvironmentProduction, EnvironmentStaging:
		return true
	default:
		return false
	}
}
