package engine

import (
	"strings"
	"unicode"
)

// SharedSecretEnv is consulted when no provider-specific secret exists.
const SharedSecretEnv = "WEBHOOK_SECRET"

// Secret sources, in precedence order.
const (
	secretFromRequest  = "request"
	secretFromProvider = "provider"
	secretFromEnv      = "env"
	secretFromShared   = "shared_env"
)

// SecretEnvName returns the provider-specific variable, e.g.
// GITHUB_WEBHOOK_SECRET. Characters outside [A-Za-z0-9] become '_'.
func SecretEnvName(providerName string) string {
	name := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, providerName)
	return name + "_WEBHOOK_SECRET"
}

func (e *Engine) resolveSecret(explicit string) (secret, source string) {
	if explicit != "" {
		return explicit, secretFromRequest
	}
	if s := e.provider.Secret(); s != "" {
		return s, secretFromProvider
	}
	if s, ok := e.lookupEnv(SecretEnvName(e.provider.Name())); ok && s != "" {
		return s, secretFromEnv
	}
	if s, ok := e.lookupEnv(SharedSecretEnv); ok && s != "" {
		return s, secretFromShared
	}
	return "", ""
}
