// Package authz holds the static token-based authorizer used for the
// approval path. Tokens are issued out of band to the staff permitted to
// approve, reject or delete analyses.
package authz

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/qprlabs/kpi-engine/internal/core/domain"
)

// StaticAuthorizer authorizes against a fixed approver token set. An empty
// set disables the check, which is the development default.
type StaticAuthorizer struct {
	tokens map[string]struct{}
}

// NewStaticAuthorizer takes a comma-separated token list.
func NewStaticAuthorizer(tokenList string) *StaticAuthorizer {
	tokens := make(map[string]struct{})
	for _, token := range strings.Split(tokenList, ",") {
		token = strings.TrimSpace(token)
		if token != "" {
			tokens[token] = struct{}{}
		}
	}
	return &StaticAuthorizer{tokens: tokens}
}

func (a *StaticAuthorizer) CanDecide(_ context.Context, principal domain.Principal, _ string) (bool, error) {
	if len(a.tokens) == 0 {
		return true, nil
	}
	token := strings.TrimSpace(principal.Token)
	if token == "" {
		return false, nil
	}
	for candidate := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			return true, nil
		}
	}
	return false, nil
}

// PrincipalFromBearer extracts the caller from an Authorization header.
func PrincipalFromBearer(headerValue string) domain.Principal {
	headerValue = strings.TrimSpace(headerValue)
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(headerValue, bearerPrefix) {
		return domain.Principal{}
	}
	token := strings.TrimSpace(strings.TrimPrefix(headerValue, bearerPrefix))
	return domain.Principal{ID: "approver", Token: token}
}
