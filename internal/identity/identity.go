// Package identity resolves the caller behind each request. The service sits
// behind an authenticating proxy that forwards the verified account email in
// a request header, so resolution here is extraction, not verification.
package identity

import (
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrUnauthenticated marks a request with no resolvable caller.
var ErrUnauthenticated = eris.New("identity: unauthenticated")

// DefaultHeader is the proxy header carrying the verified account email.
const DefaultHeader = "X-User-Email"

// Resolver extracts the caller's email from a request.
type Resolver interface {
	Resolve(r *http.Request) (string, error)
}

// HeaderResolver trusts a proxy-set email header.
type HeaderResolver struct {
	header string
}

// NewHeaderResolver builds a resolver reading the given header, falling back
// to DefaultHeader when empty.
func NewHeaderResolver(header string) *HeaderResolver {
	if header == "" {
		header = DefaultHeader
	}
	return &HeaderResolver{header: header}
}

func (h *HeaderResolver) Resolve(r *http.Request) (string, error) {
	email := strings.ToLower(strings.TrimSpace(r.Header.Get(h.header)))
	if email == "" || !strings.Contains(email, "@") {
		return "", ErrUnauthenticated
	}
	return email, nil
}

// Static always resolves to a fixed email. The CLI commands run as a single
// local operator and use this.
type Static string

func (s Static) Resolve(*http.Request) (string, error) {
	if s == "" {
		return "", ErrUnauthenticated
	}
	return string(s), nil
}
