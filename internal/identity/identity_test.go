package identity

import (
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderResolver(t *testing.T) {
	res := NewHeaderResolver("")

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set(DefaultHeader, "  Ana@Example.COM ")
	email, err := res.Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", email)

	r = httptest.NewRequest("GET", "/", nil)
	_, err = res.Resolve(r)
	assert.True(t, eris.Is(err, ErrUnauthenticated))

	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set(DefaultHeader, "not-an-email")
	_, err = res.Resolve(r)
	assert.True(t, eris.Is(err, ErrUnauthenticated))
}

func TestHeaderResolverCustomHeader(t *testing.T) {
	res := NewHeaderResolver("X-Forwarded-Email")
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-Email", "ops@example.com")
	email, err := res.Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", email)
}

func TestStatic(t *testing.T) {
	email, err := Static("cli@example.com").Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, "cli@example.com", email)

	_, err = Static("").Resolve(nil)
	assert.True(t, eris.Is(err, ErrUnauthenticated))
}
