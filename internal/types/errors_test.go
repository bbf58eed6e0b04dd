package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	base := &Error{Kind: KindUpstreamRejected, Op: "login", Status: 401, Message: "bad credentials"}
	wrapped := fmt.Errorf("login flow: %w", base)

	assert.Equal(t, KindUpstreamRejected, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindUpstreamRejected))
	assert.False(t, IsKind(nil, KindUpstreamRejected))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))

	e, ok := AsError(wrapped)
	require.True(t, ok)
	assert.True(t, e.HasResponse())
	assert.Contains(t, e.Error(), "status 401")
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewError(KindNetworkFailure, "profile", "", cause)

	assert.ErrorIs(t, err, cause)
	assert.False(t, err.HasResponse())
	assert.Equal(t, "profile: network_failure: connection refused", err.Error())
}

func TestProfileDisplay(t *testing.T) {
	p, err := ParseProfile([]byte(`{"user_name":"ana","email":"ana@example.com","role":"fleet manager","extra":1}`))
	require.NoError(t, err)

	assert.Equal(t, "ana", p.DisplayName())
	assert.Equal(t, "Fleet manager", p.DisplayRole())
	assert.Equal(t, "(Not available)", p.DisplayPhone())
	assert.JSONEq(t, `{"user_name":"ana","email":"ana@example.com","role":"fleet manager","extra":1}`, string(p.Raw))

	assert.Equal(t, "Électricien", (&Profile{Role: "électricien"}).DisplayRole())

	var empty *Profile
	assert.Equal(t, "User", empty.DisplayName())
	assert.Equal(t, "", empty.DisplayRole())
}
