package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/towing-settlement/internal/model"
)

func TestParserRoundTrip(t *testing.T) {
	parser := NewParser("secret")
	principal := model.Principal{UserID: uuid.New(), OrgID: uuid.New(), Role: model.UserRoleFinance}

	token, err := parser.Issue(principal, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)

	got, err := parser.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, principal, got)
}

func TestParserRejects(t *testing.T) {
	parser := NewParser("secret")
	principal := model.Principal{UserID: uuid.New(), OrgID: uuid.New(), Role: model.UserRoleAdmin}

	expired, err := parser.Issue(principal, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	require.NoError(t, err)

	foreign, err := NewParser("other").Issue(principal, jwt.RegisteredClaims{})
	require.NoError(t, err)

	badRole, err := parser.Issue(model.Principal{UserID: uuid.New(), OrgID: uuid.New(), Role: "DRIVER"}, jwt.RegisteredClaims{})
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":    "",
		"garbage":  "not-a-token",
		"expired":  expired,
		"foreign":  foreign,
		"bad role": badRole,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parser.Parse(token)
			assert.True(t, errors.Is(err, ErrInvalidToken))
		})
	}
}
