package identity

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoUserID = errors.New("identity: token carries no user id claim")

// Identity is the current user's id and bearer credential. It is read from
// the surrounding session at connect/send time and never cached beyond the
// call that received it.
type Identity struct {
	UserID int64
	Token  string
}

func (id Identity) BearerHeader() string {
	return "Bearer " + id.Token
}

func (id Identity) UserIDString() string {
	return strconv.FormatInt(id.UserID, 10)
}

// FromToken recovers the user id from the access token claims. The signature
// is not verified: the client never holds the backend's signing secret, it
// only forwards the credential.
func FromToken(token string) (Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}

	for _, key := range []string{"userId", "sub"} {
		raw, ok := claims[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case float64:
			return Identity{UserID: int64(v), Token: token}, nil
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return Identity{UserID: n, Token: token}, nil
			}
		}
	}
	return Identity{}, ErrNoUserID
}
