package identity

import (
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestFromTokenNumericUserIDClaim(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"userId": 42})

	id, err := FromToken(token)
	if err != nil {
		t.Fatalf("FromToken failed: %v", err)
	}
	if id.UserID != 42 {
		t.Fatalf("UserID = %d, want 42", id.UserID)
	}
	if id.Token != token {
		t.Fatalf("Token not carried through")
	}
}

func TestFromTokenStringSubClaim(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "7"})

	id, err := FromToken(token)
	if err != nil {
		t.Fatalf("FromToken failed: %v", err)
	}
	if id.UserID != 7 {
		t.Fatalf("UserID = %d, want 7", id.UserID)
	}
}

func TestFromTokenPrefersUserIDOverSub(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"userId": 3, "sub": "9"})

	id, err := FromToken(token)
	if err != nil {
		t.Fatalf("FromToken failed: %v", err)
	}
	if id.UserID != 3 {
		t.Fatalf("UserID = %d, want 3", id.UserID)
	}
}

func TestFromTokenMissingClaim(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"name": "no ids here"})

	if _, err := FromToken(token); !errors.Is(err, ErrNoUserID) {
		t.Fatalf("err = %v, want ErrNoUserID", err)
	}
}

func TestFromTokenGarbage(t *testing.T) {
	if _, err := FromToken("not.a.token"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestHeaders(t *testing.T) {
	id := Identity{UserID: 12, Token: "abc"}
	if got := id.BearerHeader(); got != "Bearer abc" {
		t.Fatalf("BearerHeader = %q", got)
	}
	if got := id.UserIDString(); got != "12" {
		t.Fatalf("UserIDString = %q", got)
	}
}
