package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func protected(t *testing.T, a *Authenticator) http.Handler {
	return a.AuthJWT(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(r.Context())
		if !ok {
			t.Error("UserID() missing in protected handler")
		}
		w.Write([]byte(userID))
	}))
}

func TestAuthJWT_ValidToken(t *testing.T) {
	a := NewAuthenticator("secret")
	token, err := a.CreateJWT("user-1", time.Hour)
	if err != nil {
		t.Fatalf("CreateJWT() failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	protected(t, a).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rr.Code)
	}
	if rr.Body.String() != "user-1" {
		t.Errorf("UserID = %q, want user-1", rr.Body.String())
	}
}

func TestAuthJWT_Rejections(t *testing.T) {
	a := NewAuthenticator("secret")
	expired, _ := a.CreateJWT("user-1", -time.Minute)
	foreign, _ := NewAuthenticator("other").CreateJWT("user-1", time.Hour)
	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, AppClaims{}).SignedString([]byte("secret"))

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"malformed", "Bearer"},
		{"expired", "Bearer " + expired},
		{"wrong secret", "Bearer " + foreign},
		{"no subject", "Bearer " + noSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/projects", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			a.AuthJWT(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("Handler called for rejected request")
			})).ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("Status = %d, want 401", rr.Code)
			}
		})
	}
}

func TestParseJWT_RejectsOtherAlgorithms(t *testing.T) {
	a := NewAuthenticator("secret")
	token, _ := jwt.NewWithClaims(jwt.SigningMethodNone, AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	if _, err := a.ParseJWT(token); err == nil {
		t.Error("ParseJWT() accepted an unsigned token")
	}
}
