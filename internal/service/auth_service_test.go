package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"funnypdf/internal/models"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() failed: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("hash equals the plaintext")
	}

	if !CheckPassword(hash, "s3cret") {
		t.Error("CheckPassword() rejected the correct password")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("CheckPassword() accepted a wrong password")
	}
}

func TestGenerateToken_Claims(t *testing.T) {
	s := NewAuthService(nil, "test-secret", time.Hour)
	user := &models.User{
		ID:       uuid.New(),
		Username: "alice",
		Role:     models.RoleAdmin,
	}

	signed, err := s.generateToken(user)
	if err != nil {
		t.Fatalf("generateToken() failed: %v", err)
	}

	token, err := jwt.Parse(signed, func(tok *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil || !token.Valid {
		t.Fatalf("parsing token: %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatal("claims are not MapClaims")
	}
	if claims["sub"] != user.ID.String() {
		t.Errorf("sub = %v, want %s", claims["sub"], user.ID)
	}
	if claims["username"] != "alice" {
		t.Errorf("username = %v, want alice", claims["username"])
	}
	if claims["role"] != string(models.RoleAdmin) {
		t.Errorf("role = %v, want admin", claims["role"])
	}
}

func TestGenerateToken_WrongSecretRejected(t *testing.T) {
	s := NewAuthService(nil, "test-secret", time.Hour)
	signed, err := s.generateToken(&models.User{ID: uuid.New(), Username: "bob", Role: models.RoleUser})
	if err != nil {
		t.Fatalf("generateToken() failed: %v", err)
	}

	token, err := jwt.Parse(signed, func(tok *jwt.Token) (interface{}, error) {
		return []byte("other-secret"), nil
	})
	if err == nil && token.Valid {
		t.Error("token verified with the wrong secret")
	}
}
