package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var cheap = Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher([]byte("pepper"), cheap)

	digest, err := h.Hash("1234")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(digest, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected digest format %q", digest)
	}
	if !h.Verify("1234", digest) {
		t.Fatalf("expected match")
	}
	if h.Verify("4321", digest) {
		t.Fatalf("expected mismatch")
	}

	other, _ := h.Hash("1234")
	if other == digest {
		t.Fatalf("salt must differ between hashes")
	}
}

func TestHasher_PepperMatters(t *testing.T) {
	digest, err := NewHasher([]byte("a"), cheap).Hash("1234")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if NewHasher([]byte("b"), cheap).Verify("1234", digest) {
		t.Fatalf("different pepper must not verify")
	}
	if NewHasher(nil, cheap).Verify("1234", digest) {
		t.Fatalf("missing pepper must not verify")
	}
}

func TestHasher_MalformedDigestIsFalse(t *testing.T) {
	h := NewHasher(nil, cheap)
	for _, d := range []string{"", "plain", "$argon2i$v=19$m=1,t=1,p=1$aa$bb", "$argon2id$v=1$m=1,t=1,p=1$aa$bb", "$argon2id$v=19$m=1,t=1,p=1$!!$bb"} {
		if h.Verify("1234", d) {
			t.Errorf("Verify on %q must be false", d)
		}
	}
}

func TestTokenManager_AccessRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", 15*time.Minute, time.Hour)
	uid := uuid.New()
	now := time.Now()

	token, err := m.IssueAccess(uid, "S001", "STAFF", "active", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.ParseAccess(token, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != uid.String() || claims.StaffID != "S001" || claims.Role != "STAFF" || claims.Status != "active" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := m.ParseAccess(token, now.Add(16*time.Minute)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestTokenManager_RefreshIsNotAccess(t *testing.T) {
	m := NewTokenManager("secret", time.Minute, time.Hour)
	now := time.Now()
	sessionID := uuid.New()

	refresh, expiresAt, err := m.IssueRefresh(uuid.New(), "S001", sessionID, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !expiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expiresAt = %v", expiresAt)
	}
	if _, err := m.ParseAccess(refresh, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh used as access must fail, got %v", err)
	}
	claims, err := m.ParseRefresh(refresh, now)
	if err != nil {
		t.Fatalf("parse refresh: %v", err)
	}
	if claims.SessionID != sessionID.String() {
		t.Fatalf("session id = %s", claims.SessionID)
	}
}

func TestTokenManager_WrongSecretAndMethod(t *testing.T) {
	now := time.Now()
	token, err := NewTokenManager("one", time.Minute, time.Hour).IssueAccess(uuid.New(), "S", "STAFF", "active", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewTokenManager("two", time.Minute, time.Hour).ParseAccess(token, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret must fail, got %v", err)
	}

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &AccessClaims{Type: "access"})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := NewTokenManager("one", time.Minute, time.Hour).ParseAccess(raw, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("alg=none must fail, got %v", err)
	}
}
