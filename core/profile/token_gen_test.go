package profile

import (
	"testing"
	"time"
)

func TestMakeVerifyToken(t *testing.T) {
	timeout := 3 * 24 * time.Hour
	gen := newTokenGenerator("secret", timeout)

	now := time.Now()
	p := Profile{
		ID:        "4f7b8c2e-1d7a-4a8e-9a57-0e4c2b3f5a61",
		Email:     "t@test.no",
		Role:      RoleParent,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	_ = p.SetPassword("pwd")

	validToken, err := gen.makeToken(p)
	if err != nil {
		t.Fatalf("makeToken() failed: %v", err)
	}

	// generate an expired token
	dayLate := timeout + (24 * time.Hour)
	gen.nowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := gen.makeToken(p)
	if err != nil {
		t.Fatalf("makeToken() failed: %v", err)
	}
	gen.nowFunc = time.Now // reset

	// a new login invalidates previous tokens
	loggedAgain := p
	loggedAgain.LastLogin = now.Add(time.Minute)

	otherKey := newTokenGenerator("other secret", timeout)

	tests := []struct {
		name    string
		gen     *tokenGenerator
		p       Profile
		token   string
		wantErr error
	}{
		{name: "no token", gen: gen, p: p, wantErr: errInvalidToken},
		{name: "invalid parts len", gen: gen, p: p, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", gen: gen, p: p, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", gen: gen, p: p, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", gen: gen, p: p, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", gen: gen, p: p, token: expiredToken, wantErr: errTokenExpired},
		{name: "last login changed", gen: gen, p: loggedAgain, token: validToken, wantErr: errInvalidToken},
		{name: "other secret key", gen: otherKey, p: p, token: validToken, wantErr: errInvalidToken},
		{name: "valid token", gen: gen, p: p, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.gen.verifyToken(tt.p, tt.token); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	p := Profile{ID: "4f7b8c2e-1d7a-4a8e-9a57-0e4c2b3f5a61"}
	id, err := decodeUID(EncodeUID(p))
	if err != nil {
		t.Fatalf("decodeUID() failed: %v", err)
	}
	if id != p.ID {
		t.Errorf("decodeUID() = %s, want %s", id, p.ID)
	}
}
