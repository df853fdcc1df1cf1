package user

import (
	"testing"
	"time"

	"github.com/trezcool/hifdh/core"
)

func TestMakeVerifyToken(t *testing.T) {
	svc := &Service{
		secretKey:            []byte("secret"),
		passwordResetTimeout: 3 * 24 * time.Hour,
	}

	now := time.Now()
	usr := User{
		ID:        "5f1d7a2c",
		Name:      "T",
		Email:     "t@test.test",
		Role:      RoleStudent,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	_ = usr.SetPassword("pwd")

	validToken, err := svc.makeToken(usr)
	if err != nil {
		t.Fatalf("makeToken() error = %v", err)
	}

	// generate an expired token
	dayLate := svc.passwordResetTimeout + (24 * time.Hour)
	core.NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := svc.makeToken(usr)
	core.NowFunc = time.Now // reset
	if err != nil {
		t.Fatalf("makeToken() error = %v", err)
	}

	// a new login invalidates previous tokens
	loggedIn := usr
	loggedIn.LastLogin = now.Add(time.Minute)

	// another secret key invalidates previous tokens
	otherSvc := &Service{secretKey: []byte("other"), passwordResetTimeout: svc.passwordResetTimeout}

	tests := []struct {
		name    string
		svc     *Service
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", svc: svc, usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", svc: svc, usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", svc: svc, usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", svc: svc, usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", svc: svc, usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", svc: svc, usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "user logged in since", svc: svc, usr: loggedIn, token: validToken, wantErr: errInvalidToken},
		{name: "other secret key", svc: otherSvc, usr: usr, token: validToken, wantErr: errInvalidToken},
		{name: "valid token", svc: svc, usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.svc.verifyToken(tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "users/abc-123"}
	got, err := decodeUID(EncodeUID(usr))
	if err != nil {
		t.Fatalf("decodeUID() error = %v", err)
	}
	if got != usr.ID {
		t.Errorf("decodeUID() = %v, want %v", got, usr.ID)
	}
}
