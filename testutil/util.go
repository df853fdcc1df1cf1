package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/hifdh/core"
	"github.com/trezcool/hifdh/core/user"
)

// Config returns the configuration used by the tests.
func Config(t *testing.T) *core.Config {
	t.Helper()
	conf, err := core.LoadConfig("TEST", core.Getwd())
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	return conf
}

// FreezeTime sets core.NowFunc to a clock stuck at now, until the test ends.
func FreezeTime(t *testing.T, now time.Time) {
	t.Helper()
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = orig })
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	role user.Role,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := core.NowFunc().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}
