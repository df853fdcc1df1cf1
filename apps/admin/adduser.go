package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/hifdh/core"
	"github.com/trezcool/hifdh/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(email, name, pwd string, role user.Role) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)

	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	switch errors.Cause(err) {
	case nil:
		if err := user.CheckPasswordPolicy(pwd, user.User{Name: firstNonEmpty(name, usr.Name), Email: email}); err != nil {
			return err
		}
		if _, err := cli.usrSvc.Update(ctx, usr, name, role, pwd); err != nil {
			return errors.Wrap(err, "updating user")
		}
		cli.logger.Info("user updated", map[string]interface{}{"user_id": usr.ID, "role": string(role)})
		return nil

	case user.ErrNotFound:
		if err := user.CheckPasswordPolicy(pwd, user.User{Name: name, Email: email}); err != nil {
			return err
		}
		usr, err = cli.usrSvc.Create(ctx, user.NewUser{Name: name, Email: email, Role: role, Password: pwd})
		if err != nil {
			return errors.Wrap(err, "creating user")
		}
		cli.logger.Info("user created", map[string]interface{}{"user_id": usr.ID, "role": string(role)})
		return nil

	default:
		return errors.Wrap(err, "finding user by email")
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
