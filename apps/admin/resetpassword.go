package main

import (
	"context"

	"github.com/trezcool/hifdh/core/user"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := user.CheckPasswordPolicy(pwd, usr); err != nil {
		return err
	}
	if _, err := cli.usrSvc.Update(ctx, usr, "", user.RoleNone, pwd); err != nil {
		return err
	}
	cli.logger.Info("password reset", usr)
	return nil
}
