package main

import (
	"context"
	"time"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/profile"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	p, err := cli.profiles.GetProfile(ctx, profile.GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	if err = profile.CheckPassword(pwd, p); err != nil {
		return err
	}
	if err = p.SetPassword(pwd); err != nil {
		return err
	}
	p.UpdatedAt = time.Now().UTC()
	_, err = cli.profiles.UpdateProfile(ctx, p)
	return err
}
