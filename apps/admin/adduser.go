package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/plan"
	"github.com/agoras/agoras/core/profile"
)

var errStaffRole = errors.New("role must be admin or teacher")

// addUser appoints a staff member, creating their profile or updating the existing one.
func (cli *commandLine) addUser(email, name string, role profile.Role, pwd string) error {
	if !role.In(profile.RoleAdmin, profile.RoleTeacher) {
		return errStaffRole
	}

	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)
	now := time.Now().UTC()

	p, err := cli.profiles.GetProfile(ctx, profile.GetFilter{Email: email})
	exists := err == nil
	if err != nil {
		if !core.IsNotFound(err) {
			return err
		}
		p = profile.Profile{
			ID:        uuid.New().String(),
			Email:     email,
			PlanType:  plan.Free,
			CreatedAt: now,
		}
	}
	if name != "" {
		p.FullName = &name
	}
	p.Role = role
	p.UpdatedAt = now

	if err = profile.CheckPassword(pwd, p); err != nil {
		return err
	}
	if err = p.SetPassword(pwd); err != nil {
		return err
	}

	if exists {
		_, err = cli.profiles.UpdateProfile(ctx, p)
	} else {
		_, err = cli.profiles.CreateProfile(ctx, p)
	}
	return err
}
