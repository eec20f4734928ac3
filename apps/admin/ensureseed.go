package main

import (
	"context"
	"errors"

	"github.com/campuskit/identity/core"
)

// ensureSeed idempotently provisions the super admin from configured
// credentials. Run at deploy time, never on server start.
func (cli *commandLine) ensureSeed() error {
	if core.Conf.SeedAdminEmail == "" || core.Conf.SeedAdminPassword == "" {
		return errors.New("SEEDADMINEMAIL and SEEDADMINPASSWORD must be configured")
	}
	usr, err := cli.usrSvc.EnsureSeedAdmin(context.Background(), core.Conf.SeedAdminEmail, core.Conf.SeedAdminPassword)
	if err != nil {
		return err
	}
	logger.Printf("super admin present: %s", usr.Email)
	return nil
}
