// Package appfs embeds the SQL migrations and the email templates into the binaries.
package appfs

import "embed"

//go:embed migrations/*.sql templates/email/* common-passwords.txt.gz
var FS embed.FS

// MigrationsDir is the directory holding the goose migrations within FS.
const MigrationsDir = "migrations"

// CommonPasswordsFile is the gzipped list of passwords refused by the password policy.
const CommonPasswordsFile = "common-passwords.txt.gz"
