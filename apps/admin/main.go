package main

import (
	"os"

	"go.uber.org/zap"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/profile"
	appfs "github.com/agoras/agoras/fs"
	logsvc "github.com/agoras/agoras/services/logger"
	"github.com/agoras/agoras/storage/database"
	sqlxrepos "github.com/agoras/agoras/storage/database/sqlx"
)

var logger *zap.SugaredLogger

func main() {
	conf := core.NewConfig()

	var err error
	if logger, err = logsvc.NewZap(conf.Env); err != nil {
		panic(err)
	}
	logger = logger.Named("admin")
	defer func() { _ = logger.Sync() }()

	errAndDie(conf.Validate())
	errAndDie(loadCommonPasswords())

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()
	errAndDie(db.Ping())

	// start CLI
	cli := commandLine{
		db:       db.DB,
		profiles: sqlxrepos.NewProfileRepository(db),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Errorw("command failed", "error", err)
		}
		_ = db.Close()
		os.Exit(1)
	}
}

func loadCommonPasswords() error {
	f, err := appfs.FS.Open(appfs.CommonPasswordsFile)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return profile.LoadCommonPasswords(f)
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
