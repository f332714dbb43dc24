package main

import (
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/jurisdiction"
	"github.com/trezcool/admissions/core/shortlist"
	logsvc "github.com/trezcool/admissions/services/logger"
	"github.com/trezcool/admissions/storage/database"
	sqlxrepos "github.com/trezcool/admissions/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger(conf), "ADMIN", conf)
	logger.Enable(false)

	cli := commandLine{conf: conf, out: os.Stdout}

	if needsDB(os.Args) {
		db, err := database.Open(conf)
		if err != nil {
			logger.Fatal("opening database", err)
		}
		defer func() { _ = db.Close() }()

		validate := validator.New()
		core.InitValidators(validate, core.NewTranslator())

		tx := database.NewTransactor(db)
		jurisRepo := sqlxrepos.NewJurisdictionRepository(db)
		cli.db = db.DB
		cli.jurisSvc = jurisdiction.NewService(tx, jurisRepo)
		cli.shortlistSvc = shortlist.NewService(
			tx, sqlxrepos.NewShortlistRepository(db), sqlxrepos.NewApplicantRepository(db), jurisRepo, validate, logger,
		)
	}

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		os.Exit(1)
	}
}
