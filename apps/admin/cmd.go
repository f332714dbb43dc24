package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/jurisdiction"
	"github.com/trezcool/admissions/core/shortlist"
	"github.com/trezcool/admissions/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword          // mockable
	createDBFunc     = database.CreateIfNotExist // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf         *core.Config
	db           *sql.DB
	jurisSvc     *jurisdiction.Service
	shortlistSvc *shortlist.Service
	out          io.Writer
}

// needsDB reports whether the command in args runs against the app database.
func needsDB(args []string) bool {
	if len(args) < 2 {
		return false
	}
	switch args[1] {
	case "migrate", "loadjurisdictions", "freezebatch", "counts":
		return true
	}
	return false
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  createdb - create the app user and database if they do not exist")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  loadjurisdictions -file PATH - import jurisdictions from a CSV or XLSX file")
	fmt.Fprintln(cli.out, "  freezebatch -id ID - freeze a shortlist batch")
	fmt.Fprintln(cli.out, "  counts -year YEAR - print applicant and shortlist counts of a year")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	loadCmd := flag.NewFlagSet("loadjurisdictions", flag.ContinueOnError)
	loadFile := loadCmd.String("file", "", "CSV or XLSX file with juris_code, juris_name, juris_type and parent_code columns.")

	freezeCmd := flag.NewFlagSet("freezebatch", flag.ContinueOnError)
	freezeID := freezeCmd.Int64("id", 0, "The shortlist batch ID.")

	countsCmd := flag.NewFlagSet("counts", flag.ContinueOnError)
	countsYear := countsCmd.Int("year", 0, "The NMMS year.")

	for _, fs := range []*flag.FlagSet{loadCmd, freezeCmd, countsCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "createdb":
		if cli.conf.Database.AdminPassword == "" {
			fmt.Fprintf(cli.out, "Enter password of %s:", cli.conf.Database.AdminUser)
			pwd, err := readPasswordFunc(int(syscall.Stdin))
			fmt.Fprintln(cli.out)
			if err != nil {
				return err
			}
			cli.conf.Database.AdminPassword = string(pwd)
		}
		return cli.createDB()
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "loadjurisdictions":
		if err := loadCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *loadFile == "" {
			loadCmd.Usage()
			return errHelp
		}
		return cli.loadJurisdictions(*loadFile)
	case "freezebatch":
		if err := freezeCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *freezeID <= 0 {
			freezeCmd.Usage()
			return errHelp
		}
		return cli.freezeBatch(*freezeID)
	case "counts":
		if err := countsCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *countsYear <= 0 {
			countsCmd.Usage()
			return errHelp
		}
		return cli.counts(*countsYear)
	default:
		cli.printUsage()
		return errHelp
	}
}
