package main

import (
	"context"

	"github.com/fatih/color"

	"github.com/trezcool/admissions/storage/database"
)

var gooseRunFunc = database.Migrate // mockable

func (cli *commandLine) createDB() error {
	if err := createDBFunc(cli.conf); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(cli.out, "database %s is ready\n", cli.conf.Database.Name)
	return nil
}

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(context.Background(), cli.db, args[0], arguments...)
}
