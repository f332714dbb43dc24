package main

import (
	"context"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core/ingest"
	"github.com/trezcool/admissions/core/jurisdiction"
)

// loadJurisdictions imports a jurisdiction file. Parents may come before or after their children.
func (cli *commandLine) loadJurisdictions(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading jurisdictions file")
	}
	rows, err := ingest.Parse(data, path)
	if err != nil {
		return err
	}

	nodes := make([]jurisdiction.Node, 0, len(rows))
	for _, row := range rows {
		nodes = append(nodes, jurisdiction.Node{
			Code:       row["juris_code"],
			Name:       row["juris_name"],
			Type:       jurisdiction.Type(row["juris_type"]),
			ParentCode: null.NewString(row["parent_code"], row["parent_code"] != ""),
		})
	}

	n, err := cli.jurisSvc.ImportNodes(context.Background(), nodes)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(cli.out, "%d jurisdictions loaded\n", n)
	return nil
}
