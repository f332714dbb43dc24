package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
)

func (cli *commandLine) freezeBatch(id int64) error {
	batch, err := cli.shortlistSvc.FreezeBatch(context.Background(), id)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(cli.out, "batch #%d %q is frozen\n", batch.ID, batch.Name)
	return nil
}

func (cli *commandLine) counts(year int) error {
	ctx := context.Background()

	total, err := cli.shortlistSvc.CountApplicantsByYear(ctx, year)
	if err != nil {
		return errors.Wrap(err, "counting applicants")
	}
	batches, err := cli.shortlistSvc.ListBatches(ctx, year)
	if err != nil {
		return errors.Wrap(err, "listing batches")
	}

	color.New(color.Bold).Fprintf(cli.out, "Year %d: %d applicants, %d batches\n", year, total, len(batches))
	if len(batches) == 0 {
		return nil
	}

	table := tablewriter.NewWriter(cli.out)
	table.SetHeader([]string{"Batch", "Name", "Blocks", "Shortlisted", "Status"})
	table.SetAutoFormatHeaders(false)
	for _, b := range batches {
		n, err := cli.shortlistSvc.CountShortlistedByBatch(ctx, b.ID)
		if err != nil {
			return errors.Wrapf(err, "counting selections of batch %d", b.ID)
		}
		status := color.YellowString("active")
		if b.Frozen {
			status = color.CyanString("frozen")
		}
		table.Append([]string{
			strconv.FormatInt(b.ID, 10), b.Name, strings.Join(b.BlockCodes, ", "), strconv.Itoa(n), status,
		})
	}
	table.Render()
	return nil
}
