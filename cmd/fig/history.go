package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"

	"github.com/alanbriolat/fig/internal/transfer"
)

var historyCommand = &cli.Command{
	Name:  "history",
	Usage: "list (or clear) recorded downloads",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "clear",
			Usage: "delete finished downloads from the record store",
		},
	},
	Action: history,
}

var statusColors = map[transfer.Status]*color.Color{
	transfer.StatusCompleted: color.New(color.FgGreen),
	transfer.StatusFailed:    color.New(color.FgRed),
	transfer.StatusCancelled: color.New(color.FgYellow),
}

func history(c *cli.Context) (err error) {
	db, err := openStore(c)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr)
		}
	}()

	records, err := db.ListRecords()
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	if c.Bool("clear") {
		var result error
		cleared := 0
		for _, r := range records {
			if !r.Status.IsTerminal() {
				continue
			}
			if err := db.DeleteRecord(r.ID); err != nil {
				result = multierror.Append(result, fmt.Errorf("failed to delete %q: %w", r.ID, err))
			} else {
				cleared++
			}
		}
		fmt.Printf("Cleared %d records\n", cleared)
		return result
	}

	for _, r := range records {
		status := string(r.Status)
		if col, ok := statusColors[r.Status]; ok {
			status = col.Sprint(status)
		}
		fmt.Printf("%-36s %-10s %6.2f%% %-8s %s\n", r.ID, status, r.Progress, r.Type, r.Path)
		if r.Error != "" {
			fmt.Printf("%36s %s\n", "", color.RedString(r.Error))
		}
	}
	return nil
}
