package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/lightning-overlay-service/internal/store"
)

type runsCmd struct {
	Limit   int    `short:"n" default:"20" help:"Maximum runs to list."`
	Country string `help:"Only runs for this country."`
	Product string `help:"Only runs for this product."`
	Outcome string `help:"Only runs with this outcome."`
	JSON    bool   `name:"json" help:"Print JSON instead of a table."`
}

func (r *runsCmd) Run(a *app) error {
	if a.cfg.RunJournalPath == "" {
		return errors.New("run journal is disabled: set RUN_JOURNAL_PATH")
	}
	journal, err := store.Open(a.cfg.RunJournalPath, a.logger)
	if err != nil {
		return err
	}
	defer journal.Close()

	runs, err := journal.ListRuns(context.Background(), store.RunFilter{
		Product: r.Product,
		Country: r.Country,
		Outcome: r.Outcome,
		Limit:   r.Limit,
	})
	if err != nil {
		return err
	}

	if r.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tPRODUCT\tCOUNTRY\tDATE\tOUTCOME\tFLASHES\tDURATION")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			run.StartedAt.Format(time.DateTime), run.Product, run.Country, run.Date, run.Outcome,
			run.FlashesInCountry, run.Flashes, run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	return tw.Flush()
}
