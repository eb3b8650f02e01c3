package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/lightning-overlay-service/internal/domain"
)

type generateCmd struct {
	Product string `default:"daily_lowres_density" help:"Density product ID."`
	Country string `required:"" short:"c" help:"Two-letter ISO country code."`
	Date    string `required:"" short:"d" help:"UTC day as YYYY-MM-DD."`
}

var errRunFailed = errors.New("overlay generation failed")

// Run prints each progress event and the overlay path on success.
func (g *generateCmd) Run(a *app) error {
	day, err := time.Parse(time.DateOnly, g.Date)
	if err != nil {
		return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", g.Date)
	}
	req, err := domain.ParseRequest(g.Product, g.Country, day.Year(), int(day.Month()), day.Day())
	if err != nil {
		return err
	}

	svc, err := a.build()
	if err != nil {
		return err
	}
	defer svc.close(a.logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for ev := range svc.orchestrator.Run(ctx, req) {
		fmt.Fprintf(os.Stderr, "[%3d%%] %s\n", ev.Percent(), ev.Message())
		switch e := ev.(type) {
		case domain.Succeeded:
			fmt.Println(svc.cache.Path(e.ResultRef))
		case domain.Failed:
			return errRunFailed
		}
	}
	return nil
}
