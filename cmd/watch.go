package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/givddul/issuerelay/internal/event"
	"github.com/givddul/issuerelay/internal/view"
)

// WatchCommand returns the CLI command for following a relay's issue list in
// the terminal. It is a full viewer: initial fetch, live patches from the
// event stream, and a refetch whenever a patch misses.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Follow the live issue list of a running relay",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "Base URL of the relay server",
				Value:   "http://localhost:3000",
			},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			client := view.NewClient(c.String("server"))
			rec := view.NewReconciler()

			refetch := func() {
				issues, err := client.FetchIssues(ctx)
				if err != nil {
					log.Error().Err(err).Msg("failed to fetch issue list")
					return
				}
				rec.Replace(issues)
				render(rec)
			}

			apply := func(ev event.Event) {
				result := rec.Apply(ev)
				if result.RefetchNeeded {
					// The event referenced an issue we do not have; reload
					// the full list rather than dropping the update.
					refetch()
					return
				}
				if result.Changed {
					render(rec)
				}
			}

			err := client.StreamWithRetry(ctx, 5*time.Second, apply, refetch)
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
}

func render(rec *view.Reconciler) {
	issues := rec.Issues()
	fmt.Printf("\n=== %d issues ===\n", len(issues))
	for _, issue := range issues {
		fmt.Printf("#%d [%s] %s (updated %s)\n",
			issue.IID, issue.State, issue.Title, issue.UpdatedAt.Format("2006-01-02 15:04"))
		for _, note := range issue.Notes {
			fmt.Printf("    - %s\n", note.Body)
		}
		if issue.NotesTruncated {
			fmt.Println("    (notes unavailable)")
		}
	}
}
