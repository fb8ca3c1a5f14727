package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/resy-sniper/internal/config"
	"github.com/example/resy-sniper/internal/db"
	"github.com/example/resy-sniper/internal/migrate"
	"github.com/example/resy-sniper/internal/watches"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage availability watches (non-UI)",
	}
	cmd.AddCommand(newWatchAddCmd())
	cmd.AddCommand(newWatchListCmd())
	return cmd
}

func openRepo(ctx context.Context) (*db.DB, *watches.Repo, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}
	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := migrate.Up(ctx, d); err != nil {
		d.Close()
		return nil, nil, err
	}
	return d, watches.NewRepo(d), nil
}

func newWatchAddCmd() *cobra.Command {
	var (
		venueID      string
		venueName    string
		partySize    int
		dateStart    string
		dateEnd      string
		timeEarliest string
		timeLatest   string
		snipe        bool
	)

	c := &cobra.Command{
		Use:   "add",
		Short: "Add a watch for a venue over a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			d, repo, err := openRepo(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			w := watches.Watch{
				VenueID:      venueID,
				VenueName:    venueName,
				PartySize:    partySize,
				DateStart:    dateStart,
				DateEnd:      dateEnd,
				TimeEarliest: timeEarliest,
				TimeLatest:   timeLatest,
				SnipeMode:    snipe,
			}
			if err := w.Validate(); err != nil {
				return err
			}

			id, err := repo.Create(ctx, w)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "created watch %d\n", id)
			return nil
		},
	}

	c.Flags().StringVar(&venueID, "venue-id", "", "Resy venue id")
	c.Flags().StringVar(&venueName, "venue-name", "", "display name")
	c.Flags().IntVar(&partySize, "party-size", 2, "party size")
	c.Flags().StringVar(&dateStart, "date-start", "", "first date to watch (YYYY-MM-DD)")
	c.Flags().StringVar(&dateEnd, "date-end", "", "last date to watch (defaults to --date-start)")
	c.Flags().StringVar(&timeEarliest, "time-earliest", "17:00", "earliest acceptable time (HH:MM)")
	c.Flags().StringVar(&timeLatest, "time-latest", "22:00", "latest acceptable time (HH:MM)")
	c.Flags().BoolVar(&snipe, "snipe", false, "auto-book found slots")
	_ = c.MarkFlagRequired("venue-id")
	_ = c.MarkFlagRequired("date-start")
	return c
}

func newWatchListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List watches",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			d, repo, err := openRepo(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			ws, err := repo.List(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tVENUE\tPARTY\tDATES\tWINDOW\tSNIPE\tACTIVE\tLAST CHECKED")
			for _, w := range ws {
				last := "-"
				if w.LastChecked != nil {
					last = w.LastChecked.Format("2006-01-02 15:04:05")
				}
				name := w.VenueName
				if name == "" {
					name = w.VenueID
				}
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s..%s\t%s-%s\t%t\t%t\t%s\n",
					w.ID, name, w.PartySize, w.DateStart, w.EndDate(),
					w.TimeEarliest, w.TimeLatest, w.SnipeMode, w.Active, last)
			}
			return tw.Flush()
		},
	}
}
