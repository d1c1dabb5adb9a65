package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"timed-quiz-service/internal/config"
	"timed-quiz-service/internal/domain"
)

// NewLeaderboardCmd prints the ranked scores from the configured store.
func NewLeaderboardCmd(configPath *string) *cobra.Command {
	var (
		filter string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the top scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := domain.ParseLeaderboardFilter(filter)
			if err != nil {
				return err
			}
			cfg, err := config.LoadOrDefault(*configPath)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			service, cleanup, err := buildService(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer cleanup()

			if limit <= 0 {
				limit = cfg.Leaderboard.Limit
			}
			view, err := service.Leaderboard(cmd.Context(), parsed, limit)
			if err != nil {
				return err
			}
			return printLeaderboard(cmd.OutOrStdout(), view)
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "all", "time window: all, today or week")
	cmd.Flags().IntVar(&limit, "limit", 0, "number of entries (defaults to config)")
	return cmd
}

func printLeaderboard(w io.Writer, view domain.LeaderboardView) error {
	if view.TotalRecords == 0 {
		_, err := fmt.Fprintln(w, "No scores yet. Be the first to play!")
		return err
	}
	if len(view.Entries) == 0 {
		_, err := fmt.Fprintln(w, "No scores found for this filter.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPLAYER\tSCORE\tACCURACY\tDATE")
	for _, entry := range view.Entries {
		r := entry.Record
		date := time.UnixMilli(r.CreatedAtEpochMs).UTC().Format("Jan 2, 2006")
		if r.CreatedAtEpochMs == 0 {
			date = r.DateISO
		}
		fmt.Fprintf(tw, "%d\t%s\t%d/%d\t%.1f%%\t%s\n", entry.Rank, r.Player, r.Score, r.TotalQuestions, r.AccuracyPercent, date)
	}
	return tw.Flush()
}
