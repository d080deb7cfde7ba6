package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/foodshare/internal/model"
)

var listingsCmd = &cobra.Command{
	Use:   "listings",
	Short: "Inspect donation listings",
	Long:  "Commands for listing, viewing, and summarizing food donations.",
}

// -- listings list --

var listingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List donations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		aiStatus, _ := cmd.Flags().GetString("ai-status")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := model.ListingFilter{
			Status:   model.ListingStatus(status),
			AIStatus: model.Status(aiStatus),
			Limit:    limit,
		}

		listings, err := st.ListListings(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "listings list")
		}

		if len(listings) == 0 {
			fmt.Fprintln(os.Stderr, "No listings found.")
			return nil
		}

		formatListings(os.Stdout, listings, time.Now())
		return nil
	},
}

// -- listings show --

var listingsShowCmd = &cobra.Command{
	Use:   "show <listing-id>",
	Short: "Show full details of a listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		l, err := st.GetListing(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "listings show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(l)
	},
}

// -- listings stats --

var listingsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show marketplace statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		stats, err := st.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "listings stats")
		}

		formatStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	listingsListCmd.Flags().String("status", "", "filter by listing status (available, claimed, delivered, expired)")
	listingsListCmd.Flags().String("ai-status", "", "filter by classification (safe_to_donate, consume_soon, reject)")
	listingsListCmd.Flags().Int("limit", 50, "max number of listings to display")

	listingsCmd.AddCommand(listingsListCmd)
	listingsCmd.AddCommand(listingsShowCmd)
	listingsCmd.AddCommand(listingsStatsCmd)
	rootCmd.AddCommand(listingsCmd)
}

// formatListings writes a tabular list of listings to w.
func formatListings(out io.Writer, listings []model.Listing, today time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tFOOD\tDONOR\tSTATUS\tAI\tCONF\tEXPIRES\tDAYS")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t------\t--\t----\t-------\t----")

	for _, l := range listings {
		food := l.FoodName
		if len(food) > 30 {
			food = food[:27] + "..."
		}

		days := "?"
		if d, ok := l.DaysUntilExpiry(today); ok {
			days = fmt.Sprintf("%d", d)
		}

		ai := string(l.AI.Status)
		if ai == "" {
			ai = "-"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f\t%s\t%s\n",
			truncateID(l.ID),
			food,
			l.DonorName,
			l.Status,
			ai,
			l.AI.Confidence,
			l.ExpiryDate,
			days,
		)
	}
	_ = w.Flush()
}

// formatStats writes marketplace counters to w.
func formatStats(out io.Writer, s *model.Stats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total donations:\t%d\n", s.TotalDonations)
	_, _ = fmt.Fprintf(w, "  Available:\t%d\n", s.Available)
	_, _ = fmt.Fprintf(w, "  Claimed:\t%d\n", s.Claimed)
	_, _ = fmt.Fprintf(w, "  Delivered:\t%d\n", s.Delivered)
	_, _ = fmt.Fprintf(w, "  Expired:\t%d\n", s.Expired)
	_, _ = fmt.Fprintf(w, "With images:\t%d\n", s.DonationsWithImages)
	_, _ = fmt.Fprintf(w, "AI safe:\t%d\n", s.AISafe)
	_, _ = fmt.Fprintf(w, "AI consume soon:\t%d\n", s.AIConsumeSoon)
	_, _ = fmt.Fprintf(w, "AI reject:\t%d\n", s.AIReject)
	_, _ = fmt.Fprintf(w, "Organizations:\t%d\n", s.Organizations)
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
