package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var reclassifyCmd = &cobra.Command{
	Use:   "reclassify",
	Short: "Re-run the classifier over every available listing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if concurrency <= 0 {
			concurrency = cfg.Reclassify.Concurrency
		}

		res, err := env.Service.Reclassify(ctx, concurrency)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Reclassified %d of %d listings (%d failed)\n", res.Updated, res.Total, res.Failed)
		return nil
	},
}

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Mark available listings past their expiry date as expired",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Service.ExpireStale(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Expired %d listings\n", n)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		seed, _ := cmd.Flags().GetBool("seed")
		if !seed {
			fmt.Fprintln(os.Stdout, "Schema is up to date")
			return nil
		}
		seeded, err := env.Service.Seed(ctx)
		if err != nil {
			return err
		}
		if seeded {
			fmt.Fprintln(os.Stdout, "Schema is up to date, sample data loaded")
		} else {
			fmt.Fprintln(os.Stdout, "Schema is up to date, database already has data")
		}
		return nil
	},
}

func init() {
	reclassifyCmd.Flags().Int("concurrency", 0, "parallel classifications (default from config)")
	migrateCmd.Flags().Bool("seed", false, "load sample data into an empty database")

	rootCmd.AddCommand(reclassifyCmd)
	rootCmd.AddCommand(expireCmd)
	rootCmd.AddCommand(migrateCmd)
}
