package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/foodshare/internal/fetcher"
	"github.com/sells-group/foodshare/internal/model"
	"github.com/sells-group/foodshare/internal/waterfall"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify one food item and print the verdict",
	Long:  "Runs the classification cascade for a single item without touching the database. The verdict is printed as JSON.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("classify"); err != nil {
			return err
		}

		req, err := classifyRequestFromFlags(cmd, newImageFetcher())
		if err != nil {
			return err
		}

		exec, rc, err := initExecutor(ctx)
		if err != nil {
			return err
		}
		if rc != nil {
			defer rc.Close() //nolint:errcheck
		}

		return writeVerdict(os.Stdout, exec.Classify(ctx, req))
	},
}

// classifyRequestFromFlags builds the request. --image may be a local path or
// an http(s) URL.
func classifyRequestFromFlags(cmd *cobra.Command, remote fetcher.Fetcher) (waterfall.Request, error) {
	name, _ := cmd.Flags().GetString("name")
	expiry, _ := cmd.Flags().GetString("expiry")
	desc, _ := cmd.Flags().GetString("description")
	imagePath, _ := cmd.Flags().GetString("image")

	req := waterfall.Request{FoodName: name, ExpiryDate: expiry, Description: desc}
	switch {
	case imagePath == "":
	case strings.HasPrefix(imagePath, "http://"), strings.HasPrefix(imagePath, "https://"):
		data, err := remote.Fetch(cmd.Context(), imagePath)
		if err != nil {
			return req, err
		}
		req.Image = data
	default:
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return req, eris.Wrapf(err, "read image %s", imagePath)
		}
		req.Image = data
	}
	return req, nil
}

func writeVerdict(w io.Writer, v model.Verdict) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	classifyCmd.Flags().String("name", "", "food name")
	classifyCmd.Flags().String("expiry", "", "expiry date (YYYY-MM-DD)")
	classifyCmd.Flags().String("description", "", "optional description")
	classifyCmd.Flags().String("image", "", "optional path or URL of a photo of the item")
	_ = classifyCmd.MarkFlagRequired("name")
	_ = classifyCmd.MarkFlagRequired("expiry")
	rootCmd.AddCommand(classifyCmd)
}
