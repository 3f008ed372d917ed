package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Rebuild and publish the filtered feed once",
	Long:  "Rebuild the filtered feed into the cache path and publish it to the configured storage, for use from cron.",
	Args:  cobra.NoArgs,
	RunE:  runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.watcher != nil {
		if err := a.watcher.Reload(ctx); err != nil {
			log.WithError(err).Warn("Publish: redis lists unavailable, using configured files")
		}
	}

	report, err := a.refresher.Run(ctx)
	if err != nil {
		return err
	}

	res := report.Result
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:       %s\n", report.ID)
	fmt.Fprintf(out, "policy:   %s\n", report.Policy)
	fmt.Fprintf(out, "records:  %d kept, %d dropped, %d skipped\n", res.Kept, res.Dropped, res.Skipped)
	fmt.Fprintf(out, "size:     %s\n", humanize.Bytes(uint64(res.BytesWritten)))
	if res.Digest != "" {
		fmt.Fprintf(out, "digest:   %s=%s\n", res.Algorithm, res.Digest)
	}
	fmt.Fprintf(out, "duration: %s\n", report.Duration)
	return nil
}
