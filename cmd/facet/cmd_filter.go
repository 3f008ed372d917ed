package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"facet/pkg/engine"
	"facet/pkg/ingest"
	"facet/pkg/names"
	"facet/pkg/output"
)

var filterCmd = &cobra.Command{
	Use:   "filter [flags] <versions-file|-|url> [output-file]",
	Short: "Filter a versions feed by gem name",
	Long: `Filter a versions feed by gem name.

The input is a local file, "-" for standard input or an http(s) URL. Without
an output file the result goes to standard output; otherwise the file is
replaced atomically once the whole feed has been filtered.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runFilter,
}

func init() {
	filterCmd.Flags().StringP("allowlist", "a", "", "keep only gems named in this file")
	filterCmd.Flags().StringP("blocklist", "b", "", "drop gems named in this file")
	filterCmd.Flags().Bool("strip-versions", false, "replace each version list with 0")
	filterCmd.Flags().String("digest", "", "digest algorithm: none, sha256, sha512, sha3-256, sha3-512, blake2b-256, blake2b-512 (default sha256)")
	filterCmd.Flags().String("checksum-file", "", "write the output digest to this file")
	filterCmd.Flags().Bool("reconcile", false, "merge repeated entries: first position, last payload")

	viper.BindPFlag("filter.allowlist_path", filterCmd.Flags().Lookup("allowlist"))
	viper.BindPFlag("filter.blocklist_path", filterCmd.Flags().Lookup("blocklist"))
	viper.BindPFlag("filter.strip", filterCmd.Flags().Lookup("strip-versions"))
	viper.BindPFlag("filter.digest", filterCmd.Flags().Lookup("digest"))
	viper.BindPFlag("filter.reconcile", filterCmd.Flags().Lookup("reconcile"))

	rootCmd.AddCommand(filterCmd)
}

func runFilter(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	checksumFile, _ := cmd.Flags().GetString("checksum-file")

	alg, err := engine.ParseDigestAlgorithm(cfg.Filter.Digest)
	if err != nil {
		return err
	}
	if checksumFile != "" && alg == engine.NoDigest {
		return ErrChecksumWithoutDigest
	}

	allow, block, err := loadLists(cfg.Filter)
	if err != nil {
		return err
	}
	opts := engine.Options{
		Policy:    names.Resolve(allow, block),
		Rewrite:   cfg.Filter.Rewrite(),
		Digest:    alg,
		Reconcile: cfg.Filter.Reconcile,
	}

	in, err := ingest.Open(ctx, args[0], newFetcher(cfg.Feed))
	if err != nil {
		return err
	}
	defer in.Close()

	var res engine.Result
	name := "-"
	if len(args) == 2 {
		name = args[1]
		out, err := output.CreateAtomic(name)
		if err != nil {
			return err
		}
		defer out.Abort()

		if res, err = engine.Run(in, out, opts); err != nil {
			return err
		}
		if err := out.Commit(); err != nil {
			return err
		}
	} else {
		res, err = engine.Run(in, output.Stdout(), opts)
		if output.IsBrokenPipe(err) {
			log.Debug("Filter: output closed early")
			return nil
		}
		if err != nil {
			return err
		}
	}

	log.WithFields(log.Fields{
		"policy":  opts.Policy.String(),
		"records": res.Records,
		"kept":    res.Kept,
		"dropped": res.Dropped,
		"skipped": res.Skipped,
		"size":    humanize.Bytes(uint64(res.BytesWritten)),
	}).Info("Filter: done")

	if res.Digest == "" {
		return nil
	}
	line := fmt.Sprintf("%s  %s\n", res.Digest, filepath.Base(name))
	if checksumFile == "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s", res.Algorithm, line)
		return nil
	}
	if err := output.WriteFile(checksumFile, []byte(line)); err != nil {
		return errors.Wrapf(ErrWriteChecksum, "%s: %v", checksumFile, err)
	}
	return nil
}
