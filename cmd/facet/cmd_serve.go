package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"facet/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the filtered feed and rebuild it on webhooks",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :<server.port>)")
	serveCmd.Flags().String("cache-path", "", "where the filtered feed is kept")
	serveCmd.Flags().Bool("refresh-on-start", false, "rebuild the feed once before serving")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("server.cache_path", serveCmd.Flags().Lookup("cache-path"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	refreshOnStart, _ := cmd.Flags().GetBool("refresh-on-start")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(a.refresher, cfg.Server.CachePath)
	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(log.Fields{
			"addr":  httpSrv.Addr,
			"cache": cfg.Server.CachePath,
			"feed":  cfg.Feed.URL,
		}).Info("Serve: listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	if a.watcher != nil {
		g.Go(func() error {
			return a.watcher.Run(gctx)
		})
	}
	if refreshOnStart {
		g.Go(func() error {
			if _, err := a.refresher.Run(gctx); err != nil {
				log.WithError(err).Error("Serve: initial refresh failed")
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Serve: shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})

	err = g.Wait()
	log.Info("Serve: waiting for running refreshes")
	srv.Wait()
	return err
}
