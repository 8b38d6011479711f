package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"sitekernel/pkg/catalog"
	"sitekernel/pkg/logging"
	"sitekernel/pkg/params"
	"sitekernel/pkg/site"
	"sitekernel/pkg/stats"
	"sitekernel/pkg/ui"
)

func serveCmd() *cobra.Command {
	var (
		catalogPath  string
		producerPath string
		consumerPath string
		paramList    string
		tickEvery    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run every partition of this site and export metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			metrics := stats.NewMetrics(prometheus.DefaultRegisterer, cfg.Metrics.Namespace)
			cluster := site.NewCluster(cfg.Engine, metrics)

			if catalogPath != "" {
				data, err := os.ReadFile(catalogPath)
				if err != nil {
					return fmt.Errorf("failed to read catalog %s: %w", catalogPath, err)
				}
				diff, err := catalog.ParseDiff(data)
				if err != nil {
					return err
				}
				if err := cluster.LoadCatalog(ctx, diff); err != nil {
					return err
				}
			}

			if producerPath != "" && consumerPath != "" {
				if err := runPair(ctx, cluster, producerPath, consumerPath, paramList); err != nil {
					return err
				}
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{
				Addr:              cfg.Metrics.Listen,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
			ticking := make(chan struct{})
			go func() {
				defer close(ticking)
				tick(ctx, cluster, tickEvery)
			}()

			log := logging.WithComponent("Serve")
			log.Info("listening", "addr", cfg.Metrics.Listen, "partitions", cluster.Partitions())
			err := srv.ListenAndServe()
			stop()
			<-ticking
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			log.Info("server stopped")
			return cluster.Quiesce(0)
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "catalog diff (JSON) loaded on every partition")
	cmd.Flags().StringVar(&producerPath, "producer", "", "fragment run on every partition at startup")
	cmd.Flags().StringVar(&consumerPath, "consumer", "", "fragment that aggregates the producer outputs on the coordinator")
	cmd.Flags().StringVar(&paramList, "params", "", "parameters for the producer fragment")
	cmd.Flags().DurationVar(&tickEvery, "tick", time.Second, "interval between engine ticks")
	return cmd
}

// runPair loads a producer/consumer fragment pair and runs it once as a
// multi-partition read.
func runPair(ctx context.Context, cluster *site.Cluster, producerPath, consumerPath, paramList string) error {
	args, err := ui.ParseParams(paramList)
	if err != nil {
		return err
	}
	var ids [2]int64
	for i, path := range []string{producerPath, consumerPath} {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read plan %s: %w", path, err)
		}
		if ids[i], err = cluster.LoadFragment(ctx, raw); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	out, err := cluster.RunMultiPartition(ctx, 1, 1,
		site.Step{FragmentID: ids[0], Params: params.Append(nil, args...)},
		site.Step{FragmentID: ids[1], Params: params.Append(nil)})
	if err != nil {
		return err
	}
	log := logging.WithComponent("Serve")
	for _, row := range out.Rows() {
		log.Info("multi-partition result", "row", formatRow(row))
	}
	return nil
}

func tick(ctx context.Context, cluster *site.Cluster, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if err := cluster.Tick(now, 0); err != nil {
				logging.WithComponent("Serve").Warn("tick failed", "error", err)
			}
		}
	}
}
