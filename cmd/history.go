package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/yz4230/shipit-poc/internal/config"
	"github.com/yz4230/shipit-poc/internal/history"
	"github.com/yz4230/shipit-poc/internal/server"
	"github.com/yz4230/shipit-poc/internal/utils"
)

var historyFlags struct {
	limit int
	port  int
}

var historyCmd = &cobra.Command{
	Use:           "history",
	Short:         "List recent deployment runs",
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		cfg, err := config.Load(rootFlags.config)
		if err != nil {
			return err
		}
		db, err := history.NewSQLiteDB(cfg.HistoryDB)
		if err != nil {
			return err
		}
		repo := history.NewDeploymentRepository(db)

		runs, err := repo.ListRecent(context.Background(), historyFlags.limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no deployments recorded yet")
			return nil
		}

		for _, run := range runs {
			healthy := "starting"
			if run.Healthy {
				healthy = "healthy"
			}
			line := fmt.Sprintf("%s  %-5s  %-7s  %s", run.CreatedAt.Format(time.DateTime), run.Mode, run.Status, healthy)
			if run.CommitSHA != "" {
				line += "  " + utils.ShortSHA(run.CommitSHA)
			}
			if run.FailedStage != "" {
				line += "  (failed at " + run.FailedStage + ")"
			}
			fmt.Println(line)
		}
		return nil
	},
}

var historyServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the deployment history over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		cfg, err := config.Load(rootFlags.config)
		if err != nil {
			return err
		}

		srvCfg := &server.Config{HistoryDB: cfg.HistoryDB, Port: historyFlags.port, Logger: log.Logger}
		srv := server.New(srvCfg)
		chSignal := make(chan os.Signal, 1)
		signal.Notify(chSignal, os.Interrupt, syscall.SIGTERM)

		wg := &sync.WaitGroup{}
		wg.Go(func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				srvCfg.Logger.Fatal().Err(err).Msg("server error")
			}
		})

		sig := <-chSignal
		srvCfg.Logger.Info().Str("signal", sig.String()).Msg("shutting down server...")
		if err := srv.Stop(context.Background()); err != nil {
			srvCfg.Logger.Error().Err(err).Msg("error during server shutdown")
		}

		wg.Wait()
		srvCfg.Logger.Info().Msg("server stopped")
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyFlags.limit, "limit", "n", 20, "Number of runs to show")
	historyServeCmd.Flags().IntVarP(&historyFlags.port, "port", "p", 8080, "Port to listen on")
	historyCmd.AddCommand(historyServeCmd)
}
