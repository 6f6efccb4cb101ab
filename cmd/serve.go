package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
	"vmigrate/internal/daemon"
	"vmigrate/internal/executor"
	"vmigrate/internal/inventory"
	"vmigrate/internal/logger"
	"vmigrate/internal/migration"
	"vmigrate/internal/model"
	"vmigrate/internal/platform"
	"vmigrate/internal/repository"
	"vmigrate/internal/scheduler"
	"vmigrate/internal/stream"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the migration daemon",
	RunE:  runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	defer logger.Sync()

	jobRepo := repository.NewJobRepository()
	logRepo := repository.NewLogRepository()
	provRepo := repository.NewProviderRepository()

	cache := inventory.NewCache(platform.NewClient, cfg.SyncTimeout)
	hub := stream.NewHub(cfg.StreamBuffer)
	strategies := migration.DefaultRegistry(platform.NewClient)

	exec := executor.New(jobRepo, logRepo, provRepo, cache, hub, strategies)
	sched := scheduler.New(jobRepo, provRepo, cache, exec)

	if err := recoverJobs(jobRepo, logRepo, exec); err != nil {
		return err
	}

	srv := daemon.NewServer(sched, cache, hub, func() any {
		return exec.Running()
	}, cfg.Port)
	srv.Start()

	logger.Log.Info("vmigrate daemon started",
		zap.Int("port", cfg.Port),
		zap.String("db", cfg.DBPath))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Log.Info("shutting down",
			zap.String("signal", sig.String()))
	case <-srv.StopCh():
		logger.Log.Info("stop requested via API")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(ctx)
}

// recoverJobs handles rows left over from a previous run: queued jobs are
// re-dispatched, jobs that were mid-flight when the process died lost their
// executor and are marked failed.
func recoverJobs(jobRepo *repository.JobRepository, logRepo *repository.LogRepository, exec *executor.Executor) error {
	jobs, err := jobRepo.GetAll()
	if err != nil {
		return err
	}

	for _, job := range jobs {
		switch job.Status {
		case model.JobQueued:
			logger.Log.Info("re-dispatching queued job",
				zap.Uint("job", job.ID),
				zap.String("vm", job.VMName))
			exec.Dispatch(job)

		case model.JobRunning:
			logger.Log.Warn("marking orphaned job failed",
				zap.Uint("job", job.ID),
				zap.String("vm", job.VMName))
			if _, err := logRepo.Append(job.ID, "Failed: daemon restarted while the job was running."); err != nil {
				logger.Log.Warn("failed to append job log",
					zap.Uint("job", job.ID),
					zap.Error(err))
			}
			if err := jobRepo.UpdateStatus(job.ID, model.JobFailed); err != nil {
				logger.Log.Warn("failed to mark orphaned job failed",
					zap.Uint("job", job.ID),
					zap.Error(err))
			}
		}
	}

	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
