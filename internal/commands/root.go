package commands

import (
	"context"
	"fmt"
	"gymbook/internal/auth"
	"gymbook/internal/config"
	"gymbook/internal/logging"
	"gymbook/internal/repository"
	"gymbook/internal/repository/mongo"
	"gymbook/internal/service"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	driver "go.mongodb.org/mongo-driver/mongo"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "gymctl",
	Short: "Administration tool for the gymbook booking service",
	Long: `gymctl talks directly to the booking database. Use it to provision accounts,
mint bearer tokens, create indexes and drain the reconciliation queue.`,
	SilenceUsage: true,
}

// env is what a command gets once config and the database are up.
type env struct {
	cfg    config.Config
	logger *slog.Logger
	db     *driver.Database

	visitors        repository.VisitorRepository
	trainers        repository.TrainerRepository
	managers        repository.ManagerRepository
	sessions        repository.SessionRepository
	reviews         repository.ReviewRepository
	reconciliations repository.ReconciliationRepository
}

func (e *env) accounts() (service.AccountService, error) {
	tokens, err := auth.NewTokenManager(e.cfg.JWT.Secret, e.cfg.JWT.Expiration)
	if err != nil {
		return nil, err
	}
	return service.NewAccountService(e.visitors, e.trainers, e.managers, tokens), nil
}

// withEnv loads config, connects to MongoDB and hands fn a ready env.
func withEnv(fn func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configDir)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger := logging.New(os.Stderr, "gymctl", cfg.Log.Level)

		client, err := mongo.ConnectDB(cfg.Database.URI, cfg.Database.Timeout)
		if err != nil {
			return fmt.Errorf("connect to MongoDB: %w", err)
		}
		defer func() {
			if err := mongo.DisconnectDB(client); err != nil {
				logger.Error("Failed to disconnect MongoDB", "error", err)
			}
		}()

		db := client.Database(cfg.Database.Name)
		e := &env{
			cfg:             cfg,
			logger:          logger,
			db:              db,
			visitors:        mongo.NewMongoVisitorRepository(db),
			trainers:        mongo.NewMongoTrainerRepository(db),
			managers:        mongo.NewMongoManagerRepository(db),
			sessions:        mongo.NewMongoSessionRepository(db, cfg.Booking.ConditionalRetries),
			reviews:         mongo.NewMongoReviewRepository(db),
			reconciliations: mongo.NewMongoReconciliationRepository(db),
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Database.Timeout)
		defer cancel()
		return fn(ctx, cmd, e, args)
	}
}

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "gymctl %s (commit %s, built %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", ".", "directory holding config.yaml and .env")

	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(indexesCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(versionCmd)
}
