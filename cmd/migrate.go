package cmd

import (
	"context"
	"log"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/insight/internal/database"
	"github.com/spigell/insight/internal/secrets"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var migratePrompt = promptui.Select{
	Label: "Apply pending migrations?",
	Items: []string{PromptYes, PromptNo},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Run: func(cmd *cobra.Command, _ []string) {
		migrate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

func migrate(cmd *cobra.Command) {
	logger, err := buildLogger()
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	dsn, err := secrets.Load(secrets.Source{
		Name:  "database dsn",
		Value: config.Database.DSN,
		File:  config.Database.DSNFile,
		Env:   "DATABASE_URL",
	})
	if err != nil {
		logger.Fatal("loading database dsn", zap.Error(err),
			zap.String("hint", "set database.dsn-file or INSIGHT_DATABASE_DSN"),
		)
	}

	db, err := database.Open(dsn, 1)
	if err != nil {
		logger.Fatal("opening database", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()

	pending, err := database.Pending(ctx, db)
	if err != nil {
		logger.Fatal("reading migration state", zap.Error(err))
	}

	if len(pending) == 0 {
		logger.Info("exiting", zap.String("reason", "database is up to date"))
		return
	}

	versions := make([]string, 0, len(pending))
	for _, m := range pending {
		versions = append(versions, m.Version)
	}
	logger.Info("found pending migrations", zap.Strings("versions", versions))

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		_, answer, err := migratePrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if answer != PromptYes {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	if err := database.Apply(ctx, db, pending, logger); err != nil {
		logger.Fatal("applying migrations", zap.Error(err))
	}

	logger.Info("migrations applied", zap.Int("count", len(pending)))
}
