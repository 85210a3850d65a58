package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/spigell/insight/internal/recommend"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Compute job recommendations for a user and print them",
	Run: func(cmd *cobra.Command, _ []string) {
		recommendOnce(cmd)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().StringP("user", "u", "", "id of the user to compute recommendations for")
	recommendCmd.MarkFlagRequired("user")
}

func recommendOnce(cmd *cobra.Command) {
	logger, err := buildLogger()
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	rawID, _ := cmd.Flags().GetString("user")
	userID, err := uuid.Parse(rawID)
	if err != nil {
		logger.Fatal("parsing user id", zap.String("user", rawID), zap.Error(err))
	}

	var service *recommend.Service
	app := fx.New(
		coreModule(config, logger),
		fx.Populate(&service),
	)

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		logger.Fatal("starting the application", zap.Error(err))
	}
	defer func() {
		if err := app.Stop(ctx); err != nil {
			logger.Error("stopping the application", zap.Error(err))
		}
	}()

	result, err := service.GetRecommendations(ctx, userID)
	if err != nil {
		logger.Error("computing recommendations", zap.Error(err))
		return
	}

	// do not bother error since the result is plain data
	pretty, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(pretty))
}
