package cli

import (
	"log"

	"github.com/spf13/cobra"

	"quiz-scoring-service/internal/app"
	"quiz-scoring-service/internal/config"
	pgstore "quiz-scoring-service/internal/infra/postgres"
)

// NewRecomputeCmd runs a one-off full rank recompute against postgres.
// Useful for backfills and for repairing ranks after manual data edits.
func NewRecomputeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute",
		Short: "Recompute all user rankings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
				return err
			}

			db := openBunDB(cfg.Postgres.URL)
			defer db.Close()

			rankings := app.NewRankingService(pgstore.NewStore(db))
			if err := rankings.RecomputeAll(cmd.Context()); err != nil {
				return err
			}
			log.Printf("rankings recomputed")
			return nil
		},
	}
}
