package commands

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/chauffeurline/fareengine/internal/database"
	"github.com/chauffeurline/fareengine/internal/pricing"
)

func pricingCmd(logger func() zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricing",
		Short: "Inspect and seed the stored pricing table",
	}
	cmd.AddCommand(pricingShowCmd(), pricingSeedCmd(logger))
	return cmd
}

func pricingShowCmd() *cobra.Command {
	var defaults bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored pricing table as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := pricing.DefaultConfig()
			if !defaults {
				repo, closeFn, err := openRepository(cmd.Context())
				if err != nil {
					return err
				}
				defer closeFn()
				if cfg, err = repo.Load(cmd.Context()); err != nil {
					return err
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}
	cmd.Flags().BoolVar(&defaults, "defaults", false, "print the embedded default table instead")
	return cmd
}

func pricingSeedCmd(logger func() zerolog.Logger) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the pricing schema and store the default table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logger()

			repo, closeFn, err := openRepository(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := repo.EnsureSchema(ctx); err != nil {
				return err
			}

			if !force {
				_, err := repo.Load(ctx)
				switch {
				case err == nil:
					log.Info().Msg("pricing table already present, use --force to overwrite")
					cmd.Println("pricing table already present")
					return nil
				case !errors.Is(err, pricing.ErrConfigNotFound):
					return err
				}
			}

			if err := repo.Save(ctx, pricing.DefaultConfig()); err != nil {
				return err
			}
			cmd.Println("default pricing table stored")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing table")
	return cmd
}

func openRepository(ctx context.Context) (*pricing.PostgresRepository, func(), error) {
	cfg := database.ConfigFromEnv()
	if !cfg.Enabled() {
		return nil, nil, errors.New("no database configured: set DATABASE_URL or DB_HOST")
	}

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return pricing.NewPostgresRepository(pool), pool.Close, nil
}
