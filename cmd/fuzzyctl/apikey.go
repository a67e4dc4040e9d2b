package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/postgres"
)

// newAPIKeyCmd manages keys directly in Postgres, which is how the first
// admin key is issued before any key exists to call the HTTP API with.
func newAPIKeyCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Create, list and revoke admin API keys",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "fuzzyd config file (postgres section is used)")

	withStore := func(cmd *cobra.Command, fn func(ctx context.Context, s *apikey.Store) error) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()
		s := apikey.NewStore(db)
		if err := s.Migrate(ctx); err != nil {
			return err
		}
		return fn(ctx, s)
	}

	var (
		name      string
		expiresIn time.Duration
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Issue a new key and print it once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			return withStore(cmd, func(ctx context.Context, s *apikey.Store) error {
				var expiresAt *time.Time
				if expiresIn > 0 {
					t := time.Now().Add(expiresIn).UTC()
					expiresAt = &t
				}
				raw, info, err := s.CreateKey(ctx, name, expiresAt)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "id:  %s\nkey: %s\n", info.ID, raw)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "label for the key")
	create.Flags().DurationVar(&expiresIn, "expires-in", 0, "lifetime, e.g. 720h; 0 never expires")

	list := &cobra.Command{
		Use:   "list",
		Short: "List active keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *apikey.Store) error {
				keys, err := s.ListKeys(ctx)
				if err != nil {
					return err
				}
				printKeys(cmd, keys)
				return nil
			})
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Deactivate a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *apikey.Store) error {
				return s.RevokeKey(ctx, args[0])
			})
		},
	}

	cmd.AddCommand(create, list, revoke)
	return cmd
}

func printKeys(cmd *cobra.Command, keys []apikey.KeyInfo) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED\tEXPIRES")
	for _, k := range keys {
		expires := "never"
		if k.ExpiresAt != nil {
			expires = k.ExpiresAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", k.ID, k.Name, k.CreatedAt.Format(time.RFC3339), expires)
	}
	tw.Flush()
}
