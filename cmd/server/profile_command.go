package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/platform/postgres"
	"github.com/spf13/cobra"
)

func newProfileCmd(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect and provision usage profiles",
	}
	cmd.AddCommand(newProfileCreateCmd(ctx), newProfileShowCmd(ctx))
	return cmd
}

func newProfileCreateCmd(ctx *commandContext) *cobra.Command {
	var (
		userFlag   string
		tokens     int
		subscribed bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a usage profile with an opening token balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserFlag(userFlag)
			if err != nil {
				return err
			}
			if tokens < 0 {
				return fmt.Errorf("--tokens cannot be negative")
			}

			cfg, log, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			db, err := openDatabase(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			status := domain.SubscriptionInactive
			if subscribed {
				status = domain.SubscriptionActive
			}
			profile := &domain.Profile{UserID: userID, TokenCount: tokens, SubscriptionStatus: status}
			if err := postgres.NewPostgresProfileStore(db, log).CreateProfile(cmd.Context(), profile); err != nil {
				return fmt.Errorf("failed to create profile: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created profile for %s with %d tokens (%s)\n", userID, tokens, status)
			return nil
		},
	}

	cmd.Flags().StringVar(&userFlag, "user", "", "User ID (UUID) from the identity provider")
	cmd.Flags().IntVar(&tokens, "tokens", 100, "Opening token balance")
	cmd.Flags().BoolVar(&subscribed, "subscribed", false, "Mark the profile as an active subscriber")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newProfileShowCmd(ctx *commandContext) *cobra.Command {
	var userFlag string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a user's token balance and subscription status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserFlag(userFlag)
			if err != nil {
				return err
			}

			cfg, log, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			db, err := openDatabase(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			profile, err := postgres.NewPostgresProfileStore(db, log).GetProfile(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user=%s tokens=%d subscription=%s\n",
				profile.UserID, profile.TokenCount, profile.SubscriptionStatus)
			return nil
		},
	}

	cmd.Flags().StringVar(&userFlag, "user", "", "User ID (UUID)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func parseUserFlag(v string) (uuid.UUID, error) {
	id, err := uuid.Parse(v)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("invalid --user %q: must be a non-nil UUID", v)
	}
	return id, nil
}
