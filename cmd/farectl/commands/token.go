package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chauffeurline/fareengine/internal/auth"
)

func tokenCmd() *cobra.Command {
	var (
		subject string
		scopes  []string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an ops bearer token signed with OPS_JWT_SIGNING_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			key := os.Getenv("OPS_JWT_SIGNING_KEY")
			if key == "" {
				return errors.New("OPS_JWT_SIGNING_KEY is not set")
			}
			svc, err := auth.NewTokenService(auth.TokenConfig{SigningKey: key, TTL: ttl})
			if err != nil {
				return err
			}
			token, expires, err := svc.Issue(subject, scopes...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "operator identity")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{auth.ScopePricingAdmin}, "granted scopes")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
