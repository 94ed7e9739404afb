package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"coursepage/site/internal/auth"
	"coursepage/site/internal/config"
	"coursepage/site/internal/identity"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "tokengen",
		Short:        "Mint and inspect course page identity tokens",
		SilenceUsage: true,
	}

	var secret string
	root.PersistentFlags().StringVar(&secret, "secret", "", "signing secret (defaults to IDENTITY_SECRET)")

	resolveSecret := func() string {
		if secret != "" {
			return secret
		}
		return config.Load().IdentitySecret
	}

	root.AddCommand(newMintCmd(resolveSecret), newInspectCmd(resolveSecret))
	return root
}

func newMintCmd(secret func() string) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "mint <uid>",
		Short: "Mint a custom token for uid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := identity.NewService(secret(), nil, ttl, zerolog.Nop())
			token, err := svc.MintCustomToken(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func newInspectCmd(secret func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <token>",
		Short: "Verify a token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claims, err := auth.ParseToken([]byte(secret()), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "uid:     %s\n", claims.Sub)
			fmt.Fprintf(out, "kind:    %s\n", claims.Kind)
			fmt.Fprintf(out, "expires: %s\n", time.Unix(claims.Exp, 0).UTC().Format(time.RFC3339))
			return nil
		},
	}
}
