package cmd

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/auth"
	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/config"
)

var (
	tokenSubject string
	tokenScope   string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a signed bearer token from the configured signing secret",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cfg.OAuth.SigningSecret == "" {
			return errors.New("no token signing secret configured")
		}

		signer := auth.NewSigner([]byte(cfg.OAuth.SigningSecret), cfg.OAuth.Issuer)
		token, err := signer.Issue(tokenSubject, tokenScope, tokenTTL)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "cli", "token subject")
	tokenCmd.Flags().StringVar(&tokenScope, "scope", "chat", "token scope")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
