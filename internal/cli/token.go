package cli

import (
	"fmt"

	"fatwa-rag-go/pkg/token"

	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenRole    string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a JWT for the admin API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is not configured")
		}
		tok, err := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours).GenerateToken(tokenSubject, tokenRole)
		if err != nil {
			return fmt.Errorf("failed to sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "fatwactl", "token subject")
	tokenCmd.Flags().StringVar(&tokenRole, "role", token.RoleAdmin, "token role")
	rootCmd.AddCommand(tokenCmd)
}
