package cmd

import (
	"errors"
	"time"

	"cafe-pos/internal/display"
	"cafe-pos/internal/httpapi"

	"github.com/spf13/cobra"
)

type tokenResult struct {
	Token     string    `json:"token" yaml:"token"`
	ExpiresAt time.Time `json:"expiresAt" yaml:"expiresAt"`
}

func newTokenCommand(o *rootOptions) *cobra.Command {
	var (
		userID int64
		role   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the admin API",
		Long: `Token signs an HS256 token with auth.jwt_secret. Use it to call the admin
backup endpoints from scripts, e.g.

  curl -H "Authorization: Bearer $(cafe-pos token)" http://localhost:8080/api/backup`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.load()
			if err != nil {
				return err
			}
			if c.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not configured")
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}

			signed, expires, err := httpapi.IssueToken(c.Auth.JWTSecret, c.Auth.Issuer, userID, role, ttl)
			if err != nil {
				return err
			}

			printer, err := o.printer()
			if err != nil {
				return err
			}
			if printer.Format() == display.FormatTable {
				_, err = o.out.Write([]byte(signed + "\n"))
				return err
			}
			return printer.Emit(tokenResult{Token: signed, ExpiresAt: expires.UTC()}, nil)
		},
	}

	cmd.Flags().Int64Var(&userID, "user-id", 1, "user id placed in the token")
	cmd.Flags().StringVar(&role, "role", httpapi.RoleAdmin, "role placed in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
