package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	pkgauth "github.com/angelmondragon/storefront-fulfillment/pkg/auth"
)

// tokenCmd mints a bearer token for calling the admin api from scripts.
func (c *cli) tokenCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin api token signed with the configured secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := c.performedBy()
			if err != nil {
				return err
			}
			if userID == nil {
				return fmt.Errorf("--actor is required")
			}
			token, err := pkgauth.MintAccessToken(c.rt.cfg.JWT, time.Now().UTC(), pkgauth.AccessTokenPayload{
				UserID: *userID,
				Role:   pkgauth.Role(role),
				JTI:    uuid.NewString(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(pkgauth.RoleOperator), "admin or operator")
	return cmd
}
