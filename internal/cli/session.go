package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"rentalportal/internal/domain/entity"
	"rentalportal/internal/infrastructure/marketapi"
)

func init() {
	sessionCmd.AddCommand(loginCmd, logoutCmd, statusCmd)
	rootCmd.AddCommand(sessionCmd)

	loginCmd.Flags().String("role", "", "customer, merchant or admin (default: the portal's role)")
	loginCmd.Flags().String("account", "", "phone number, or username for admins")
	loginCmd.Flags().String("password", "", "account password")
	loginCmd.Flags().String("token", "", "adopt an existing token instead of signing in")
	loginCmd.Flags().String("profile", "", "profile JSON to store with --token")
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Sign in, sign out and show the active identity",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and persist the identity, evicting every other role",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		roleFlag, _ := cmd.Flags().GetString("role")
		role := entity.RoleFromPath(a.portal.Session.Path())
		if roleFlag != "" {
			if role, err = entity.ParseRole(roleFlag); err != nil {
				return err
			}
		}

		token, _ := cmd.Flags().GetString("token")
		var identity *entity.Identity
		if token != "" {
			profile, _ := cmd.Flags().GetString("profile")
			identity, err = a.portal.Session.Login(ctx, token, json.RawMessage(profile), role)
		} else {
			account, _ := cmd.Flags().GetString("account")
			password, _ := cmd.Flags().GetString("password")
			if account == "" || password == "" {
				return fmt.Errorf("--account and --password are required without --token")
			}
			identity, err = a.portal.Auth.Login(ctx, role, marketapi.Credentials{Account: account, Password: password})
		}
		if err != nil {
			return err
		}

		fmt.Printf("Signed in as %s (%s #%d)\n", identity.DisplayName(), identity.Role, identity.ID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the active role's identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		current := a.portal.Session.Current()
		if !current.IsAuthenticated {
			fmt.Println("Not signed in")
			return nil
		}
		if err := a.portal.Session.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Signed out of the %s portal\n", current.Role)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the identity this portal resolves to",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		current := a.portal.Session.Current()
		fmt.Printf("Portal:  %s (%s)\n", a.portal.Name, a.portal.Session.Path())
		if !current.IsAuthenticated {
			fmt.Println("Session: not signed in")
			return nil
		}
		fmt.Printf("Session: %s\n", current.Role)
		fmt.Printf("Name:    %s\n", current.Identity.DisplayName())
		fmt.Printf("ID:      %d\n", current.Identity.ID)
		return nil
	},
}
