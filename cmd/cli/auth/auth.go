package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/crucial707/mydiary/cmd/cli/client"
	"github.com/crucial707/mydiary/cmd/cli/config"
	"github.com/crucial707/mydiary/cmd/cli/prompt"
)

// InitAuth registers login, logout and signup on the root command.
func InitAuth(rootCmd *cobra.Command) {
	rootCmd.AddCommand(loginCmd(), logoutCmd(), signupCmd())
}

// ==========================
// login
// ==========================

// loginCmd exchanges credentials for a bearer token and stores it locally.
func loginCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to MyDiary",
		Long:  "Authenticate with the MyDiary API and store a token for subsequent CLI commands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, errOut := cmd.InOrStdin(), cmd.ErrOrStderr()
			var err error
			if username == "" {
				if username, err = prompt.Line(in, errOut, "Username: "); err != nil {
					return err
				}
			}
			password, err := prompt.Password(in, errOut, "Password: ")
			if err != nil {
				return err
			}

			c, err := client.New()
			if err != nil {
				return err
			}
			c.Token = ""

			var resp struct {
				Token     string `json:"token"`
				ExpiresAt string `json:"expires_at"`
			}
			err = c.DoJSON(cmd.Context(), http.MethodPost, "/api/users/token",
				map[string]string{"username": username, "password": password}, &resp)
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
				return errors.New("invalid username or password")
			}
			if err != nil {
				return fmt.Errorf("failed to login: %w", err)
			}
			if resp.Token == "" {
				return errors.New("login succeeded but no token returned")
			}

			if err := config.SaveToken(resp.Token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Login successful. Token valid until %s.\n", resp.ExpiresAt)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "username to log in as (prompted when empty)")
	return cmd
}

// ==========================
// logout
// ==========================
func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the locally saved token",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := config.RemoveToken()
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintln(cmd.OutOrStdout(), "No user logged in.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out successfully.")
			return nil
		},
	}
}

// ==========================
// signup
// ==========================
func signupCmd() *cobra.Command {
	var username, email, name, birthDate, gender, phone string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a MyDiary account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || email == "" {
				return errors.New("--username and --email are required")
			}
			in, errOut := cmd.InOrStdin(), cmd.ErrOrStderr()
			password, err := prompt.Password(in, errOut, "Password: ")
			if err != nil {
				return err
			}
			confirm, err := prompt.Password(in, errOut, "Confirm password: ")
			if err != nil {
				return err
			}
			if password != confirm {
				return errors.New("passwords do not match")
			}

			c, err := client.New()
			if err != nil {
				return err
			}
			var resp client.Envelope
			if err := c.DoJSON(cmd.Context(), http.MethodPost, "/api/users/signup", map[string]string{
				"username":  username,
				"email":     email,
				"password":  password,
				"name":      name,
				"birthDate": birthDate,
				"gender":    gender,
				"phone":     phone,
			}, &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account created. You can now run: mydiary login")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&username, "username", "", "account username")
	f.StringVar(&email, "email", "", "account email, used for password recovery")
	f.StringVar(&name, "name", "", "display name")
	f.StringVar(&birthDate, "birth-date", "", "birth date (YYYY-MM-DD)")
	f.StringVar(&gender, "gender", "", "gender")
	f.StringVar(&phone, "phone", "", "phone number")
	return cmd
}
