package users

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/crucial707/mydiary/cmd/cli/client"
	"github.com/crucial707/mydiary/cmd/cli/output"
	"github.com/crucial707/mydiary/cmd/cli/prompt"
	"github.com/crucial707/mydiary/internal/models"
)

// ==========================
// CLI Command Init
// ==========================
func InitUsers(rootCmd *cobra.Command) {
	passwordCmd := &cobra.Command{
		Use:   "password",
		Short: "Recover a forgotten password",
	}
	passwordCmd.AddCommand(forgotPasswordCmd(), resetPasswordCmd())

	rootCmd.AddCommand(whoamiCmd(), findIDCmd(), activityCmd(), passwordCmd)
}

// ==========================
// whoami
// ==========================
func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New()
			if err != nil {
				return err
			}
			if c.Token == "" {
				return errors.New("not logged in (run: mydiary login)")
			}
			var env client.Envelope
			if err := c.DoJSON(cmd.Context(), http.MethodGet, "/api/users/me", nil, &env); err != nil {
				return err
			}
			var u models.User
			if err := json.Unmarshal(env.Data, &u); err != nil {
				return fmt.Errorf("decode user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (id %d)\n", u.Username, u.Email, u.ID)
			return nil
		},
	}
}

// ==========================
// find-id
// ==========================
func findIDCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "find-id",
		Short: "Look up your username (partly masked) by email",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return errors.New("--email is required")
			}
			c, err := client.New()
			if err != nil {
				return err
			}
			var resp struct {
				MaskedUserID string `json:"maskedUserId"`
			}
			if err := c.DoJSON(cmd.Context(), http.MethodPost, "/api/users/find-id",
				map[string]string{"email": email}, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Username: %s\n", resp.MaskedUserID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email the account was registered with")
	return cmd
}

// ==========================
// activity
// ==========================
func activityCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent changes to your diaries and account",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New()
			if err != nil {
				return err
			}
			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))

			var env client.Envelope
			if err := c.DoJSON(cmd.Context(), http.MethodGet, "/api/users/me/activity?"+q.Encode(), nil, &env); err != nil {
				return err
			}
			var entries []models.ActivityEntry
			if err := json.Unmarshal(env.Data, &entries); err != nil {
				return fmt.Errorf("decode activity: %w", err)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No activity recorded.")
				return nil
			}
			rows := make([][]interface{}, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []interface{}{
					e.CreatedAt.Local().Format("2006-01-02 15:04"),
					e.Action,
					fmt.Sprintf("%s #%d", e.ResourceType, e.ResourceID),
					output.Truncate(e.Details, 40),
				})
			}
			output.RenderTable(cmd.OutOrStdout(), []string{"When", "Action", "Target", "Details"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "entries to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")
	return cmd
}

// ==========================
// password forgot / reset
// ==========================
func forgotPasswordCmd() *cobra.Command {
	var username, email string

	cmd := &cobra.Command{
		Use:   "forgot",
		Short: "Email yourself a password reset link",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || email == "" {
				return errors.New("--username and --email are required")
			}
			c, err := client.New()
			if err != nil {
				return err
			}
			var env client.Envelope
			if err := c.DoJSON(cmd.Context(), http.MethodPost, "/api/users/request-password-reset",
				map[string]string{"username": username, "email": email}, &env); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), env.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account username")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func resetPasswordCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Set a new password using the token from the reset email",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return errors.New("--token is required")
			}
			in, errOut := cmd.InOrStdin(), cmd.ErrOrStderr()
			password, err := prompt.Password(in, errOut, "New password: ")
			if err != nil {
				return err
			}
			confirm, err := prompt.Password(in, errOut, "Confirm new password: ")
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
			var env client.Envelope
			if err := c.DoJSON(cmd.Context(), http.MethodPost, "/api/users/reset-password",
				map[string]string{"token": token, "newPassword": password}, &env); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password changed. You can now run: mydiary login")
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "token from the reset link")
	return cmd
}
