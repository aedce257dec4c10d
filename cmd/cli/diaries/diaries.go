package diaries

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/crucial707/mydiary/cmd/cli/client"
	"github.com/crucial707/mydiary/cmd/cli/output"
	"github.com/crucial707/mydiary/internal/models"
)

// ==========================
// Init Diaries
// ==========================
func InitDiaries(rootCmd *cobra.Command) {
	diariesCmd := &cobra.Command{
		Use:     "diaries",
		Aliases: []string{"diary"},
		Short:   "Manage your diary entries",
	}

	diariesCmd.AddCommand(
		listDiariesCmd(),
		showDiaryCmd(),
		addDiaryCmd(),
		editDiaryCmd(),
		deleteDiaryCmd(),
	)

	rootCmd.AddCommand(diariesCmd)
}

// ==========================
// LIST
// ==========================
func listDiariesCmd() *cobra.Command {
	var sort string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List diary entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New()
			if err != nil {
				return err
			}

			var diaries []models.Diary
			if err := c.DoJSON(cmd.Context(), http.MethodGet, "/diaries?"+url.Values{"sort": {sort}}.Encode(), nil, &diaries); err != nil {
				return err
			}

			if asJSON {
				return output.JSON(cmd.OutOrStdout(), diaries)
			}
			if len(diaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No diary entries yet.")
				return nil
			}
			rows := make([][]interface{}, 0, len(diaries))
			for _, d := range diaries {
				rows = append(rows, []interface{}{
					d.ID,
					d.CreatedAt.Local().Format("2006-01-02 15:04"),
					output.Truncate(d.Title, 30),
					output.Truncate(d.Content, 40),
					d.ImagePath,
				})
			}
			output.RenderTable(cmd.OutOrStdout(), []string{"ID", "Created", "Title", "Content", "Image"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&sort, "sort", "desc", "order by creation time: asc or desc")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

// ==========================
// SHOW
// ==========================
func showDiaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Print one diary entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New()
			if err != nil {
				return err
			}
			d, err := getDiary(cmd, c, args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "#%d  %s\n", d.ID, d.Title)
			fmt.Fprintf(w, "%s\n\n", d.CreatedAt.Local().Format(time.RFC1123))
			fmt.Fprintln(w, d.Content)
			if d.ImagePath != "" {
				fmt.Fprintf(w, "\nImage: %s/%s\n", c.BaseURL, d.ImagePath)
			}
			return nil
		},
	}
}

// ==========================
// ADD
// ==========================
func addDiaryCmd() *cobra.Command {
	var title, content, image string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Write a new diary entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkEntry(title, content); err != nil {
				return err
			}
			c, err := client.New()
			if err != nil {
				return err
			}

			var created models.Diary
			if err := c.Upload(cmd.Context(), "/diaries",
				map[string]string{"title": title, "content": content},
				"image", image, &created); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Diary #%d created.\n", created.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "entry title")
	cmd.Flags().StringVar(&content, "content", "", "entry text")
	cmd.Flags().StringVar(&image, "image", "", "path to an image to attach")
	return cmd
}

// ==========================
// EDIT
// ==========================
func editDiaryCmd() *cobra.Command {
	var title, content string

	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change the title or text of an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			titleSet, contentSet := cmd.Flags().Changed("title"), cmd.Flags().Changed("content")
			if !titleSet && !contentSet {
				return errors.New("nothing to change: pass --title and/or --content")
			}
			c, err := client.New()
			if err != nil {
				return err
			}

			// The API replaces both fields; keep the current value of the one not given.
			if !titleSet || !contentSet {
				current, err := getDiary(cmd, c, args[0])
				if err != nil {
					return err
				}
				if !titleSet {
					title = current.Title
				}
				if !contentSet {
					content = current.Content
				}
			}
			if err := checkEntry(title, content); err != nil {
				return err
			}

			var updated models.Diary
			if err := c.DoJSON(cmd.Context(), http.MethodPatch, "/diaries/"+args[0],
				map[string]string{"title": title, "content": content}, &updated); err != nil {
				return notFound(err, args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Diary #%d updated.\n", updated.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&content, "content", "", "new text")
	return cmd
}

// ==========================
// DELETE
// ==========================
func deleteDiaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a diary entry and its image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("invalid diary id %q", args[0])
			}
			c, err := client.New()
			if err != nil {
				return err
			}
			if err := c.DoJSON(cmd.Context(), http.MethodDelete, "/diaries/"+args[0], nil, nil); err != nil {
				return notFound(err, args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Diary #%s deleted.\n", args[0])
			return nil
		},
	}
}

func getDiary(cmd *cobra.Command, c *client.Client, id string) (*models.Diary, error) {
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return nil, fmt.Errorf("invalid diary id %q", id)
	}
	var d models.Diary
	if err := c.DoJSON(cmd.Context(), http.MethodGet, "/diaries/"+id, nil, &d); err != nil {
		return nil, notFound(err, id)
	}
	return &d, nil
}

func checkEntry(title, content string) error {
	if title == "" {
		return errors.New("--title is required")
	}
	if n := len([]rune(content)); n > models.MaxDiaryContent {
		return fmt.Errorf("content is %d characters, the limit is %d", n, models.MaxDiaryContent)
	}
	return nil
}

func notFound(err error, id string) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return fmt.Errorf("diary #%s not found", id)
	}
	return err
}
