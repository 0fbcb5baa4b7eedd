package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/akinalp/pulse/models"
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "List posts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")

		// Reading the feed works anonymously; with a session, isLiked is filled in.
		s, err := resume(cmd.Context(), cmd)
		if err != nil {
			if s, err = openClient(cmd); err != nil {
				return err
			}
		}
		defer s.Close()

		result, err := s.API.ListPosts(cmd.Context(), page, limit)
		if err != nil {
			return err
		}
		printPosts(cmd.OutOrStdout(), result.Posts)
		fmt.Fprintf(cmd.OutOrStdout(), "\npage %d of %d (%d posts)\n", result.Page, max(result.TotalPages, 1), result.Total)
		return nil
	},
}

var postCmd = &cobra.Command{
	Use:   "post CONTENT",
	Short: "Publish a post",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		image, _ := cmd.Flags().GetString("image")

		s, err := resume(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		p, err := s.Feed.CreatePost(cmd.Context(), strings.Join(args, " "), image)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Posted %s\n", p.ID)
		return nil
	},
}

var likeCmd = &cobra.Command{
	Use:   "like POST_ID",
	Short: "Like or unlike a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resume(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.Feed.ToggleLike(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		verb := "Unliked"
		if res.IsLiked {
			verb = "Liked"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s %s (%d likes)\n", verb, res.PostID, res.LikesCount)
		return nil
	},
}

var deletePostCmd = &cobra.Command{
	Use:   "delete-post POST_ID",
	Short: "Delete one of your posts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resume(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Feed.DeletePost(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted post %s\n", args[0])
		return nil
	},
}

var commentsCmd = &cobra.Command{
	Use:   "comments POST_ID",
	Short: "List a post's comments, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openClient(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		list, err := s.API.ListComments(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printComments(cmd.OutOrStdout(), list)
		return nil
	},
}

var commentCmd = &cobra.Command{
	Use:   "comment POST_ID CONTENT",
	Short: "Comment on a post",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resume(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		cm, err := s.Feed.CreateComment(cmd.Context(), args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Commented %s\n", cm.ID)
		return nil
	},
}

var deleteCommentCmd = &cobra.Command{
	Use:   "delete-comment POST_ID COMMENT_ID",
	Short: "Delete one of your comments",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resume(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Feed.DeleteComment(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted comment %s\n", args[1])
		return nil
	},
}

var onlineCmd = &cobra.Command{
	Use:   "online",
	Short: "List identities with a live connection",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openClient(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Presence.Refresh(cmd.Context()); err != nil {
			return err
		}
		ids := s.Presence.Online()
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "nobody is online")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func init() {
	feedCmd.Flags().Int("page", 1, "page number")
	feedCmd.Flags().Int("limit", 20, "posts per page (max 50)")
	postCmd.Flags().String("image", "", "image URL (http or https)")
}

func printPosts(out io.Writer, posts []models.Post) {
	if len(posts) == 0 {
		fmt.Fprintln(out, "no posts yet")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tAUTHOR\tLIKES\tCOMMENTS\tWHEN\tCONTENT")
	for _, p := range posts {
		likes := fmt.Sprint(p.LikesCount)
		if p.IsLiked {
			likes += " ♥"
		}
		fmt.Fprintf(w, "%s\t@%s\t%s\t%d\t%s\t%s\n",
			p.ID, p.Author.Username, likes, p.CommentCount, ago(p.CreatedAt), oneLine(p.Content, 60))
	}
	w.Flush()
}

func printComments(out io.Writer, list []models.Comment) {
	if len(list) == 0 {
		fmt.Fprintln(out, "no comments yet")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tAUTHOR\tWHEN\tCONTENT")
	for _, c := range list {
		fmt.Fprintf(w, "%s\t@%s\t%s\t%s\n", c.ID, c.Author.Username, ago(c.CreatedAt), oneLine(c.Content, 60))
	}
	w.Flush()
}

func ago(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Local().Format("2006-01-02")
	}
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
