package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/akinalp/pulse/client"
	"github.com/akinalp/pulse/events"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live feed activity until interrupted",
	Long: `watch connects to the push gateway and prints every event other
clients publish. The local feed is refetched as changes arrive, so --feed
prints the reconciled view after each post change.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		showFeed, _ := cmd.Flags().GetBool("feed")
		out := cmd.OutOrStdout()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := resume(ctx, cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		// The client's own subscriptions were registered first, so by the time
		// a handler below runs the cache has already been refetched.
		if err := s.Feed.Refresh(ctx); err != nil {
			return err
		}

		ch := s.Channel
		subs := []*client.Subscription{
			client.On(ch, func(e events.PostNew) {
				line(out, "post", "@%s posted %s: %s", e.Author.Username, e.ID, oneLine(e.Content, 60))
				if showFeed {
					printPosts(out, s.Cache.Posts())
				}
			}),
			client.On(ch, func(e events.PostLike) {
				verb := "unliked"
				if e.IsLiked {
					verb = "liked"
				}
				line(out, "like", "%s %s (%d likes)", e.PostID, verb, e.LikesCount)
			}),
			client.On(ch, func(e events.PostRemoved) {
				line(out, "post", "%s removed", e.PostID)
				if showFeed {
					printPosts(out, s.Cache.Posts())
				}
			}),
			client.On(ch, func(e events.CommentNew) {
				line(out, "comment", "@%s on %s: %s", e.Comment.Author.Username, e.PostID, oneLine(e.Comment.Content, 60))
			}),
			client.On(ch, func(e events.CommentRemoved) {
				line(out, "comment", "%s removed from %s", e.CommentID, e.PostID)
			}),
			client.On(ch, func(e events.UserTyping) {
				line(out, "typing", "@%s is typing on %s", e.Username, e.PostID)
			}),
			client.On(ch, func(e events.UserStatus) {
				state := "offline"
				if e.IsOnline {
					state = "online"
				}
				line(out, "status", "%s is %s", e.UserID, state)
			}),
			client.On(ch, func(e events.Ready) {
				line(out, "ready", "joined %s as @%s", e.Group, e.Username)
			}),
		}
		defer func() {
			for _, sub := range subs {
				ch.Unsubscribe(sub)
			}
		}()

		if r, ok := ch.Ready(); ok {
			line(out, "ready", "joined %s as @%s", r.Group, r.Username)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "watching, press Ctrl+C to stop")

		<-ctx.Done()
		return nil
	},
}

func init() {
	watchCmd.Flags().Bool("feed", false, "print the reconciled feed after post changes")
}

func line(out io.Writer, kind, format string, args ...any) {
	fmt.Fprintf(out, "%s  %-8s %s\n", time.Now().Format("15:04:05"), kind, fmt.Sprintf(format, args...))
}
