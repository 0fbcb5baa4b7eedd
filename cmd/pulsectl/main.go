// Command pulsectl is a terminal client for a pulse server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/akinalp/pulse/client"
	"github.com/akinalp/pulse/pkg"
	"github.com/akinalp/pulse/pkg/logger"
)

// Version is set via ldflags.
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pulsectl",
	Short: "pulsectl - terminal client for the pulse social feed",
	Long: `pulsectl talks to a pulse server: read and write the feed, like and
comment, and watch live updates from the push gateway.

The session is kept in $PULSE_HOME/session.db (default ~/.pulse).`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetString("log-level")
		logger.Init(logger.Config{Level: level, Output: os.Stderr})
	},
}

func init() {
	rootCmd.PersistentFlags().String("server", envOr("PULSE_SERVER", "http://localhost:4003"), "pulse server URL")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, whoamiCmd)
	rootCmd.AddCommand(feedCmd, postCmd, likeCmd, deletePostCmd)
	rootCmd.AddCommand(commentsCmd, commentCmd, deleteCommentCmd)
	rootCmd.AddCommand(onlineCmd, watchCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func sessionPath() (string, error) {
	home := os.Getenv("PULSE_HOME")
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locate home directory: %w", err)
		}
		home = filepath.Join(userHome, ".pulse")
	}
	return filepath.Join(home, "session.db"), nil
}

// session bundles a client with its on-disk store.
type session struct {
	*client.Client
	store *client.BoltSessionStore
}

func (s *session) Close() {
	s.Client.Close()
	s.store.Close()
}

// openClient builds a client backed by the session file. It does not log in.
func openClient(cmd *cobra.Command) (*session, error) {
	path, err := sessionPath()
	if err != nil {
		return nil, err
	}
	store, err := client.OpenBoltSessionStore(path)
	if err != nil {
		return nil, err
	}

	server, _ := cmd.Flags().GetString("server")
	c, err := client.New(client.Options{BaseURL: server, Store: store})
	if err != nil {
		store.Close()
		return nil, err
	}
	return &session{Client: c, store: store}, nil
}

// resume opens the client and restores the stored session. A gateway that
// cannot be reached is only a warning: REST calls still work, other clients
// just will not hear about this one's changes.
func resume(ctx context.Context, cmd *cobra.Command) (*session, error) {
	s, err := openClient(cmd)
	if err != nil {
		return nil, err
	}

	_, err = s.Resume(ctx)
	switch {
	case err == nil:
	case errors.Is(err, client.ErrNoSession):
		s.Close()
		return nil, fmt.Errorf("not logged in, run: pulsectl login")
	case errors.Is(err, pkg.ErrUnauthorized) && s.Session() == nil:
		s.Close()
		return nil, fmt.Errorf("session expired, run: pulsectl login")
	case errors.Is(err, pkg.ErrTransport):
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: push gateway unreachable: %v\n", err)
	default:
		s.Close()
		return nil, err
	}
	return s, nil
}
