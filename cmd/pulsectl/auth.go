package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/akinalp/pulse/models"
)

var registerCmd = &cobra.Command{
	Use:   "register USERNAME EMAIL",
	Short: "Create an account and log in",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFlag(cmd)
		if err != nil {
			return err
		}
		displayName, _ := cmd.Flags().GetString("display-name")
		if displayName == "" {
			displayName = args[0]
		}

		s, err := openClient(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		sess, err := s.Register(cmd.Context(), &models.RegisterRequest{
			Username:    args[0],
			Email:       args[1],
			Password:    password,
			DisplayName: displayName,
		})
		if sess == nil {
			return err
		}
		warnTransport(cmd, err)
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Registered as %s (%s)\n", sess.User.Username, sess.User.ID)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login EMAIL",
	Short: "Log in and store the session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFlag(cmd)
		if err != nil {
			return err
		}

		s, err := openClient(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		sess, err := s.Login(cmd.Context(), args[0], password)
		if sess == nil {
			return err
		}
		warnTransport(cmd, err)
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Logged in as %s, session valid until %s\n",
			sess.User.Username, sess.ExpiresAt.Local().Format("2006-01-02 15:04"))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openClient(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resume(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		me, err := s.API.Me(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (@%s)\n  id:    %s\n  email: %s\n", me.DisplayName, me.Username, me.ID, me.Email)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{registerCmd, loginCmd} {
		c.Flags().StringP("password", "p", "", "password (or set PULSE_PASSWORD)")
	}
	registerCmd.Flags().String("display-name", "", "display name (defaults to the username)")
}

func passwordFlag(cmd *cobra.Command) (string, error) {
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv("PULSE_PASSWORD")
	}
	if password == "" {
		return "", fmt.Errorf("--password is required")
	}
	return password, nil
}

// warnTransport reports a login that worked while the gateway connect did not.
func warnTransport(cmd *cobra.Command, err error) {
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: push gateway: %v\n", err)
	}
}
