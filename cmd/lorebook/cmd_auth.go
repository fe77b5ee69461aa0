package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lorebook/internal/app"
	"lorebook/internal/auth"
)

var (
	authEmail    string
	authPassword string
)

// loginCmd signs in and persists the session
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	Long: `Signs in to the configured backend and stores the session in
~/.lorebook/session.json so later commands and the interactive UI reuse it.

Example:
  lorebook login --email architect@world.com`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

// signupCmd registers a new account
var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE:  runSignup,
}

// logoutCmd drops the session
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

// whoamiCmd shows the signed-in user
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

type userOutput struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Entities int    `json:"entities,omitempty"`
	Message  string `json:"message,omitempty"`
}

func readPassword(cmd *cobra.Command) (string, error) {
	if authPassword != "" {
		return authPassword, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	sc := bufio.NewScanner(cmd.InOrStdin())
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return "", errors.New("no password given")
	}
	return strings.TrimRight(sc.Text(), "\r\n"), nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	password, err := readPassword(cmd)
	if err != nil {
		return err
	}
	e.ctrl.Drive(e.ctrl.SignIn(authEmail, password))
	s := e.ctrl.Snapshot()
	if !s.Authenticated {
		return fmt.Errorf("sign in failed: %s", s.AuthMessage)
	}
	logger.Debug("signed in", zap.String("user", s.User.ID))
	return emit(cmd, userFrom(s, ""), fmt.Sprintf("Signed in as %s.", s.User.Email))
}

func runSignup(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	password, err := readPassword(cmd)
	if err != nil {
		return err
	}
	e.ctrl.Drive(e.ctrl.SignUp(authEmail, password))
	s := e.ctrl.Snapshot()
	switch {
	case s.Authenticated:
		return emit(cmd, userFrom(s, auth.SignUpMessage), auth.SignUpMessage+"\nSigned in as "+s.User.Email+".")
	case s.AuthMessage == auth.SignUpMessage:
		return emit(cmd, userOutput{Email: authEmail, Message: s.AuthMessage}, s.AuthMessage)
	default:
		return fmt.Errorf("sign up failed: %s", s.AuthMessage)
	}
}

func runLogout(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	// The stored session is removed even when the backend cannot be told.
	e.ctrl.Drive(e.ctrl.SignOut())
	return emit(cmd, map[string]bool{"signed_out": true}, "Signed out.")
}

func runWhoami(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	s, err := e.signedIn()
	if errors.Is(err, errNotSignedIn) {
		return emit(cmd, map[string]bool{"signed_in": false}, "Not signed in.")
	}
	if err != nil && !s.Authenticated {
		return err
	}
	if err != nil {
		logger.Warn("entity list unavailable", zap.Error(err))
	}
	text := fmt.Sprintf("%s (%s)\n%d entities", s.User.Email, s.User.ID, len(s.Entities))
	return emit(cmd, userFrom(s, ""), text)
}

func userFrom(s app.Snapshot, msg string) userOutput {
	return userOutput{ID: s.User.ID, Email: s.User.Email, Entities: len(s.Entities), Message: msg}
}
