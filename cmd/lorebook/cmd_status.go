package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"lorebook/cmd/lorebook/ui"
	"lorebook/internal/lore"
)

// statusCmd shows configuration and connectivity
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show LoreBook configuration and connection status",
	Long: `Checks the config file, the stored session, the entity store and the
generation client. The checks run concurrently.`,
	Args: cobra.NoArgs,
	RunE: showStatus,
}

// check is one status line.
type check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

func showStatus(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	about := e.w.clients.About
	checks := make([]check, 4)
	g, ctx := errgroup.WithContext(commandContext(cmd))

	g.Go(func() error {
		c := check{Name: "config", OK: true, Detail: e.path}
		if _, err := os.Stat(e.path); errors.Is(err, os.ErrNotExist) {
			c.Detail = e.path + " (not found, using defaults)"
		}
		checks[0] = c
		return nil
	})

	var userID string
	sessionDone := make(chan struct{})
	g.Go(func() error {
		defer close(sessionDone)
		s, err := e.w.manager.Current(ctx)
		switch {
		case err == nil:
			userID = s.UserID
			checks[1] = check{Name: "session", OK: true, Detail: s.Email + " (" + ui.ShortID(s.UserID) + ")"}
		case errors.Is(err, lore.ErrUnauthenticated):
			checks[1] = check{Name: "session", Detail: "not signed in"}
		default:
			checks[1] = check{Name: "session", Detail: lore.Describe(err)}
		}
		return nil
	})

	g.Go(func() error {
		c := check{Name: "store", Detail: about.Backend + " " + about.StoreURL}
		if !about.StoreReady {
			c.Detail = about.Backend + ": not configured"
			checks[2] = c
			return nil
		}
		<-sessionDone
		if userID == "" {
			c.OK = true
			c.Detail += " (sign in to check access)"
			checks[2] = c
			return nil
		}
		callCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		start := time.Now()
		entities, err := e.w.clients.Store.List(callCtx, userID)
		if err != nil {
			c.Detail += ": " + lore.Describe(err)
		} else {
			c.OK = true
			c.Detail += fmt.Sprintf(" (%d entities, %s)", len(entities), time.Since(start).Round(time.Millisecond))
		}
		checks[2] = c
		return nil
	})

	g.Go(func() error {
		c := check{Name: "generation", OK: about.GenerationReady, Detail: about.Model}
		if !about.GenerationReady {
			c.Detail = about.Model + ": no API key (set GEMINI_API_KEY)"
		}
		checks[3] = c
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if jsonOutput {
		return emit(cmd, checks, "")
	}
	return emit(cmd, nil, statusTable(checks))
}

func statusTable(checks []check) string {
	ok := lipgloss.NewStyle().Foreground(ui.Success)
	bad := lipgloss.NewStyle().Foreground(ui.Destructive)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("CHECK", "", "DETAIL")
	for _, c := range checks {
		mark := bad.Render("✗")
		if c.OK {
			mark = ok.Render("✓")
		}
		t.Row(strings.ToUpper(c.Name[:1])+c.Name[1:], mark, c.Detail)
	}
	return t.Render()
}
