package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"lorebook/cmd/lorebook/tui"
	"lorebook/cmd/lorebook/ui"
	"lorebook/internal/app"
	"lorebook/internal/config"
	"lorebook/internal/logging"
)

// runInteractive starts the full-screen interface. Edits to the config
// file rebuild the clients and hand them to the running controller.
func runInteractive(cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	w, err := buildClients(ctx, cfg, path)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	current := w
	defer func() {
		mu.Lock()
		_ = current.Close()
		mu.Unlock()
	}()

	ctrl := app.New(w.clients)
	defer ctrl.Close()

	theme := ui.ThemeFor(cfg.UI.Theme)
	model := tui.New(ctrl, ui.NewStyles(theme), ui.NewMarkdown(theme))

	var watcher *config.Watcher
	defer func() {
		if watcher != nil {
			watcher.Stop()
		}
	}()

	return tui.Run(model, func(p *tea.Program) {
		reload := func(next *config.Config, err error) {
			if err != nil {
				p.Send(tui.ReconfigureMsg{Err: err})
				return
			}
			if err := logging.Initialize(next.Logging.Settings()); err != nil {
				logging.Get(logging.CategoryConfig).Warn("logging reinit: %v", err)
			}
			rebuilt, err := buildClients(ctx, next, path)
			if err != nil {
				p.Send(tui.ReconfigureMsg{Err: err})
				return
			}
			mu.Lock()
			old := current
			current = rebuilt
			mu.Unlock()
			p.Send(tui.ReconfigureMsg{Clients: rebuilt.clients})
			// Results from calls still using the old clients are dropped.
			_ = old.Close()
		}

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			logging.Get(logging.CategoryConfig).Warn("config dir: %v", err)
			return
		}
		cw, err := config.NewWatcher(path, reload)
		if err != nil {
			logging.Get(logging.CategoryConfig).Warn("config watcher disabled: %v", err)
			return
		}
		if err := cw.Start(ctx); err != nil {
			logging.Get(logging.CategoryConfig).Warn("config watcher disabled: %v", err)
			cw.Stop()
			return
		}
		watcher = cw
	})
}
