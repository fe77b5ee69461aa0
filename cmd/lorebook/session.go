package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"lorebook/internal/app"
	"lorebook/internal/lore"
)

var errNotSignedIn = fmt.Errorf("%w: not signed in (run `lorebook login`)", lore.ErrUnauthenticated)

// cliEnv is one non-interactive run: the config, the wired clients and a
// controller driven synchronously.
type cliEnv struct {
	path string
	w    *wired
	ctrl *app.Controller
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

func openEnv(cmd *cobra.Command) (*cliEnv, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, err
	}
	w, err := buildClients(commandContext(cmd), cfg, path)
	if err != nil {
		return nil, err
	}
	return &cliEnv{path: path, w: w, ctrl: app.New(w.clients)}, nil
}

func (e *cliEnv) Close() {
	e.ctrl.Close()
	_ = e.w.Close()
}

// signedIn restores the session and loads the entity list.
func (e *cliEnv) signedIn() (app.Snapshot, error) {
	e.ctrl.Drive(e.ctrl.Start())
	s := e.ctrl.Snapshot()
	if !s.Authenticated {
		if err := noticeError(s); err != nil {
			return s, err
		}
		return s, errNotSignedIn
	}
	return s, noticeError(s)
}

// noticeError returns the failure behind an error notice, if any.
func noticeError(s app.Snapshot) error {
	if s.Notice == nil || s.Notice.Level != app.NoticeError {
		return nil
	}
	if s.Notice.Err != nil {
		return s.Notice.Err
	}
	return errors.New(s.Notice.Text)
}

// emit prints v as JSON under --json, otherwise the text.
func emit(cmd *cobra.Command, v any, text string) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(out, text)
	return err
}
