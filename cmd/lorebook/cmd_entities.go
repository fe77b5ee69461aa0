package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lorebook/cmd/lorebook/ui"
	"lorebook/internal/app"
	"lorebook/internal/lore"
)

var (
	listKind string

	addName        string
	addDescription string
	addRole        string
	addPlaceType   string
	addDate        string

	generateHint string
)

// listCmd prints the signed-in user's entities
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List characters, places and events",
	Long: `Lists every entity you own, newest first. Events are listed in
timeline order when --kind=event is given.

Examples:
  lorebook list
  lorebook list --kind place --json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

// addCmd creates an entity from flags
var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an entity without generation",
}

var addCharacterCmd = &cobra.Command{
	Use:   "character",
	Short: "Create a character",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdd(cmd, app.ModalCreateCharacter, map[app.Field]string{app.FieldRole: addRole})
	},
}

var addPlaceCmd = &cobra.Command{
	Use:   "place",
	Short: "Create a place",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdd(cmd, app.ModalCreatePlace, map[app.Field]string{app.FieldPlaceType: addPlaceType})
	},
}

var addEventCmd = &cobra.Command{
	Use:   "event",
	Short: "Create a timeline event",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdd(cmd, app.ModalCreateEvent, map[app.Field]string{app.FieldDate: addDate})
	},
}

// generateCmd invents an entity with Gemini and saves it
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Invent a character or place with Gemini and save it",
	Long: `Sends the name (and optional --hint) to the generative model and saves
the entity it describes.

Example:
  lorebook generate character "Eldric" --hint "a fallen paladin"`,
}

var generateCharacterCmd = &cobra.Command{
	Use:   "character <name>",
	Short: "Generate a character",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenerate(cmd, app.ModalCreateCharacter, strings.Join(args, " "))
	},
}

var generatePlaceCmd = &cobra.Command{
	Use:   "place <name>",
	Short: "Generate a place",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenerate(cmd, app.ModalCreatePlace, strings.Join(args, " "))
	},
}

// deleteCmd removes an entity by id
var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an entity",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func runList(cmd *cobra.Command, args []string) error {
	var kind lore.Kind
	if listKind != "" {
		k, err := lore.ParseKind(listKind)
		if err != nil {
			return err
		}
		kind = k
	}

	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	s, err := e.signedIn()
	if err != nil {
		return err
	}

	entities := s.Entities
	switch kind {
	case lore.KindEvent:
		entities = s.Timeline()
	case "":
	default:
		entities = s.OfKind(kind)
	}

	if jsonOutput {
		return emit(cmd, entities, "")
	}
	if len(entities) == 0 {
		return emit(cmd, nil, "Nothing here yet.")
	}
	return emit(cmd, nil, entityTable(entities))
}

// entityTable renders entities as a bordered table.
func entityTable(entities []lore.Entity) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ui.DarkMuted)).
		Headers("ID", "KIND", "NAME", "DETAIL", "CREATED")
	for _, e := range entities {
		t.Row(ui.ShortID(e.ID), strings.ToLower(string(e.Kind())), e.Name, detail(e), e.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return t.Render()
}

func detail(e lore.Entity) string {
	switch a := e.Attributes.(type) {
	case lore.CharacterAttributes:
		d := a.Role
		if len(a.Traits) > 0 {
			d += " [" + strings.Join(a.Traits, ", ") + "]"
		}
		return strings.TrimSpace(d)
	case lore.PlaceAttributes:
		return a.PlaceType
	case lore.EventAttributes:
		return fmt.Sprintf("#%d %s", a.Order, a.DateStr)
	}
	return ""
}

func runAdd(cmd *cobra.Command, mode app.ModalMode, extra map[app.Field]string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	if _, err := e.signedIn(); err != nil {
		return err
	}

	e.ctrl.OpenModal(mode)
	e.ctrl.SetField(app.FieldName, addName)
	e.ctrl.SetField(app.FieldDescription, addDescription)
	for f, v := range extra {
		e.ctrl.SetField(f, v)
	}
	e.ctrl.Drive(e.ctrl.SubmitManual())
	return reportCreate(cmd, e)
}

func runGenerate(cmd *cobra.Command, mode app.ModalMode, name string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	if _, err := e.signedIn(); err != nil {
		return err
	}

	e.ctrl.OpenModal(mode)
	e.ctrl.SetField(app.FieldName, name)
	e.ctrl.SetField(app.FieldDescription, generateHint)
	task := e.ctrl.SubmitGenerate()
	if task == nil {
		return fmt.Errorf("%w: a name is required", lore.ErrValidation)
	}
	e.ctrl.Drive(task)
	return reportCreate(cmd, e)
}

// reportCreate prints the entity a submit produced. A modal that is still
// open means the submit failed.
func reportCreate(cmd *cobra.Command, e *cliEnv) error {
	s := e.ctrl.Snapshot()
	if err := noticeError(s); err != nil {
		return err
	}
	if s.Modal.Open() || len(s.Entities) == 0 {
		return fmt.Errorf("nothing was saved")
	}
	created := s.Entities[0]
	logger.Debug("entity created", zap.String("id", created.ID), zap.String("kind", string(created.Kind())))
	text := entityTable([]lore.Entity{created})
	if s.Notice != nil {
		text = s.Notice.Text + "\n" + text
	}
	return emit(cmd, created, text)
}

func runDelete(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	if _, err := e.signedIn(); err != nil {
		return err
	}

	id := args[0]
	e.ctrl.Drive(e.ctrl.Delete(id))
	if err := noticeError(e.ctrl.Snapshot()); err != nil {
		return err
	}
	return emit(cmd, map[string]string{"deleted": id}, "Deleted "+id+".")
}
