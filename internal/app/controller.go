// Package app is the application state controller. It owns the entity
// list, the current view and the creation modal, and turns user intents
// into calls on the store, auth and generation clients.
//
// The controller is not safe for concurrent use. Every method runs on one
// owning goroutine (the UI loop). Operations that need the network return
// a Task; the caller runs the task anywhere (a tea.Cmd, or inline through
// Drive) and hands its Result back to Apply on the owning goroutine. Tasks
// only read values captured when they were created.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lorebook/internal/auth"
	"lorebook/internal/generation"
	"lorebook/internal/logging"
	"lorebook/internal/lore"
	"lorebook/internal/store"
)

// Authenticator is the auth delegate. *auth.Manager implements it.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	SignUp(ctx context.Context, email, password string) (*auth.SignUpResult, error)
	// Forget drops the local session at once; Revoke tells the backend.
	Forget() *auth.Session
	Revoke(ctx context.Context, s *auth.Session) error
	Current(ctx context.Context) (*auth.Session, error)
}

// Generator produces entity drafts from prompts. *generation.Client
// implements it.
type Generator interface {
	GenerateCharacter(ctx context.Context, prompt string) (generation.Character, error)
	GeneratePlace(ctx context.Context, prompt string) (generation.Place, error)
}

// Clients are the controller's collaborators.
type Clients struct {
	Store     store.Store
	Auth      Authenticator
	Generator Generator
	About     About
}

// Task performs one remote call. It must not touch controller state.
type Task func() Result

// Result is the outcome of a Task, folded in by Apply.
type Result interface {
	issuer() ticket
}

// ticket ties a task to the session and modal that issued it.
type ticket struct {
	session uint64
	modal   uint64
}

func (t ticket) issuer() ticket { return t }

type sessionResult struct {
	ticket
	session *auth.Session
	err     error
	start   bool
}

type signUpResult struct {
	ticket
	result *auth.SignUpResult
	err    error
}

type signOutResult struct {
	ticket
	err error
}

type listResult struct {
	ticket
	entities []lore.Entity
	err      error
}

type generateResult struct {
	ticket
	kind      lore.Kind
	character generation.Character
	place     generation.Place
	err       error
}

type createResult struct {
	ticket
	entity lore.Entity
	err    error
}

type deleteResult struct {
	ticket
	id  string
	err error
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used to seed placeholder images.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller owns the application state.
type Controller struct {
	clients Clients
	now     func() time.Time

	st state

	sessionEpoch uint64
	modalEpoch   uint64
	sessionCtx   context.Context
	cancel       context.CancelFunc
}

// New creates a controller. Call Start to restore a session.
func New(clients Clients, opts ...Option) *Controller {
	c := &Controller{clients: clients, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	c.sessionCtx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Close cancels in-flight calls.
func (c *Controller) Close() {
	c.cancel()
}

func (c *Controller) ticket() ticket {
	return ticket{session: c.sessionEpoch, modal: c.modalEpoch}
}

// Drive runs a task chain to completion on the calling goroutine.
func (c *Controller) Drive(task Task) {
	for task != nil {
		task = c.Apply(task())
	}
}

// Start restores the persisted session and, if there is one, loads the
// entity list.
func (c *Controller) Start() Task {
	c.st.loading = true
	ctx, t, authn := c.sessionCtx, c.ticket(), c.clients.Auth
	return func() Result {
		s, err := authn.Current(ctx)
		return sessionResult{ticket: t, session: s, err: err, start: true}
	}
}

// SignIn authenticates with email and password.
func (c *Controller) SignIn(email, password string) Task {
	if c.st.authBusy {
		return nil
	}
	c.st.authBusy = true
	c.st.authMessage = ""
	ctx, t, authn := c.sessionCtx, c.ticket(), c.clients.Auth
	logging.UI("sign-in requested for %s", email)
	return func() Result {
		s, err := authn.SignIn(ctx, email, password)
		return sessionResult{ticket: t, session: s, err: err}
	}
}

// SignUp registers a new account.
func (c *Controller) SignUp(email, password string) Task {
	if c.st.authBusy {
		return nil
	}
	c.st.authBusy = true
	c.st.authMessage = ""
	ctx, t, authn := c.sessionCtx, c.ticket(), c.clients.Auth
	logging.UI("sign-up requested for %s", email)
	return func() Result {
		res, err := authn.SignUp(ctx, email, password)
		return signUpResult{ticket: t, result: res, err: err}
	}
}

// SignOut drops the session immediately: the list, modal, form and notice
// are cleared and every in-flight call is cancelled. The returned task
// tells the backend.
func (c *Controller) SignOut() Task {
	c.endSession()
	authn := c.clients.Auth
	ended := authn.Forget()
	t := c.ticket()
	logging.UI("sign-out requested")
	return func() Result {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return signOutResult{ticket: t, err: authn.Revoke(ctx, ended)}
	}
}

func (c *Controller) endSession() {
	c.cancel()
	c.sessionEpoch++
	c.modalEpoch++
	c.sessionCtx, c.cancel = context.WithCancel(context.Background())
	c.st = state{started: true}
}

// Reload fetches the entity list again.
func (c *Controller) Reload() Task {
	if c.st.user == nil || c.st.loading {
		return nil
	}
	c.st.loading = true
	c.st.journal = nil
	ctx, t, st, owner := c.sessionCtx, c.ticket(), c.clients.Store, c.st.user.ID
	return func() Result {
		entities, err := st.List(ctx, owner)
		return listResult{ticket: t, entities: entities, err: err}
	}
}

// SwitchView changes the page. The entity list is untouched.
func (c *Controller) SwitchView(v View) {
	c.st.view = v
}

// OpenModal opens the creation modal with an empty form. It does nothing
// while a call from the current modal is in flight.
func (c *Controller) OpenModal(mode ModalMode) {
	if mode == ModalClosed || c.st.user == nil || c.st.generating || c.st.saving {
		return
	}
	c.modalEpoch++
	c.st.modal = mode
	c.st.form = Form{}
	logging.UIDebug("modal opened: %s", mode.Kind())
}

// CloseModal closes the modal and resets the form. Results of calls the
// modal started are no longer applied to it.
func (c *Controller) CloseModal() {
	if !c.st.modal.Open() {
		return
	}
	c.closeModal()
}

func (c *Controller) closeModal() {
	c.modalEpoch++
	c.st.modal = ModalClosed
	c.st.form = Form{}
	c.st.generating = false
	c.st.saving = false
}

// SetField edits one form input.
func (c *Controller) SetField(f Field, value string) {
	if !c.st.modal.Open() {
		return
	}
	c.st.form.set(f, value)
}

// SubmitManual saves the form as a new entity. Returns nil when nothing
// is submitted; a local validation failure becomes a notice.
func (c *Controller) SubmitManual() Task {
	if !c.st.modal.Open() || c.st.user == nil || c.st.saving || c.st.generating {
		return nil
	}
	draft := c.manualDraft()
	if err := draft.Validate(); err != nil {
		c.fail(err)
		return nil
	}
	c.st.saving = true
	logging.UI("manual create: %s %q", draft.Kind(), draft.Name)
	return c.createTask(draft)
}

func (c *Controller) manualDraft() lore.Draft {
	f, owner := c.st.form, c.st.user.ID
	switch c.st.modal {
	case ModalCreateCharacter:
		d := lore.NewCharacter(owner, f.Name, f.Description, f.Role, []string{})
		d.ImageURL = lore.PlaceholderImage(c.now())
		return d
	case ModalCreatePlace:
		d := lore.NewPlace(owner, f.Name, f.Description, f.PlaceType)
		d.ImageURL = lore.PlaceholderImage(c.now())
		return d
	default:
		order := c.snapshotCounts().Events + 1
		return lore.NewEvent(owner, f.Name, f.Description, f.Date, order)
	}
}

func (c *Controller) snapshotCounts() Counts {
	return Snapshot{Entities: c.st.entities}.Counts()
}

func (c *Controller) createTask(draft lore.Draft) Task {
	ctx, t, st := c.sessionCtx, c.ticket(), c.clients.Store
	return func() Result {
		e, err := st.Create(ctx, draft)
		return createResult{ticket: t, entity: e, err: err}
	}
}

// SubmitGenerate fills the entity in with the generator and saves it.
// Returns nil when the name is empty or the mode has no generator.
func (c *Controller) SubmitGenerate() Task {
	mode := c.st.modal
	if !mode.CanGenerate() || c.st.user == nil || c.st.generating || c.st.saving {
		return nil
	}
	name := strings.TrimSpace(c.st.form.Name)
	if name == "" {
		return nil
	}
	c.st.generating = true
	ctx, t, gen := c.sessionCtx, c.ticket(), c.clients.Generator
	desc := c.st.form.Description
	logging.UI("magic generate: %s %q", mode.Kind(), name)

	if mode == ModalCreateCharacter {
		prompt := generation.CharacterPrompt(name, desc)
		return func() Result {
			ch, err := gen.GenerateCharacter(ctx, prompt)
			return generateResult{ticket: t, kind: lore.KindCharacter, character: ch, err: err}
		}
	}
	prompt := generation.PlacePrompt(name, desc)
	return func() Result {
		p, err := gen.GeneratePlace(ctx, prompt)
		return generateResult{ticket: t, kind: lore.KindPlace, place: p, err: err}
	}
}

// Delete removes an entity by id.
func (c *Controller) Delete(id string) Task {
	if c.st.user == nil {
		return nil
	}
	ctx, t, st := c.sessionCtx, c.ticket(), c.clients.Store
	logging.UI("delete requested: %s", id)
	return func() Result {
		return deleteResult{ticket: t, id: id, err: st.Delete(ctx, id)}
	}
}

// DismissNotice clears the notice.
func (c *Controller) DismissNotice() {
	c.st.notice = nil
}

// Reconfigure swaps the clients, for example after the config file
// changed. In-flight results from the old clients are dropped and the
// session is restored through the new ones.
func (c *Controller) Reconfigure(clients Clients) Task {
	view := c.st.view
	c.clients = clients
	c.endSession()
	c.st.view = view
	logging.UI("controller reconfigured (backend=%s)", clients.About.Backend)
	return c.Start()
}

// Apply folds a task result into state on the owning goroutine. It may
// return a follow-up task.
func (c *Controller) Apply(r Result) Task {
	if r == nil {
		return nil
	}
	t := r.issuer()
	if t.session != c.sessionEpoch {
		logging.UIDebug("dropping %T from an earlier session", r)
		return nil
	}

	switch r := r.(type) {
	case sessionResult:
		return c.applySession(r)
	case signUpResult:
		c.st.authBusy = false
		if r.err != nil {
			c.st.authMessage = authMessage(r.err)
			return nil
		}
		c.st.authMessage = r.result.Message
		if r.result.Session != nil {
			return c.beginSession(r.result.Session)
		}
	case signOutResult:
		if r.err != nil {
			logging.Get(logging.CategorySession).Warn("sign-out: %v", r.err)
		}
	case listResult:
		if r.err != nil {
			c.st.loading = false
			c.st.journal = nil
			c.fail(r.err)
			return nil
		}
		c.st.entities = r.entities
		c.replayJournal()
		c.st.loading = false
		logging.UIDebug("loaded %d entities", len(r.entities))
	case generateResult:
		return c.applyGenerate(r)
	case createResult:
		c.applyCreate(r)
	case deleteResult:
		if r.err != nil {
			c.fail(r.err)
			return nil
		}
		c.removeEntity(r.id)
		c.record(change{deleted: r.id})
	}
	return nil
}

// change is a create or delete confirmed while a list was in flight.
type change struct {
	created *lore.Entity
	deleted string
}

func (c *Controller) record(ch change) {
	if c.st.loading {
		c.st.journal = append(c.st.journal, ch)
	}
}

// replayJournal reapplies the changes confirmed after the list was
// requested, which the fetched list may predate.
func (c *Controller) replayJournal() {
	for _, ch := range c.st.journal {
		if ch.created != nil {
			c.prepend(*ch.created)
		} else {
			c.removeEntity(ch.deleted)
		}
	}
	c.st.journal = nil
}

func (c *Controller) prepend(e lore.Entity) {
	if _, exists := (Snapshot{Entities: c.st.entities}).Entity(e.ID); !exists {
		c.st.entities = append([]lore.Entity{e}, c.st.entities...)
	}
}

func (c *Controller) applySession(r sessionResult) Task {
	c.st.authBusy = false
	if r.start {
		c.st.started = true
		c.st.loading = false
	}
	if r.err != nil {
		if r.start && errors.Is(r.err, lore.ErrUnauthenticated) {
			return nil
		}
		if r.start {
			c.fail(r.err)
		} else {
			c.st.authMessage = authMessage(r.err)
		}
		return nil
	}
	return c.beginSession(r.session)
}

func (c *Controller) beginSession(s *auth.Session) Task {
	c.st.user = &User{ID: s.UserID, Email: s.Email}
	c.st.authMessage = ""
	c.st.started = true
	logging.UI("session active for %s", s.UserID)
	return c.Reload()
}

func (c *Controller) applyGenerate(r generateResult) Task {
	if r.modal != c.modalEpoch {
		logging.UIDebug("dropping generation for a closed modal")
		return nil
	}
	c.st.generating = false
	if r.err != nil {
		c.fail(r.err)
		return nil
	}

	owner := c.st.user.ID
	var draft lore.Draft
	switch r.kind {
	case lore.KindCharacter:
		traits := r.character.Traits
		if traits == nil {
			traits = []string{}
		}
		draft = lore.NewCharacter(owner, r.character.Name, r.character.Description, r.character.Role, traits)
	default:
		draft = lore.NewPlace(owner, r.place.Name, r.place.Description, r.place.Type)
	}
	draft.ImageURL = lore.PlaceholderImage(c.now())
	if err := draft.Validate(); err != nil {
		c.fail(fmt.Errorf("%w: %w", lore.ErrGeneration, err))
		return nil
	}
	c.st.saving = true
	return c.createTask(draft)
}

func (c *Controller) applyCreate(r createResult) {
	current := r.modal == c.modalEpoch
	if r.err != nil {
		if !current {
			logging.Get(logging.CategoryUI).Warn("create from a closed modal failed: %v", r.err)
			return
		}
		c.st.saving = false
		c.fail(r.err)
		return
	}

	c.prepend(r.entity)
	created := r.entity.Clone()
	c.record(change{created: &created})
	if current {
		c.closeModal()
		c.st.notice = &Notice{Level: NoticeInfo, Text: fmt.Sprintf("Saved %s %q.", strings.ToLower(r.entity.Kind().Label()), r.entity.Name)}
	}
}

func (c *Controller) removeEntity(id string) {
	kept := make([]lore.Entity, 0, len(c.st.entities))
	for _, e := range c.st.entities {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	c.st.entities = kept
}

func (c *Controller) fail(err error) {
	logging.Get(logging.CategoryUI).Warn("%v", err)
	c.st.notice = &Notice{Level: NoticeError, Text: lore.Describe(err), Err: err}
}

// Snapshot returns a deep copy of the state.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Started:     c.st.started,
		View:        c.st.view,
		Modal:       c.st.modal,
		Form:        c.st.form,
		Generating:  c.st.generating,
		Saving:      c.st.saving,
		Loading:     c.st.loading,
		AuthBusy:    c.st.authBusy,
		AuthMessage: c.st.authMessage,
		About:       c.clients.About,
		Entities:    make([]lore.Entity, len(c.st.entities)),
	}
	for i, e := range c.st.entities {
		s.Entities[i] = e.Clone()
	}
	if c.st.user != nil {
		s.Authenticated = true
		s.User = *c.st.user
	}
	if c.st.notice != nil {
		n := *c.st.notice
		s.Notice = &n
	}
	return s
}
