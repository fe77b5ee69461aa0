package store

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/supabase-community/postgrest-go"

	"lorebook/internal/logging"
	"lorebook/internal/lore"
	"lorebook/internal/supabase"
)

const entitiesTable = "entities"

// SupabaseStore keeps entities in the `entities` table of a Supabase
// project. Row-level security scopes every query to the token's user.
type SupabaseStore struct {
	client    *supabase.Client
	principal Principal
}

// NewSupabaseStore creates a store over an existing client.
func NewSupabaseStore(client *supabase.Client, principal Principal) *SupabaseStore {
	return &SupabaseStore{client: client, principal: principal}
}

// List returns the owner's entities, newest first.
func (s *SupabaseStore) List(ctx context.Context, ownerID string) ([]lore.Entity, error) {
	timer := logging.StartTimer(logging.CategoryStore, "supabase list")
	defer timer.Stop()

	creds, err := s.principal.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	if ownerID == "" {
		ownerID = creds.UserID
	}

	rest, call := s.client.Rest(ctx, creds.AccessToken)
	var rows []lore.Row
	_, err = rest.From(entitiesTable).
		Select("*", "", false).
		Eq("user_id", ownerID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, classify("list entities", call.Err(err))
	}

	entities := make([]lore.Entity, 0, len(rows))
	for _, r := range rows {
		e, err := r.Entity()
		if err != nil {
			// A row of an unknown kind is skipped rather than failing the list.
			logging.Get(logging.CategoryStore).Warn("skipping row %s: %v", r.ID, err)
			continue
		}
		entities = append(entities, e)
	}
	logging.StoreDebug("listed %d entities for %s", len(entities), ownerID)
	return entities, nil
}

// Create inserts the draft and returns the row the backend wrote.
func (s *SupabaseStore) Create(ctx context.Context, draft lore.Draft) (lore.Entity, error) {
	if err := draft.Validate(); err != nil {
		return lore.Entity{}, err
	}
	creds, err := s.principal.Credentials(ctx)
	if err != nil {
		return lore.Entity{}, err
	}

	rest, call := s.client.Rest(ctx, creds.AccessToken)
	var rows []lore.Row
	_, err = rest.From(entitiesTable).
		Insert([]lore.Row{lore.RowFromDraft(draft)}, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return lore.Entity{}, classify("create entity", call.Err(err))
	}
	if len(rows) != 1 {
		return lore.Entity{}, fmt.Errorf("%w: create entity: expected 1 row back, got %d", lore.ErrQuery, len(rows))
	}
	e, err := rows[0].Entity()
	if err != nil {
		return lore.Entity{}, fmt.Errorf("%w: create entity: %w", lore.ErrQuery, err)
	}
	logging.Store("created %s %s", e.Kind(), e.ID)
	return e, nil
}

// Delete removes the entity by id.
func (s *SupabaseStore) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: entity id is required", lore.ErrValidation)
	}
	creds, err := s.principal.Credentials(ctx)
	if err != nil {
		return err
	}

	rest, call := s.client.Rest(ctx, creds.AccessToken)
	var rows []lore.Row
	_, err = rest.From(entitiesTable).
		Delete("representation", "").
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return classify("delete entity", call.Err(err))
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: entity %s", lore.ErrNotFound, id)
	}
	logging.Store("deleted entity %s", id)
	return nil
}

// classify maps a client error onto the lore taxonomy.
func classify(op string, err error) error {
	if supabase.IsTransport(err) {
		return fmt.Errorf("%w: %s: %w", lore.ErrStoreUnavailable, op, err)
	}
	apiErr, ok := supabase.AsAPIError(err)
	if !ok {
		return fmt.Errorf("%w: %s: %w", lore.ErrQuery, op, err)
	}
	switch {
	case apiErr.Status >= 500:
		return fmt.Errorf("%w: %s: %w", lore.ErrStoreUnavailable, op, apiErr)
	case apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden:
		return fmt.Errorf("%w: %s: %w", lore.ErrUnauthenticated, op, apiErr)
	case isConstraintViolation(apiErr):
		return fmt.Errorf("%w: %s: %w", lore.ErrValidation, op, apiErr)
	}
	return fmt.Errorf("%w: %s: %w", lore.ErrQuery, op, apiErr)
}

// isConstraintViolation reports Postgres integrity (23xxx) and data (22xxx)
// errors surfaced by PostgREST as client errors.
func isConstraintViolation(e *supabase.APIError) bool {
	switch e.Status {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
	default:
		return false
	}
	return strings.HasPrefix(e.Code, "23") || strings.HasPrefix(e.Code, "22")
}
