package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mapnav/navclient/internal/core/domain"
	"github.com/mapnav/navclient/internal/core/ports"
	"github.com/mapnav/navclient/internal/pkg/metrics"
	"github.com/mapnav/navclient/internal/pkg/telemetry"
)

// FavoriteMode names the backend currently authoritative for favorites.
type FavoriteMode string

const (
	FavoritesLocal  FavoriteMode = "local"
	FavoritesRemote FavoriteMode = "remote"
)

// FavoriteService keeps the in-memory favorites list in step with whichever
// backend the session selects. Every mutation runs its read-modify-write of
// the full list under one guard.
type FavoriteService struct {
	mu        sync.Mutex
	remote    ports.FavoritesService
	cache     ports.FavoritesCache
	session   *Session
	publisher ports.EventPublisher

	items []domain.FavoriteLocation
	mode  FavoriteMode
	// partial marks a remote list that missed a refresh; the next remote
	// mutation or Load fetches it again.
	partial bool
	newID   func() string
}

// NewFavoriteService creates a FavoriteService. publisher may be nil.
func NewFavoriteService(remote ports.FavoritesService, cache ports.FavoritesCache, session *Session, publisher ports.EventPublisher) *FavoriteService {
	return &FavoriteService{
		remote:    remote,
		cache:     cache,
		session:   session,
		publisher: publisher,
		mode:      FavoritesLocal,
		newID:     uuid.NewString,
	}
}

// List returns the in-memory favorites.
func (s *FavoriteService) List() []domain.FavoriteLocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.FavoriteLocation(nil), s.items...)
}

// Mode reports the backend the list was last loaded from.
func (s *FavoriteService) Mode() FavoriteMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Get returns one favorite by id.
func (s *FavoriteService) Get(id string) (domain.FavoriteLocation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.items {
		if f.ID == id {
			return f, true
		}
	}
	return domain.FavoriteLocation{}, false
}

// Load replaces memory with the authoritative list. A rejected token makes
// the local cache authoritative and revokes the session.
func (s *FavoriteService) Load(ctx context.Context) ([]domain.FavoriteLocation, error) {
	ctx, span := telemetry.Start(ctx, telemetry.SpanFavoritesSync)
	defer span.End()

	token, authed := s.session.Token()

	s.mu.Lock()
	items, err := s.loadLocked(ctx, token, authed)
	out := append([]domain.FavoriteLocation(nil), s.items...)
	mode := s.mode
	s.mu.Unlock()

	span.SetAttributes(attribute.String("favorites.mode", string(mode)))

	if errors.Is(err, domain.ErrUnauthorized) {
		s.session.Revoke(ctx, token)
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *FavoriteService) loadLocked(ctx context.Context, token string, authed bool) ([]domain.FavoriteLocation, error) {
	if authed {
		list, err := s.remote.List(ctx, token)
		switch {
		case err == nil:
			s.items, s.mode, s.partial = list, FavoritesRemote, false
			return append([]domain.FavoriteLocation(nil), list...), nil
		case errors.Is(err, domain.ErrUnauthorized):
			if lerr := s.loadCacheLocked(ctx); lerr != nil {
				slog.Warn("favorites cache unreadable after auth failure", "error", lerr)
			}
			return nil, err
		default:
			return nil, fmt.Errorf("load remote favorites: %w", err)
		}
	}
	if err := s.loadCacheLocked(ctx); err != nil {
		return nil, err
	}
	return append([]domain.FavoriteLocation(nil), s.items...), nil
}

func (s *FavoriteService) loadCacheLocked(ctx context.Context) error {
	list, err := s.cache.Load(ctx)
	if err != nil {
		return fmt.Errorf("load favorites cache: %w", err)
	}
	s.items, s.mode, s.partial = list, FavoritesLocal, false
	return nil
}

// Add saves a candidate in the authoritative backend. On any failure memory
// is left unchanged.
func (s *FavoriteService) Add(ctx context.Context, c domain.FavoriteCandidate) (*domain.FavoriteLocation, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	token, authed := s.session.Token()

	s.mu.Lock()
	var (
		fav *domain.FavoriteLocation
		err error
	)
	mode := FavoritesLocal
	if authed {
		mode = FavoritesRemote
		fav, err = s.addRemoteLocked(ctx, token, c)
	} else {
		fav, err = s.addLocalLocked(ctx, c)
	}
	s.mu.Unlock()

	s.observe("add", mode, err)
	if errors.Is(err, domain.ErrUnauthorized) {
		s.session.Revoke(ctx, token)
	}
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, domain.NewEvent(domain.EventFavoriteAdded, map[string]any{
		"id": fav.ID, "name": fav.Name, "mode": string(mode),
	}))
	return fav, nil
}

func (s *FavoriteService) addRemoteLocked(ctx context.Context, token string, c domain.FavoriteCandidate) (*domain.FavoriteLocation, error) {
	created, err := s.remote.Create(ctx, token, c)
	if err != nil {
		return nil, err
	}
	if s.refreshRemoteLocked(ctx, token) {
		return created, nil
	}
	s.items = append(without(s.items, created.ID), *created)
	return created, nil
}

// refreshRemoteLocked reloads the remote list when memory does not mirror it.
// It reports whether memory now holds the full remote list. When the reload
// fails memory keeps only remote entries and is flagged partial.
func (s *FavoriteService) refreshRemoteLocked(ctx context.Context, token string) bool {
	if s.mode == FavoritesRemote && !s.partial {
		return false
	}
	list, err := s.remote.List(ctx, token)
	if err != nil {
		slog.Warn("refresh remote favorites", "error", err)
		if s.mode != FavoritesRemote {
			s.items = nil
		}
		s.mode, s.partial = FavoritesRemote, true
		return false
	}
	s.items, s.mode, s.partial = list, FavoritesRemote, false
	return true
}

// Partial reports whether the remote list could not be refreshed after a
// mutation and only holds the entries changed since.
func (s *FavoriteService) Partial() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partial
}

func (s *FavoriteService) addLocalLocked(ctx context.Context, c domain.FavoriteCandidate) (*domain.FavoriteLocation, error) {
	current, err := s.cache.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load favorites cache: %w", err)
	}
	for _, f := range current {
		if strings.EqualFold(f.Name, c.Name) {
			return nil, fmt.Errorf("%w: %q", domain.ErrDuplicateName, f.Name)
		}
	}

	fav := domain.FavoriteLocation{
		ID:       s.newID(),
		Name:     c.Name,
		Address:  c.Address,
		Location: c.Location,
		Tag:      c.Tag,
	}
	next := append(append([]domain.FavoriteLocation(nil), current...), fav)
	if err := s.cache.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("save favorites cache: %w", err)
	}
	s.items, s.mode, s.partial = next, FavoritesLocal, false
	return &fav, nil
}

// Remove deletes a favorite. Deleting an id the backend no longer knows is
// treated as success.
func (s *FavoriteService) Remove(ctx context.Context, id string) error {
	token, authed := s.session.Token()

	s.mu.Lock()
	var err error
	mode := FavoritesLocal
	if authed {
		mode = FavoritesRemote
		err = s.removeRemoteLocked(ctx, token, id)
	} else {
		err = s.removeLocalLocked(ctx, id)
	}
	s.mu.Unlock()

	s.observe("remove", mode, err)
	if errors.Is(err, domain.ErrUnauthorized) {
		s.session.Revoke(ctx, token)
	}
	if err != nil {
		return err
	}
	publish(ctx, s.publisher, domain.NewEvent(domain.EventFavoriteRemoved, map[string]any{
		"id": id, "mode": string(mode),
	}))
	return nil
}

func (s *FavoriteService) removeRemoteLocked(ctx context.Context, token, id string) error {
	if err := s.remote.Delete(ctx, token, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if s.refreshRemoteLocked(ctx, token) {
		return nil
	}
	s.items = without(s.items, id)
	return nil
}

func (s *FavoriteService) removeLocalLocked(ctx context.Context, id string) error {
	current, err := s.cache.Load(ctx)
	if err != nil {
		return fmt.Errorf("load favorites cache: %w", err)
	}
	next := without(current, id)
	if len(next) != len(current) {
		if err := s.cache.Save(ctx, next); err != nil {
			return fmt.Errorf("save favorites cache: %w", err)
		}
	}
	s.items, s.mode, s.partial = next, FavoritesLocal, false
	return nil
}

func (s *FavoriteService) observe(op string, mode FavoriteMode, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(domain.Classify(err))
	}
	metrics.FavoriteOps.WithLabelValues(op, string(mode), outcome).Inc()
}

func without(list []domain.FavoriteLocation, id string) []domain.FavoriteLocation {
	out := make([]domain.FavoriteLocation, 0, len(list))
	for _, f := range list {
		if f.ID != id {
			out = append(out, f)
		}
	}
	return out
}
