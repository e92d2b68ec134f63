package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mapnav/navclient/internal/core/domain"
	"github.com/mapnav/navclient/internal/core/usecases"
)

func TestFavoriteService_Local_RejectsCaseInsensitiveDuplicate(t *testing.T) {
	cache := &memFavoritesCache{items: []domain.FavoriteLocation{
		{ID: "1", Name: "home", Location: kizilay},
	}}
	svc := usecases.NewFavoriteService(&mockFavoritesRemote{}, cache, usecases.NewSession(nil, nil), nil)
	if _, err := svc.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	_, err := svc.Add(context.Background(), domain.FavoriteCandidate{Name: "Home", Location: ulus})
	if !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
	if cache.saves != 0 {
		t.Errorf("cache must not be written on rejection, got %d saves", cache.saves)
	}
	if n := len(svc.List()); n != 1 {
		t.Errorf("expected 1 favorite in memory, got %d", n)
	}
}

func TestFavoriteService_Local_AddPersistsFullList(t *testing.T) {
	cache := &memFavoritesCache{items: []domain.FavoriteLocation{
		{ID: "1", Name: "Work", Location: kizilay},
	}}
	svc := usecases.NewFavoriteService(&mockFavoritesRemote{}, cache, usecases.NewSession(nil, nil), nil)

	fav, err := svc.Add(context.Background(), domain.FavoriteCandidate{Name: "  Gym ", Address: "Tunalı", Location: ulus})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fav.ID == "" {
		t.Error("expected generated id")
	}
	if fav.Name != "Gym" {
		t.Errorf("expected trimmed name, got %q", fav.Name)
	}
	if len(cache.items) != 2 {
		t.Fatalf("expected 2 cached favorites, got %d", len(cache.items))
	}
	if len(svc.List()) != 2 {
		t.Errorf("memory and cache diverged: %d vs %d", len(svc.List()), len(cache.items))
	}
	if svc.Mode() != usecases.FavoritesLocal {
		t.Errorf("expected local mode, got %s", svc.Mode())
	}
}

func TestFavoriteService_Local_SaveFailureLeavesMemoryUnchanged(t *testing.T) {
	cache := &memFavoritesCache{saveErr: errors.New("disk full")}
	svc := usecases.NewFavoriteService(&mockFavoritesRemote{}, cache, usecases.NewSession(nil, nil), nil)

	if _, err := svc.Add(context.Background(), domain.FavoriteCandidate{Name: "Home", Location: kizilay}); err == nil {
		t.Fatal("expected error")
	}
	if n := len(svc.List()); n != 0 {
		t.Errorf("expected empty memory, got %d", n)
	}
}

func TestFavoriteService_RejectsOutOfBounds(t *testing.T) {
	svc := usecases.NewFavoriteService(&mockFavoritesRemote{}, &memFavoritesCache{}, usecases.NewSession(nil, nil), nil)
	_, err := svc.Add(context.Background(), domain.FavoriteCandidate{Name: "Istanbul", Location: domain.Coordinate{Lat: 41.0, Lng: 28.97}})
	if !errors.Is(err, domain.ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds, got %v", err)
	}
}

func TestFavoriteService_Remote_AddAdoptsServerID(t *testing.T) {
	remote := &mockFavoritesRemote{
		listFn: func(ctx context.Context, token string) ([]domain.FavoriteLocation, error) {
			if token != "tok" {
				t.Errorf("expected token 'tok', got %q", token)
			}
			return []domain.FavoriteLocation{{ID: "7", Name: "Work", Location: kizilay}}, nil
		},
		createFn: func(ctx context.Context, token string, c domain.FavoriteCandidate) (*domain.FavoriteLocation, error) {
			return &domain.FavoriteLocation{ID: "42", Name: c.Name, Location: c.Location}, nil
		},
	}
	cache := &memFavoritesCache{}
	svc := usecases.NewFavoriteService(remote, cache, authedSession("tok"), nil)
	if _, err := svc.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	fav, err := svc.Add(context.Background(), domain.FavoriteCandidate{Name: "Home", Location: ulus})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fav.ID != "42" {
		t.Errorf("expected server id 42, got %s", fav.ID)
	}
	if _, ok := svc.Get("42"); !ok {
		t.Error("expected new favorite in memory")
	}
	if cache.saves != 0 {
		t.Error("remote mode must not touch the local cache")
	}
}

func TestFavoriteService_Remote_DuplicateLeavesMemoryUnchanged(t *testing.T) {
	remote := &mockFavoritesRemote{
		listFn: func(ctx context.Context, token string) ([]domain.FavoriteLocation, error) {
			return []domain.FavoriteLocation{{ID: "7", Name: "Home", Location: kizilay}}, nil
		},
		createFn: func(ctx context.Context, token string, c domain.FavoriteCandidate) (*domain.FavoriteLocation, error) {
			return nil, domain.ErrDuplicateName
		},
	}
	svc := usecases.NewFavoriteService(remote, &memFavoritesCache{}, authedSession("tok"), nil)
	_, _ = svc.Load(context.Background())

	_, err := svc.Add(context.Background(), domain.FavoriteCandidate{Name: "Home", Location: ulus})
	if !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
	if n := len(svc.List()); n != 1 {
		t.Errorf("expected memory unchanged (1), got %d", n)
	}
}

func TestFavoriteService_Remote_DoubleDeleteIsIdempotent(t *testing.T) {
	deleted := map[string]bool{}
	remote := &mockFavoritesRemote{
		listFn: func(ctx context.Context, token string) ([]domain.FavoriteLocation, error) {
			return []domain.FavoriteLocation{{ID: "7", Name: "Home", Location: kizilay}}, nil
		},
		deleteFn: func(ctx context.Context, token, id string) error {
			if deleted[id] {
				return domain.ErrNotFound
			}
			deleted[id] = true
			return nil
		},
	}
	svc := usecases.NewFavoriteService(remote, &memFavoritesCache{}, authedSession("tok"), nil)
	_, _ = svc.Load(context.Background())

	if err := svc.Remove(context.Background(), "7"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := svc.Remove(context.Background(), "7"); err != nil {
		t.Fatalf("second delete must succeed, got %v", err)
	}
	if n := len(svc.List()); n != 0 {
		t.Errorf("expected empty list, got %d", n)
	}
}

func TestFavoriteService_Remote_AddSucceedsWhenRefreshFails(t *testing.T) {
	var (
		stored  []domain.FavoriteLocation
		listErr = domain.ErrUnavailable
	)
	remote := &mockFavoritesRemote{
		listFn: func(ctx context.Context, token string) ([]domain.FavoriteLocation, error) {
			if listErr != nil {
				return nil, listErr
			}
			return append([]domain.FavoriteLocation(nil), stored...), nil
		},
		createFn: func(ctx context.Context, token string, c domain.FavoriteCandidate) (*domain.FavoriteLocation, error) {
			for _, f := range stored {
				if f.Name == c.Name {
					return nil, domain.ErrDuplicateName
				}
			}
			f := domain.FavoriteLocation{ID: fmt.Sprintf("srv-%d", len(stored)+1), Name: c.Name, Location: c.Location}
			stored = append(stored, f)
			return &f, nil
		},
	}
	cache := &memFavoritesCache{items: []domain.FavoriteLocation{{ID: "c1", Name: "Cached", Location: kizilay}}}
	svc := usecases.NewFavoriteService(remote, cache, authedSession("tok"), nil)
	if _, err := svc.Load(context.Background()); err == nil {
		t.Fatal("expected load to fail while the remote list is unavailable")
	}

	fav, err := svc.Add(context.Background(), domain.FavoriteCandidate{Name: "Home", Location: ulus})
	if err != nil {
		t.Fatalf("add must succeed once the remote accepted it, got %v", err)
	}
	list := svc.List()
	if len(list) != 1 || list[0].ID != fav.ID {
		t.Fatalf("memory should hold only the remote entry, got %+v", list)
	}
	if svc.Mode() != usecases.FavoritesRemote || !svc.Partial() {
		t.Errorf("mode=%s partial=%v, want remote and partial", svc.Mode(), svc.Partial())
	}

	listErr = nil
	if _, err := svc.Add(context.Background(), domain.FavoriteCandidate{Name: "Work", Location: kizilay}); err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(svc.List()) != len(stored) || svc.Partial() {
		t.Errorf("memory %d vs remote %d, partial=%v", len(svc.List()), len(stored), svc.Partial())
	}
	if cache.saves != 0 {
		t.Error("remote mode must not touch the local cache")
	}
}

func TestFavoriteService_Remote_RemoveSucceedsWhenRefreshFails(t *testing.T) {
	var deleted []string
	remote := &mockFavoritesRemote{
		listFn: func(ctx context.Context, token string) ([]domain.FavoriteLocation, error) {
			return nil, domain.ErrUnavailable
		},
		deleteFn: func(ctx context.Context, token, id string) error {
			deleted = append(deleted, id)
			return nil
		},
	}
	svc := usecases.NewFavoriteService(remote, &memFavoritesCache{}, authedSession("tok"), nil)
	_, _ = svc.Load(context.Background())

	fav, err := svc.Add(context.Background(), domain.FavoriteCandidate{Name: "Home", Location: ulus})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Remove(context.Background(), fav.ID); err != nil {
		t.Fatalf("remove must succeed once the remote deleted it, got %v", err)
	}
	if len(deleted) != 1 || deleted[0] != fav.ID {
		t.Errorf("deleted = %v", deleted)
	}
	if n := len(svc.List()); n != 0 {
		t.Errorf("expected empty memory, got %d", n)
	}
	if !svc.Partial() {
		t.Error("expected partial list after a failed refresh")
	}
}

func TestFavoriteService_Load_UnauthorizedFallsBackToCache(t *testing.T) {
	notifier := &recordingNotifier{}
	session := usecases.NewSession(notifier, nil)
	session.SetToken(context.Background(), "stale")

	remote := &mockFavoritesRemote{
		listFn: func(ctx context.Context, token string) ([]domain.FavoriteLocation, error) {
			return nil, domain.ErrUnauthorized
		},
	}
	cache := &memFavoritesCache{items: []domain.FavoriteLocation{{ID: "c1", Name: "Cached", Location: kizilay}}}
	svc := usecases.NewFavoriteService(remote, cache, session, nil)

	list, err := svc.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].ID != "c1" {
		t.Errorf("expected cached favorites, got %+v", list)
	}
	if svc.Mode() != usecases.FavoritesLocal {
		t.Errorf("expected local mode, got %s", svc.Mode())
	}
	if session.Authenticated() {
		t.Error("expected token to be revoked")
	}
	if notifier.count() != 1 {
		t.Errorf("expected one re-auth notice, got %d", notifier.count())
	}
}

func TestFavoriteService_Load_TransientErrorKeepsMemory(t *testing.T) {
	calls := 0
	remote := &mockFavoritesRemote{
		listFn: func(ctx context.Context, token string) ([]domain.FavoriteLocation, error) {
			calls++
			if calls > 1 {
				return nil, domain.ErrUnavailable
			}
			return []domain.FavoriteLocation{{ID: "7", Name: "Home", Location: kizilay}}, nil
		},
	}
	svc := usecases.NewFavoriteService(remote, &memFavoritesCache{}, authedSession("tok"), nil)
	_, _ = svc.Load(context.Background())

	if _, err := svc.Load(context.Background()); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if n := len(svc.List()); n != 1 {
		t.Errorf("expected previous list kept, got %d", n)
	}
}

func TestFavoriteService_SessionChangeReloadsFromNewBackend(t *testing.T) {
	session := usecases.NewSession(nil, nil)
	remote := &mockFavoritesRemote{
		listFn: func(ctx context.Context, token string) ([]domain.FavoriteLocation, error) {
			return []domain.FavoriteLocation{{ID: "r1", Name: "Remote", Location: kizilay}}, nil
		},
	}
	cache := &memFavoritesCache{items: []domain.FavoriteLocation{{ID: "l1", Name: "Local", Location: ulus}}}
	svc := usecases.NewFavoriteService(remote, cache, session, nil)
	session.OnChange(func(ctx context.Context, change usecases.SessionChange) {
		_, _ = svc.Load(ctx)
	})

	_, _ = svc.Load(context.Background())
	if got := svc.List(); len(got) != 1 || got[0].ID != "l1" {
		t.Fatalf("expected local list before login, got %+v", got)
	}

	session.SetToken(context.Background(), "tok")
	if got := svc.List(); len(got) != 1 || got[0].ID != "r1" {
		t.Fatalf("expected remote list after login, got %+v", got)
	}

	session.Clear(context.Background())
	if got := svc.List(); len(got) != 1 || got[0].ID != "l1" {
		t.Fatalf("expected local list after logout, got %+v", got)
	}
}
