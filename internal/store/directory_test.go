package store

import (
	"context"
	"reflect"
	"testing"

	"github.com/roach88/csledger/internal/changesource"
)

// seedDirectory creates three sources: 1 owned by m-alpha, 2 owned by m-beta,
// 3 unowned.
func seedDirectory(t *testing.T, s *Store) {
	t.Helper()
	id1 := mustCreate(t, s, "git-poller-1")
	id2 := mustCreate(t, s, "svn-poller-2")
	mustCreate(t, s, "hg-poller-3")
	mustClaim(t, s, id1, "m-alpha")
	mustClaim(t, s, id2, "m-beta")
}

func TestListChangeSources_Filters(t *testing.T) {
	s := createTestStore(t)
	seedDirectory(t, s)

	all := []changesource.View{
		{ID: 1, Name: "git-poller-1", Owner: "m-alpha"},
		{ID: 2, Name: "svn-poller-2", Owner: "m-beta"},
		{ID: 3, Name: "hg-poller-3"},
	}

	tests := []struct {
		name   string
		filter changesource.Filter
		want   []changesource.View
	}{
		{"all", changesource.All{}, all},
		{"nil filter", nil, all},
		{"by id", changesource.ByID{ID: 2}, all[1:2]},
		{"by unknown id", changesource.ByID{ID: 9}, []changesource.View{}},
		{"by owner", changesource.ByOwner{Master: "m-alpha"}, all[0:1]},
		{"by unknown owner", changesource.ByOwner{Master: "m-gamma"}, []changesource.View{}},
		{"active", changesource.ByActive{Active: true}, all[0:2]},
		{"inactive", changesource.ByActive{Active: false}, all[2:3]},
		{"empty", changesource.Empty{}, []changesource.View{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListChangeSources(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("ListChangeSources() failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ListChangeSources(%#v) = %+v, want %+v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestListChangeSources_OwnerAndInactiveSkipsStore(t *testing.T) {
	s := createTestStore(t)
	seedDirectory(t, s)

	owner := changesource.MasterID("m-alpha")
	inactive := false
	filter := changesource.NewFilter(nil, &owner, &inactive)

	// A closed database proves the store is not consulted
	s.Close()

	got, err := s.ListChangeSources(context.Background(), filter)
	if err != nil {
		t.Fatalf("ListChangeSources() failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("owner+inactive = %+v, want empty", got)
	}
}

func TestListChangeSources_ClosedStoreUnavailable(t *testing.T) {
	s := createTestStore(t)
	s.Close()

	_, err := s.ListChangeSources(context.Background(), changesource.All{})
	if !changesource.IsStoreUnavailable(err) {
		t.Errorf("error = %v, want STORE_UNAVAILABLE", err)
	}
}

func TestListChangeSources_EmptyStoreNotNil(t *testing.T) {
	s := createTestStore(t)

	got, err := s.ListChangeSources(context.Background(), changesource.All{})
	if err != nil {
		t.Fatalf("ListChangeSources() failed: %v", err)
	}
	if got == nil {
		t.Error("ListChangeSources() returned nil, want empty slice")
	}
}

func TestGetChangeSource(t *testing.T) {
	s := createTestStore(t)
	seedDirectory(t, s)
	ctx := context.Background()

	v, ok, err := s.GetChangeSource(ctx, 3)
	if err != nil {
		t.Fatalf("GetChangeSource() failed: %v", err)
	}
	if !ok || v.Name != "hg-poller-3" || v.Active() {
		t.Errorf("GetChangeSource(3) = (%+v, %v), want unowned hg-poller-3", v, ok)
	}

	_, ok, err = s.GetChangeSource(ctx, 99)
	if err != nil {
		t.Fatalf("GetChangeSource() failed: %v", err)
	}
	if ok {
		t.Error("GetChangeSource(99) found a row")
	}
}

func TestOwnerAndInactiveDisjoint(t *testing.T) {
	s := createTestStore(t)
	seedDirectory(t, s)
	ctx := context.Background()

	owned, err := s.ListChangeSources(ctx, changesource.ByOwner{Master: "m-alpha"})
	if err != nil {
		t.Fatalf("ListChangeSources(ByOwner) failed: %v", err)
	}
	inactive, err := s.ListChangeSources(ctx, changesource.ByActive{Active: false})
	if err != nil {
		t.Fatalf("ListChangeSources(ByActive) failed: %v", err)
	}

	for _, o := range owned {
		for _, i := range inactive {
			if o.ID == i.ID {
				t.Errorf("change source %d is both owned by m-alpha and inactive", o.ID)
			}
		}
	}
}

// TestEndToEndScenario walks two masters through claim, contention and release.
func TestEndToEndScenario(t *testing.T) {
	stores := openMasters(t, 2)
	alpha, beta := stores[0], stores[1]
	ctx := context.Background()

	id1 := mustCreate(t, alpha, "git-poller-1")
	id2 := mustCreate(t, beta, "svn-poller-2")
	if id1 != 1 || id2 != 2 {
		t.Fatalf("ids = (%d, %d), want (1, 2)", id1, id2)
	}

	mustClaim(t, alpha, 1, "m-alpha")

	res, err := beta.ClaimChangeSource(ctx, 1, "m-beta")
	if err != nil || res != changesource.AlreadyClaimed {
		t.Fatalf("beta claim of 1 = (%v, %v), want already_claimed", res, err)
	}

	mustClaim(t, beta, 2, "m-beta")

	active, err := alpha.ListChangeSources(ctx, changesource.ByActive{Active: true})
	if err != nil {
		t.Fatalf("ListChangeSources(active) failed: %v", err)
	}
	wantActive := []changesource.View{
		{ID: 1, Name: "git-poller-1", Owner: "m-alpha"},
		{ID: 2, Name: "svn-poller-2", Owner: "m-beta"},
	}
	if !reflect.DeepEqual(active, wantActive) {
		t.Errorf("active = %+v, want %+v", active, wantActive)
	}

	if err := alpha.ReleaseChangeSource(ctx, 1); err != nil {
		t.Fatalf("ReleaseChangeSource() failed: %v", err)
	}

	inactive, err := beta.ListChangeSources(ctx, changesource.ByActive{Active: false})
	if err != nil {
		t.Fatalf("ListChangeSources(inactive) failed: %v", err)
	}
	wantInactive := []changesource.View{{ID: 1, Name: "git-poller-1"}}
	if !reflect.DeepEqual(inactive, wantInactive) {
		t.Errorf("inactive = %+v, want %+v", inactive, wantInactive)
	}
}
