package usecase

import (
	"context"
	"testing"

	"github.com/eventforge/eventforge/internal/domain"
	"github.com/eventforge/eventforge/internal/domain/mocks"
)

func TestSeedGroupsPreservesPausedState(t *testing.T) {
	groups := mocks.NewMockGroupRepository()
	groups.Groups["g1"] = domain.Group{
		ID:      "g1",
		Name:    "Gophers NYC",
		FeedURL: "https://example.com/old.ics",
		Active:  false, // paused through the admin API
	}

	seed := []domain.Group{
		{ID: "g1", Name: "Gophers NYC", FeedURL: "https://example.com/new.ics", Active: true},
		{ID: "g2", Name: "Rustaceans", FeedURL: "https://example.com/rust.ics", Active: true},
	}

	if err := SeedGroups(context.Background(), groups, seed, newTestLogger()); err != nil {
		t.Fatalf("SeedGroups() error = %v", err)
	}

	g1 := groups.Groups["g1"]
	if g1.Active {
		t.Error("reseeding re-activated a paused group")
	}
	if g1.FeedURL != "https://example.com/new.ics" {
		t.Errorf("feed url = %q, want the seed file's value applied", g1.FeedURL)
	}

	g2, ok := groups.Groups["g2"]
	if !ok {
		t.Fatal("new seed group was not created")
	}
	if !g2.Active {
		t.Error("newly seeded group should start active")
	}
}
