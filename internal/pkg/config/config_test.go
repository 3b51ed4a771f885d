package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "groups.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write seed file: %v", err)
	}
	return path
}

func TestLoadGroupSeed(t *testing.T) {
	path := writeSeed(t, `
groups:
  - id: gophers-nyc
    name: Gophers NYC
    feed_url: https://example.com/gophers.ics
    categories: [community, go]
  - id: paused-group
    feed_url: https://example.com/paused.ics
    active: false
`)

	groups, err := LoadGroupSeed(path)
	if err != nil {
		t.Fatalf("LoadGroupSeed() error = %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}

	if !groups[0].Active {
		t.Error("group without an active flag should default to active")
	}
	if len(groups[0].Categories) != 2 {
		t.Errorf("categories = %v, want 2", groups[0].Categories)
	}
	if groups[1].Active {
		t.Error("explicitly paused group loaded as active")
	}
}

func TestLoadGroupSeedRejectsMissingFeedURL(t *testing.T) {
	path := writeSeed(t, `
groups:
  - id: broken
    name: No Feed
`)

	if _, err := LoadGroupSeed(path); err == nil {
		t.Error("LoadGroupSeed() error = nil, want missing feed_url rejected")
	}
}

func TestLoadGroupSeedMissingFile(t *testing.T) {
	if _, err := LoadGroupSeed(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadGroupSeed() error = nil, want read failure surfaced")
	}
}
