package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/eventforge/eventforge/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	PostgresURL string `env:"POSTGRES_URL,required"`
	RedisAddr   string `env:"REDIS_ADDR,required"`

	// Partition names the aggregate this deployment serves; one deployment
	// owns one partition end to end.
	Partition string `env:"PARTITION" envDefault:"default"`

	// Collection cadence and normalization window.
	RefreshCron      string        `env:"REFRESH_CRON" envDefault:"0 */4 * * *"`
	RetentionDays    int           `env:"RETENTION_DAYS" envDefault:"30"`
	HorizonDays      int           `env:"HORIZON_DAYS" envDefault:"365"`
	DisplayTimezone  string        `env:"DISPLAY_TIMEZONE" envDefault:"America/New_York"`
	FeedFetchTimeout time.Duration `env:"FEED_FETCH_TIMEOUT" envDefault:"30s"`
	FeedCacheDir     string        `env:"FEED_CACHE_DIR" envDefault:"/var/lib/eventforge/feedcache"`
	FeedRatePerSec   float64       `env:"FEED_RATE_PER_SEC" envDefault:"2"`

	// Change dispatch and signal coalescing.
	CoalesceWindow   time.Duration `env:"COALESCE_WINDOW" envDefault:"60s"`
	DispatchInterval time.Duration `env:"DISPATCH_INTERVAL" envDefault:"5s"`
	ReplayInterval   time.Duration `env:"REPLAY_INTERVAL" envDefault:"60s"`
	JournalDir       string        `env:"JOURNAL_DIR" envDefault:"/var/lib/eventforge/journal"`
	JournalSegment   int64         `env:"JOURNAL_SEGMENT_SIZE_BYTES" envDefault:"10485760"`  // 10MB
	JournalMaxSize   int64         `env:"JOURNAL_MAX_DISK_SIZE_BYTES" envDefault:"104857600"` // 100MB

	// Rebuild worker.
	ConsumerGroup  string        `env:"CONSUMER_GROUP" envDefault:"rebuild-workers"`
	RebuildTimeout time.Duration `env:"REBUILD_TIMEOUT" envDefault:"900s"`
	LeaseTimeout   time.Duration `env:"LEASE_TIMEOUT" envDefault:"900s"`
	MaxReceives    int64         `env:"MAX_RECEIVES" envDefault:"3"`

	// Publish targets.
	StaticArtifactDir  string `env:"STATIC_ARTIFACT_DIR" envDefault:"/var/lib/eventforge/static"`
	CacheInvalidateURL string `env:"CACHE_INVALIDATE_URL"`

	// HTTP surface.
	APIServerAddr   string        `env:"API_SERVER_ADDR" envDefault:":8080"`
	AdminServerAddr string        `env:"ADMIN_SERVER_ADDR" envDefault:":9091"`
	APIKeyCacheTTL  time.Duration `env:"API_KEY_CACHE_TTL" envDefault:"5m"`

	// GroupSeedPath points to an optional YAML file of feed groups loaded
	// at collector startup.
	GroupSeedPath string `env:"GROUP_SEED_PATH"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Retention returns the retention window as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Horizon returns the forward horizon as a duration.
func (c *Config) Horizon() time.Duration {
	return time.Duration(c.HorizonDays) * 24 * time.Hour
}

// Location resolves the display timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type groupSeed struct {
	Groups []struct {
		ID         string   `yaml:"id"`
		Name       string   `yaml:"name"`
		FeedURL    string   `yaml:"feed_url"`
		Categories []string `yaml:"categories"`
		Active     *bool    `yaml:"active"`
		Timezone   string   `yaml:"timezone"`
	} `yaml:"groups"`
}

// LoadGroupSeed parses a YAML group seed file into domain groups. Groups
// without an explicit active flag default to active.
func LoadGroupSeed(path string) ([]domain.Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read group seed %s: %w", path, err)
	}

	var seed groupSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse group seed %s: %w", path, err)
	}

	groups := make([]domain.Group, 0, len(seed.Groups))
	for _, g := range seed.Groups {
		if g.ID == "" || g.FeedURL == "" {
			return nil, fmt.Errorf("group seed %s: every group needs an id and feed_url", path)
		}
		active := true
		if g.Active != nil {
			active = *g.Active
		}
		groups = append(groups, domain.Group{
			ID:         g.ID,
			Name:       g.Name,
			FeedURL:    g.FeedURL,
			Categories: g.Categories,
			Active:     active,
			Timezone:   g.Timezone,
			UpdatedAt:  time.Now().UTC(),
		})
	}
	return groups, nil
}
