package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/digesthq/feed-digest/internal/logger"
)

// SeedEntry is one digest definition in a seed file.
type SeedEntry struct {
	FeedURL          string   `yaml:"feed_url" json:"feed_url"`
	Name             string   `yaml:"name" json:"name"`
	Timezone         string   `yaml:"timezone" json:"timezone"`
	Filters          []string `yaml:"filters" json:"filters"`
	OnlyPriorToToday *bool    `yaml:"only_prior_to_today" json:"only_prior_to_today"`
	MaxDays          int      `yaml:"max_days" json:"max_days"`
}

type seedFile struct {
	Digests []SeedEntry `yaml:"digests" json:"digests"`
}

// Seed imports digests from a YAML or JSON file. Entries that collide with an
// existing digest are skipped, so seeding is safe to run on every start.
func (s *Store) Seed(path string, log logger.Logger) (int, error) {
	if log == nil {
		log = logger.NopLogger{}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading seed file: %w", err)
	}

	var file seedFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", ".json":
		// yaml.v3 handles JSON input as well.
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return 0, fmt.Errorf("parsing seed file: %w", err)
		}
	default:
		return 0, fmt.Errorf("unsupported seed file extension %q", ext)
	}

	created := 0
	for _, entry := range file.Digests {
		_, err := s.Create(CreateParams{
			FeedURL:          entry.FeedURL,
			Name:             entry.Name,
			Timezone:         entry.Timezone,
			Filters:          entry.Filters,
			OnlyPriorToToday: entry.OnlyPriorToToday,
			MaxDays:          entry.MaxDays,
		})
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				log.DebugObj("skipping seed entry", "reason", verr.Message)
				continue
			}
			return created, err
		}
		created++
	}

	return created, nil
}
