// Package config loads the drafts a deployment serves and the league
// settings each one runs under.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/auctiondraft/go/internal/models"
)

// File is the on-disk shape of a drafts file.
type File struct {
	Drafts []DraftEntry `yaml:"drafts"`
}

type DraftEntry struct {
	DraftID uuid.UUID           `yaml:"draft_id"`
	League  models.LeagueConfig `yaml:"league"`
}

// Registry maps draft ids to their league configuration. It is read-only
// after loading.
type Registry struct {
	order   []uuid.UUID
	leagues map[uuid.UUID]models.LeagueConfig
}

// LoadDrafts reads and validates a drafts file.
func LoadDrafts(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read drafts file: %w", err)
	}
	return ParseDrafts(data)
}

func ParseDrafts(data []byte) (*Registry, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse drafts file: %w", err)
	}

	r := &Registry{leagues: make(map[uuid.UUID]models.LeagueConfig, len(f.Drafts))}
	var errs []error
	for i, d := range f.Drafts {
		if d.DraftID == uuid.Nil {
			errs = append(errs, fmt.Errorf("drafts[%d]: draft_id is required", i))
			continue
		}
		if _, dup := r.leagues[d.DraftID]; dup {
			errs = append(errs, fmt.Errorf("drafts[%d]: duplicate draft_id %s", i, d.DraftID))
			continue
		}
		league := d.League.WithDefaults()
		if err := league.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("drafts[%d] (%s): %w", i, d.DraftID, err))
			continue
		}
		r.order = append(r.order, d.DraftID)
		r.leagues[d.DraftID] = league
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// NewRegistry builds a registry in code, mostly for tests.
func NewRegistry(leagues map[uuid.UUID]models.LeagueConfig) *Registry {
	r := &Registry{leagues: make(map[uuid.UUID]models.LeagueConfig, len(leagues))}
	for id, l := range leagues {
		r.order = append(r.order, id)
		r.leagues[id] = l.WithDefaults()
	}
	return r
}

func (r *Registry) League(draftID uuid.UUID) (models.LeagueConfig, bool) {
	l, ok := r.leagues[draftID]
	return l, ok
}

// Drafts returns draft ids in file order.
func (r *Registry) Drafts() []uuid.UUID {
	return append([]uuid.UUID(nil), r.order...)
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration accepts Go duration strings such as "2s".
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
