package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Seed is a YAML list of challenges to preload:
//
//	challenges:
//	  - title: Square
//	    image_url: https://example.com/square.png
type Seed struct {
	Challenges []SeedChallenge `yaml:"challenges"`
}

type SeedChallenge struct {
	Title    string `yaml:"title"`
	ImageURL string `yaml:"image_url"`
}

// ParseSeed decodes and validates a seed document.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing seed: %w", err)
	}
	for i, c := range seed.Challenges {
		if strings.TrimSpace(c.Title) == "" {
			return nil, fmt.Errorf("seed challenge %d has no title", i+1)
		}
	}
	return &seed, nil
}

// LoadSeedFile reads a seed document from disk.
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return ParseSeed(data)
}

// ApplySeed creates every seed challenge whose title is not already present
// and returns how many were created.
func ApplySeed(ctx context.Context, store Store, seed *Seed) (int, error) {
	existing, err := store.ListChallenges(ctx)
	if err != nil {
		return 0, err
	}
	titles := make(map[string]bool, len(existing))
	for _, c := range existing {
		titles[c.Title] = true
	}

	created := 0
	for _, sc := range seed.Challenges {
		title := strings.TrimSpace(sc.Title)
		if titles[title] {
			continue
		}
		c := &Challenge{ID: uuid.NewString(), Title: title, ImageURL: sc.ImageURL}
		if err := store.CreateChallenge(ctx, c); err != nil {
			return created, fmt.Errorf("creating %q: %w", title, err)
		}
		titles[title] = true
		created++
	}
	return created, nil
}
