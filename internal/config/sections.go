package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/alfredjeanlab/agreements/internal/model"
)

// sectionsFile is the on-disk shape of a sections file:
//
//	[[section]]
//	id = "section-posting"
//	title = "Posting an Auction"
//	body = "..."
type sectionsFile struct {
	Section []struct {
		ID    string `toml:"id"`
		Title string `toml:"title"`
		Body  string `toml:"body"`
	} `toml:"section"`
}

// LoadSections returns the built-in sections when path is empty, otherwise
// the sections declared in the TOML file at path. Ordinals follow file order.
func LoadSections(path string) ([]model.Section, error) {
	if path == "" {
		return model.DefaultSections(), nil
	}

	var f sectionsFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("reading sections file %s: %w", path, err)
	}
	if len(f.Section) == 0 {
		return nil, fmt.Errorf("sections file %s: no [[section]] entries", path)
	}

	seen := make(map[string]bool, len(f.Section))
	sections := make([]model.Section, 0, len(f.Section))
	for i, s := range f.Section {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return nil, fmt.Errorf("sections file %s: section %d has no id", path, i+1)
		}
		if seen[id] {
			return nil, fmt.Errorf("sections file %s: duplicate section id %q", path, id)
		}
		seen[id] = true
		sections = append(sections, model.Section{
			ID:      id,
			Ordinal: i + 1,
			Title:   s.Title,
			Body:    strings.TrimSpace(s.Body),
		})
	}
	return sections, nil
}
