// Package merchants canonicalizes store names. Receipt headers print the
// same chain in many forms ("ALDI SUED", "Aldi Süd GmbH"); an alias file
// maps them onto one canonical name so price history lines up.
package merchants

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"fhartmann/bonscan/internal/matcher"
)

var log = logrus.New()

// SetLogger allows setting a configured logger for this package.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// aliasFile is the on-disk format: canonical name to alias list.
type aliasFile struct {
	Merchants []struct {
		Name    string   `yaml:"name"`
		Aliases []string `yaml:"aliases"`
	} `yaml:"merchants"`
}

// Aliases resolves raw merchant names to canonical ones.
type Aliases struct {
	byNormalized map[string]string
}

// Load reads an alias file. A missing file yields an empty resolver, not
// an error.
func Load(path string) (*Aliases, error) {
	a := &Aliases{byNormalized: map[string]string{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return a, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading alias file: %w", err)
	}

	var file aliasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing alias file: %w", err)
	}

	for _, m := range file.Merchants {
		a.byNormalized[matcher.Normalize(m.Name)] = m.Name
		for _, alias := range m.Aliases {
			a.byNormalized[matcher.Normalize(alias)] = m.Name
		}
	}
	log.WithField("merchants", len(file.Merchants)).Debug("Loaded merchant aliases")
	return a, nil
}

// Canonical returns the canonical name for raw, or raw unchanged when no
// alias matches.
func (a *Aliases) Canonical(raw string) string {
	if a == nil || raw == "" {
		return raw
	}
	if name, ok := a.byNormalized[matcher.Normalize(raw)]; ok {
		return name
	}
	return raw
}
