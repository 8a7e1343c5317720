package persona

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"clone-llm/internal/domain"
)

// descriptor mirrors the on-disk persona document shape. Required fields
// are identity.name, personality, communication_style (§4.9).
type descriptor struct {
	Identity struct {
		Name      string `yaml:"name"`
		Archetype string `yaml:"archetype"`
		Bio       string `yaml:"bio"`
	} `yaml:"identity"`
	Personality struct {
		Openness          int `yaml:"openness"`
		Conscientiousness int `yaml:"conscientiousness"`
		Extraversion      int `yaml:"extraversion"`
		Agreeableness     int `yaml:"agreeableness"`
		Neuroticism       int `yaml:"neuroticism"`
	} `yaml:"personality"`
	CommunicationStyle string `yaml:"communication_style"`
	Voice              string `yaml:"voice"`
	Knowledge          []string `yaml:"knowledge"`
}

// Loader loads persona descriptors from a directory of YAML documents, one
// file per persona named `<persona_id>.yaml`. No runtime hot-swap: Reload
// is an explicit operation, matching §4.9.
type Loader struct {
	dir string

	mu       sync.RWMutex
	personas map[string]domain.Persona
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir, personas: make(map[string]domain.Persona)}
}

// Reload re-reads every *.yaml file in the persona directory, replacing the
// in-memory set atomically. A malformed file fails the whole reload so a
// partial, inconsistent persona set never becomes visible.
func (l *Loader) Reload() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("persona loader: read dir %s: %w", l.dir, err)
	}

	loaded := make(map[string]domain.Persona, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		personaID := strings.TrimSuffix(entry.Name(), ".yaml")
		p, err := l.loadOne(personaID, filepath.Join(l.dir, entry.Name()))
		if err != nil {
			return err
		}
		loaded[personaID] = p
	}

	l.mu.Lock()
	l.personas = loaded
	l.mu.Unlock()
	return nil
}

func (l *Loader) loadOne(personaID, path string) (domain.Persona, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Persona{}, fmt.Errorf("persona loader: read %s: %w", path, err)
	}

	var d descriptor
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return domain.Persona{}, fmt.Errorf("persona loader: parse %s: %w", path, err)
	}

	if strings.TrimSpace(d.Identity.Name) == "" {
		return domain.Persona{}, fmt.Errorf("persona loader: %s: missing identity.name", personaID)
	}
	if d.Personality == (struct {
		Openness          int `yaml:"openness"`
		Conscientiousness int `yaml:"conscientiousness"`
		Extraversion      int `yaml:"extraversion"`
		Agreeableness     int `yaml:"agreeableness"`
		Neuroticism       int `yaml:"neuroticism"`
	}{}) {
		return domain.Persona{}, fmt.Errorf("persona loader: %s: missing personality block", personaID)
	}
	if strings.TrimSpace(d.CommunicationStyle) == "" {
		return domain.Persona{}, fmt.Errorf("persona loader: %s: missing communication_style", personaID)
	}

	return domain.Persona{
		ID:                 personaID,
		Name:               d.Identity.Name,
		Bio:                d.Identity.Bio,
		Archetype:          d.Identity.Archetype,
		CommunicationStyle: d.CommunicationStyle,
		Voice:              d.Voice,
		Knowledge:          d.Knowledge,
		Big5: domain.Big5Profile{
			Openness:          d.Personality.Openness,
			Conscientiousness: d.Personality.Conscientiousness,
			Extraversion:      d.Personality.Extraversion,
			Agreeableness:     d.Personality.Agreeableness,
			Neuroticism:       d.Personality.Neuroticism,
		},
		LoadedAt: time.Now().UTC(),
	}, nil
}

// Get returns a previously-loaded persona by ID.
func (l *Loader) Get(personaID string) (domain.Persona, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.personas[personaID]
	return p, ok
}

// All returns every currently-loaded persona.
func (l *Loader) All() []domain.Persona {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Persona, 0, len(l.personas))
	for _, p := range l.personas {
		out = append(out, p)
	}
	return out
}
