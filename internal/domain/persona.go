package domain

import "time"

// Persona is a statically authored character definition loaded from a YAML
// descriptor (see internal/persona), not a database row.
type Persona struct {
	ID                 string      `yaml:"id" json:"id"`
	Name               string      `yaml:"name" json:"name"`
	Bio                string      `yaml:"bio" json:"bio,omitempty"`
	Archetype          string      `yaml:"archetype" json:"archetype,omitempty"`
	Big5               Big5Profile `yaml:"big_five" json:"big5"`
	CommunicationStyle string      `yaml:"-" json:"communication_style,omitempty"`
	Voice              string      `yaml:"-" json:"voice,omitempty"`
	Knowledge          []string    `yaml:"-" json:"knowledge,omitempty"`
	CurrentGoal        *Goal       `yaml:"-" json:"current_goal,omitempty"`
	LoadedAt           time.Time   `yaml:"-" json:"loaded_at"`
}

type Big5Profile struct {
	Openness          int `yaml:"openness" json:"openness"`
	Conscientiousness int `yaml:"conscientiousness" json:"conscientiousness"`
	Extraversion      int `yaml:"extraversion" json:"extraversion"`
	Agreeableness     int `yaml:"agreeableness" json:"agreeableness"`
	Neuroticism       int `yaml:"neuroticism" json:"neuroticism"`
}

// GetResilience returns a 0.0 (brittle) to 1.0 (sturdy) factor from Big Five.
// Weighted 60% stability (inverse neuroticism), 25% conscientiousness, 15% extraversion.
func (p *Big5Profile) GetResilience() float64 {
	stability := float64(100 - p.Neuroticism)
	coping := float64(p.Conscientiousness)
	energy := float64(p.Extraversion)
	score := (stability * 0.6) + (coping * 0.25) + (energy * 0.15)
	return score / 100.0
}

// GetResilience is a convenience forward from Persona to its Big5Profile.
func (p *Persona) GetResilience() float64 {
	return p.Big5.GetResilience()
}
