package cabinet

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Ministry is one roster entry. Name is the stable machine identifier
// used in assessments and prompt lookups; Focus steers the ministry's
// agent toward its portfolio.
type Ministry struct {
	Name        string `yaml:"name" json:"name"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	Focus       string `yaml:"focus" json:"focus"`
}

// Roster is the ordered ministry list. Roster order is the canonical
// assessment order everywhere downstream.
type Roster struct {
	Ministries []Ministry `yaml:"ministries"`

	index map[string]int
}

// LoadRoster reads the roster YAML at path.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return ParseRoster(data)
}

// ParseRoster decodes and validates roster YAML.
func ParseRoster(data []byte) (*Roster, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	if len(r.Ministries) == 0 {
		return nil, fmt.Errorf("roster has no ministries")
	}
	r.index = make(map[string]int, len(r.Ministries))
	for i, m := range r.Ministries {
		if m.Name == "" {
			return nil, fmt.Errorf("roster entry %d has no name", i)
		}
		if _, dup := r.index[m.Name]; dup {
			return nil, fmt.Errorf("duplicate ministry %q", m.Name)
		}
		r.index[m.Name] = i
	}
	return &r, nil
}

// OrderIndex returns the ministry's roster position, or len(roster)
// for names not on the roster so they sort after every known ministry.
func (r *Roster) OrderIndex(name string) int {
	if i, ok := r.index[name]; ok {
		return i
	}
	return len(r.Ministries)
}

// Lookup returns the roster entry for name.
func (r *Roster) Lookup(name string) (Ministry, bool) {
	i, ok := r.index[name]
	if !ok {
		return Ministry{}, false
	}
	return r.Ministries[i], true
}

// Names returns ministry names in roster order.
func (r *Roster) Names() []string {
	names := make([]string, len(r.Ministries))
	for i, m := range r.Ministries {
		names[i] = m.Name
	}
	return names
}
