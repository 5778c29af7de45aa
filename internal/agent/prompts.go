package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PromptStore loads role system prompts from a directory of markdown
// files, one file per role name. Prompts are external inputs; the engine
// only reads and passes them through.
type PromptStore struct {
	dir     string
	prompts map[string]string
}

// LoadPrompts reads every .md file under dir. The map key is the file
// name without extension.
func LoadPrompts(dir string) (*PromptStore, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read prompts dir %s: %w", dir, err)
	}

	prompts := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read prompt %s: %w", e.Name(), err)
		}
		name := strings.TrimSuffix(e.Name(), ".md")
		prompts[name] = strings.TrimSpace(string(data))
	}

	return &PromptStore{dir: dir, prompts: prompts}, nil
}

// Get returns the prompt for name, with ok=false when absent.
func (p *PromptStore) Get(name string) (string, bool) {
	text, ok := p.prompts[name]
	return text, ok
}

// Require returns the prompt for name or an error naming the missing
// file. Used at startup so a missing required prompt fails fast.
func (p *PromptStore) Require(name string) (string, error) {
	text, ok := p.prompts[name]
	if !ok {
		return "", fmt.Errorf("required prompt %s.md not found in %s", name, p.dir)
	}
	return text, nil
}

// ForRole returns the prompt matching the role name, falling back to
// empty when the operator has not provided one.
func (p *PromptStore) ForRole(r Role) string {
	text := p.prompts[string(r)]
	return text
}

// Names returns the loaded prompt names, for startup logging.
func (p *PromptStore) Names() []string {
	names := make([]string, 0, len(p.prompts))
	for name := range p.prompts {
		names = append(names, name)
	}
	return names
}
