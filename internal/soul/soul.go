// Package soul reads and writes per-agent persona files: a key-value
// front-matter block delimited by lines containing exactly "---", followed
// by free-form description text.
package soul

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Soul is a per-agent persona.
type Soul struct {
	Name        string
	Description string
	Personality string
	Goals       []string
	Rules       []string
	Preferences map[string]string
}

// Path returns the on-disk location of an agent's soul file.
func Path(soulsDir, agentID string) string {
	return filepath.Join(soulsDir, agentID+".md")
}

// Load reads and lossily parses a soul file. A missing file yields a bare
// Soul with only Name set.
func Load(path, agentID string) (Soul, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Soul{Name: agentID, Preferences: map[string]string{}}, nil
	}
	if err != nil {
		return Soul{}, err
	}
	return Parse(string(data), agentID), nil
}

// Parse lossily parses raw soul-file content. Unrecognized front-matter
// keys and malformed lines are silently dropped.
func Parse(content, defaultName string) Soul {
	s := Soul{Name: defaultName, Preferences: map[string]string{}}

	front, body, ok := splitFrontMatter(content)
	if !ok {
		s.Description = strings.TrimSpace(content)
		return s
	}
	s.Description = strings.TrimSpace(body)

	for _, line := range strings.Split(front, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		val = strings.Trim(val, `"'`)

		switch strings.ToLower(key) {
		case "name":
			if val != "" {
				s.Name = val
			}
		case "personality":
			s.Personality = val
		case "goals":
			s.Goals = splitList(val)
		case "rules":
			s.Rules = splitList(val)
		default:
			if strings.HasPrefix(key, "preferences.") {
				prefKey := strings.TrimPrefix(key, "preferences.")
				s.Preferences[prefKey] = val
			}
		}
	}
	return s
}

func splitFrontMatter(content string) (front, body string, ok bool) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return "", "", false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[1:i], "\n"), strings.Join(lines[i+1:], "\n"), true
		}
	}
	return "", "", false
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Save rewrites the soul file in canonical form.
func Save(path string, s Soul) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(Render(s)), 0644)
}

// Render produces the canonical text-with-front-matter representation.
func Render(s Soul) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "name: %s\n", s.Name)
	if s.Personality != "" {
		fmt.Fprintf(&b, "personality: %s\n", s.Personality)
	}
	if len(s.Goals) > 0 {
		fmt.Fprintf(&b, "goals: %s\n", strings.Join(s.Goals, ", "))
	}
	if len(s.Rules) > 0 {
		fmt.Fprintf(&b, "rules: %s\n", strings.Join(s.Rules, ", "))
	}
	for _, k := range sortedKeys(s.Preferences) {
		fmt.Fprintf(&b, "preferences.%s: %s\n", k, s.Preferences[k])
	}
	b.WriteString("---\n")
	if s.Description != "" {
		b.WriteString(s.Description)
		b.WriteString("\n")
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// SystemPrompt renders a soul into a system prompt for the backend.
func SystemPrompt(s Soul) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.", s.Name)
	if s.Personality != "" {
		fmt.Fprintf(&b, " %s", s.Personality)
	}
	if s.Description != "" {
		fmt.Fprintf(&b, "\n\n%s", s.Description)
	}
	if len(s.Goals) > 0 {
		fmt.Fprintf(&b, "\n\nGoals:\n")
		for _, g := range s.Goals {
			fmt.Fprintf(&b, "- %s\n", g)
		}
	}
	if len(s.Rules) > 0 {
		fmt.Fprintf(&b, "\nRules:\n")
		for _, r := range s.Rules {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	return b.String()
}
