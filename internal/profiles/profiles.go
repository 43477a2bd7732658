// Package profiles reads dbt project and connection profile files.
// It handles YAML parsing, env_var() substitution and target resolution.
package profiles

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/goccy/go-yaml"
)

const (
	ProfilesFile = "profiles.yml"
	ProjectFile  = "dbt_project.yml"
)

// Project holds the fields of dbt_project.yml the wrapper needs.
type Project struct {
	Name       string `yaml:"name"`
	Profile    string `yaml:"profile"`
	TargetPath string `yaml:"target-path"`
}

// Target is one output entry of a profile.
type Target struct {
	Name     string
	Type     string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	Schema   string
	Threads  int
	SSLMode  string
}

// Profile is a named set of targets with a default.
type Profile struct {
	Name    string
	Target  string
	Outputs map[string]Target
}

// Profiles maps profile names to profiles.
type Profiles map[string]*Profile

type rawProfile struct {
	Target  string                    `yaml:"target"`
	Outputs map[string]map[string]any `yaml:"outputs"`
}

// LoadProject reads <dir>/dbt_project.yml.
func LoadProject(dir string) (*Project, error) {
	data, err := os.ReadFile(filepath.Join(dir, ProjectFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}

	var project Project
	if err := yaml.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("failed to decode project YAML: %w", err)
	}

	for _, field := range []*string{&project.Name, &project.Profile, &project.TargetPath} {
		if *field, err = ExpandEnvVars(*field); err != nil {
			return nil, fmt.Errorf("%s: %w", ProjectFile, err)
		}
	}
	return &project, nil
}

// Load reads <dir>/profiles.yml.
func Load(dir string) (Profiles, error) {
	f, err := os.Open(filepath.Join(dir, ProfilesFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open profiles file: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse decodes profiles YAML from r. env_var() placeholders are expanded in
// the decoded string values, so substituted text is never read as YAML.
func Parse(r io.Reader) (Profiles, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}

	var raw map[string]rawProfile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode profiles YAML: %w", err)
	}
	// Legacy global settings block, not a profile.
	delete(raw, "config")

	profiles := make(Profiles, len(raw))
	for name, rp := range raw {
		if rp.Target, err = ExpandEnvVars(rp.Target); err != nil {
			return nil, fmt.Errorf("%s: profile %s: %w", ProfilesFile, name, err)
		}
		p := &Profile{Name: name, Target: rp.Target, Outputs: make(map[string]Target, len(rp.Outputs))}
		for targetName, fields := range rp.Outputs {
			t, err := targetFromFields(targetName, fields)
			if err != nil {
				return nil, fmt.Errorf("profile %s: %w", name, err)
			}
			p.Outputs[targetName] = t
		}
		profiles[name] = p
	}
	return profiles, nil
}

// Get returns the named profile.
func (ps Profiles) Get(name string) (*Profile, error) {
	p, ok := ps[name]
	if !ok {
		return nil, fmt.Errorf("profile %q not found in %s (available: %v)", name, ProfilesFile, ps.Names())
	}
	return p, nil
}

// Names returns the profile names in sorted order.
func (ps Profiles) Names() []string {
	names := make([]string, 0, len(ps))
	for name := range ps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the named target, or the profile's default when name is empty.
func (p *Profile) Resolve(name string) (Target, error) {
	if name == "" {
		name = p.Target
	}
	if name == "" {
		return Target{}, fmt.Errorf("profile %s has no default target", p.Name)
	}
	t, ok := p.Outputs[name]
	if !ok {
		return Target{}, fmt.Errorf("target %q not found in profile %s (available: %v)", name, p.Name, p.TargetNames())
	}
	return t, nil
}

// TargetNames returns the output names in sorted order.
func (p *Profile) TargetNames() []string {
	names := make([]string, 0, len(p.Outputs))
	for name := range p.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func targetFromFields(name string, fields map[string]any) (Target, error) {
	if err := expandFields(fields); err != nil {
		return Target{}, fmt.Errorf("target %s: %w", name, err)
	}

	t := Target{
		Name:     name,
		Type:     stringField(fields, "type"),
		Host:     stringField(fields, "host"),
		User:     stringField(fields, "user"),
		Password: stringField(fields, "password", "pass"),
		DBName:   stringField(fields, "dbname", "database"),
		Schema:   stringField(fields, "schema"),
		SSLMode:  stringField(fields, "sslmode"),
	}
	if t.Type == "" {
		return Target{}, fmt.Errorf("target %s: missing type", name)
	}

	var err error
	if t.Port, err = intField(fields, "port"); err != nil {
		return Target{}, fmt.Errorf("target %s: %w", name, err)
	}
	if t.Threads, err = intField(fields, "threads"); err != nil {
		return Target{}, fmt.Errorf("target %s: %w", name, err)
	}
	return t, nil
}

// expandFields replaces env_var() placeholders in the string values of fields.
func expandFields(fields map[string]any) error {
	for key, v := range fields {
		str, ok := v.(string)
		if !ok {
			continue
		}
		expanded, err := ExpandEnvVars(str)
		if err != nil {
			return err
		}
		fields[key] = expanded
	}
	return nil
}

func stringField(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := fields[key]
		if !ok || v == nil {
			continue
		}
		return fmt.Sprint(v)
	}
	return ""
}

func intField(fields map[string]any, key string) (int, error) {
	v, ok := fields[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q", key, n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("invalid %s %v", key, v)
	}
}
