package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/livingsilver94/serpentos-libmoss/fetcher"
	"github.com/livingsilver94/serpentos-libmoss/internal/fp"
)

// ExistsPolicy decides what the CLI does when a file job's destination
// already exists. The engine itself always truncates; the policy is
// applied before the job is enqueued.
type ExistsPolicy string

const (
	// ExistsOverwrite enqueues the job unconditionally.
	ExistsOverwrite ExistsPolicy = "overwrite"
	// ExistsSkip drops the job without treating it as a failure.
	ExistsSkip ExistsPolicy = "skip"
	// ExistsError counts the job as failed without fetching.
	ExistsError ExistsPolicy = "error"
)

// ParseExistsPolicy converts a string to an ExistsPolicy, defaulting
// to overwrite.
func ParseExistsPolicy(s string) (ExistsPolicy, error) {
	switch ExistsPolicy(s) {
	case ExistsSkip:
		return ExistsSkip, nil
	case ExistsError:
		return ExistsError, nil
	case ExistsOverwrite, "":
		return ExistsOverwrite, nil
	}
	return "", fmt.Errorf("unknown on_exists policy %q", s)
}

// Job is one manifest entry.
type Job struct {
	URI      string `yaml:"uri"`
	Dest     string `yaml:"dest"`
	Kind     string `yaml:"kind"`
	Size     uint64 `yaml:"size"`
	OnExists string `yaml:"on_exists"`
}

// Manifest lists the jobs moss-fetch enqueues.
type Manifest struct {
	Jobs []Job `yaml:"jobs"`
}

// LoadManifest reads and validates a YAML job manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks every entry for required fields, known kinds and
// known policies.
func (m *Manifest) Validate() error {
	if len(m.Jobs) == 0 {
		return fmt.Errorf("manifest: no jobs")
	}
	for i, j := range m.Jobs {
		if j.URI == "" {
			return fmt.Errorf("manifest: job %d: uri is required", i)
		}
		if j.Dest == "" {
			return fmt.Errorf("manifest: job %d: dest is required", i)
		}
		if _, err := fetcher.ParseKind(j.Kind); err != nil {
			return fmt.Errorf("manifest: job %d: %w", i, err)
		}
		if _, err := ParseExistsPolicy(j.OnExists); err != nil {
			return fmt.Errorf("manifest: job %d: %w", i, err)
		}
	}
	return nil
}

// Dedupe drops entries whose source and destination fingerprint has
// been seen before, keeping the first occurrence. It returns the
// number of entries removed.
func (m *Manifest) Dedupe() int {
	seen := make(map[string]struct{}, len(m.Jobs))
	kept := m.Jobs[:0]
	removed := 0
	for _, j := range m.Jobs {
		key := fp.Fingerprint(j.URI, j.Dest)
		if _, dup := seen[key]; dup {
			removed++
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, j)
	}
	m.Jobs = kept
	return removed
}
