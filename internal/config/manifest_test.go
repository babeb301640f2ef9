package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, `
jobs:
  - uri: https://mirror.example.org/pool/nano-7.2.tar.xz
    dest: /var/cache/moss/nano-7.2.tar.xz
    kind: regular
    size: 3145728
  - uri: https://git.example.org/pkg.git
    dest: /var/cache/moss/pkg.git
    kind: git-mirror
    on_exists: skip
`)
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if len(m.Jobs) != 2 {
		t.Fatalf("%d jobs parsed, want 2", len(m.Jobs))
	}
	if m.Jobs[0].Size != 3145728 {
		t.Errorf("size = %d", m.Jobs[0].Size)
	}
	if m.Jobs[1].Kind != "git-mirror" || m.Jobs[1].OnExists != "skip" {
		t.Errorf("second job parsed as %+v", m.Jobs[1])
	}
}

func TestLoadManifestRejections(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"empty", "jobs: []\n"},
		{"missing uri", "jobs:\n  - dest: /tmp/x\n    kind: regular\n"},
		{"missing dest", "jobs:\n  - uri: https://a.example/x\n    kind: regular\n"},
		{"unknown kind", "jobs:\n  - uri: https://a.example/x\n    dest: /tmp/x\n    kind: tarball\n"},
		{"unknown policy", "jobs:\n  - uri: https://a.example/x\n    dest: /tmp/x\n    kind: regular\n    on_exists: maybe\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadManifest(writeManifest(t, tc.content)); err == nil {
				t.Errorf("invalid manifest accepted")
			}
		})
	}
}

func TestManifestDedupe(t *testing.T) {
	m := &Manifest{Jobs: []Job{
		{URI: "https://a.example/x", Dest: "/tmp/x", Kind: "regular"},
		{URI: " https://a.example/x ", Dest: "/tmp/dir/../x", Kind: "regular"},
		{URI: "https://a.example/y", Dest: "/tmp/y", Kind: "regular"},
	}}
	if removed := m.Dedupe(); removed != 1 {
		t.Fatalf("Dedupe removed %d entries, want 1", removed)
	}
	if len(m.Jobs) != 2 {
		t.Fatalf("%d jobs kept, want 2", len(m.Jobs))
	}
	// First occurrence wins.
	if m.Jobs[0].Dest != "/tmp/x" || m.Jobs[1].Dest != "/tmp/y" {
		t.Fatalf("kept jobs %+v", m.Jobs)
	}
}

func TestParseExistsPolicy(t *testing.T) {
	for in, want := range map[string]ExistsPolicy{
		"":          ExistsOverwrite,
		"overwrite": ExistsOverwrite,
		"skip":      ExistsSkip,
		"error":     ExistsError,
	} {
		got, err := ParseExistsPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseExistsPolicy(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseExistsPolicy("ignore"); err == nil {
		t.Errorf("unknown policy accepted")
	}
}
