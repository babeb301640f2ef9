package fetcher

import (
	"testing"
	"time"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	if o.Workers < 1 {
		t.Errorf("default worker count %d, want at least 1", o.Workers)
	}
	if o.UserAgent != DefaultUserAgent {
		t.Errorf("default user agent %q, want %q", o.UserAgent, DefaultUserAgent)
	}
	if o.ProgressInterval != DefaultProgressInterval {
		t.Errorf("default progress interval %v, want %v", o.ProgressInterval, DefaultProgressInterval)
	}
	if o.GitPath != "git" {
		t.Errorf("default git path %q, want %q", o.GitPath, "git")
	}
	if err := o.validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	cases := []struct {
		name string
		opt  Option
	}{
		{"zero workers", WithWorkers(0)},
		{"negative workers", WithWorkers(-2)},
		{"empty user agent", WithUserAgent("")},
		{"zero progress interval", WithProgressInterval(0)},
		{"negative progress interval", WithProgressInterval(-time.Second)},
		{"empty git path", WithGitPath("")},
		{"zero dns ttl", WithDNSCacheTTL(0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := New(tc.opt, WithLogger(discardLogger()))
			if err == nil {
				f.Close()
				t.Fatalf("New accepted invalid options")
			}
		})
	}
}

func TestWorkerPreferenceAssignment(t *testing.T) {
	f := newTestFetcher(t, WithWorkers(4))
	if len(f.workers) != 4 {
		t.Fatalf("pool size %d, want 4", len(f.workers))
	}
	if f.workers[0].pref != LargeItems {
		t.Errorf("worker 0 preference %s, want %s", f.workers[0].pref, LargeItems)
	}
	for _, w := range f.workers[1:] {
		if w.pref != SmallItems {
			t.Errorf("worker %d preference %s, want %s", w.index, w.pref, SmallItems)
		}
	}
}

func TestKindRoundTrip(t *testing.T) {
	for _, k := range []Kind{KindRegularFile, KindTemporaryFile, KindGitRepository, KindGitRepositoryMirror} {
		got, err := ParseKind(k.String())
		if err != nil {
			t.Errorf("ParseKind(%q): %v", k.String(), err)
			continue
		}
		if got != k {
			t.Errorf("ParseKind(%q) = %v, want %v", k.String(), got, k)
		}
	}
	if _, err := ParseKind("tarball"); err == nil {
		t.Errorf("ParseKind accepted an unknown kind")
	}
}
