package semver

import "testing"

func makeVersions() []string {
	return []string{"1.0.0", "1.4.2", "1.3.0", "2.0.0", "2.1.0", "3.0.0-alpha.1", "not-a-version"}
}

func TestResolveVersion(t *testing.T) {
	tests := []struct {
		name     string
		versions []string
		rng      string
		want     string
	}{
		{"no range picks highest stable", makeVersions(), "", "2.1.0"},
		{"no range falls back to prerelease", []string{"1.0.0-rc.1", "1.0.0-beta.2"}, "", "1.0.0-rc.1"},
		{"major only", makeVersions(), "1", "1.4.2"},
		{"major only without match", makeVersions(), "4", ""},
		{"caret", makeVersions(), "^1.3.0", "1.4.2"},
		{"tilde", makeVersions(), "~1.3.0", "1.3.0"},
		{"comparison", makeVersions(), ">=2.0.0", "2.1.0"},
		{"exact", makeVersions(), "1.3.0", "1.3.0"},
		{"prerelease only when asked", makeVersions(), ">=3.0.0-alpha.0", "3.0.0-alpha.1"},
		{"no match", makeVersions(), "^5.0.0", ""},
		{"empty list", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveVersion(tt.versions, tt.rng)
			if got != tt.want {
				t.Errorf("semver:resolver_test - ResolveVersion(%q) = %q, want %q", tt.rng, got, tt.want)
			}
		})
	}
}

func TestValidateVersion(t *testing.T) {
	for _, v := range []string{"1.0.0", "0.1.0-alpha.1", "10.20.30"} {
		if err := ValidateVersion(v); err != nil {
			t.Errorf("semver:resolver_test - ValidateVersion(%q) unexpected error: %v", v, err)
		}
	}
	for _, v := range []string{"", "1", "1.0", "v1.0.0", "latest"} {
		if err := ValidateVersion(v); err == nil {
			t.Errorf("semver:resolver_test - ValidateVersion(%q) expected error", v)
		}
	}
}
