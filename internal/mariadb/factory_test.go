package mariadb

import "testing"

func TestNormalizePrefix(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		fallback   string
		want       string
	}{
		{"configured with separator", "mdl_", "", "mdl_"},
		{"configured without separator", "mdl", "", "mdl_"},
		{"empty falls back", "", "wp_", "wp_"},
		{"whitespace falls back", "   ", "wp_", "wp_"},
		{"fallback without separator", "", "wp", "wp_"},
		{"both empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePrefix(tt.configured, tt.fallback); got != tt.want {
				t.Errorf("NormalizePrefix(%q, %q) = %q, want %q", tt.configured, tt.fallback, got, tt.want)
			}
		})
	}
}
