package model

import "testing"

func TestLevelAtLeast(t *testing.T) {
	tests := []struct {
		level    string
		minimum  string
		expected bool
	}{
		{LevelAdmin, LevelAdmin, true},
		{LevelAdmin, Level5, true},
		{LevelAdmin, Level1, true},
		{Level5, LevelAdmin, false},
		{Level5, Level5, true},
		{Level4, Level3, true},
		{Level3, Level4, false},
		{Level1, Level1, true},
		{Level1, Level2, false},
		// Unknown levels fail-closed.
		{"unknown", Level1, false},
		{LevelAdmin, "unknown", false},
		{"", "", false},
		{"", Level1, false},
		{"admin", Level1, false},
	}

	for _, tt := range tests {
		got := LevelAtLeast(tt.level, tt.minimum)
		if got != tt.expected {
			t.Errorf("LevelAtLeast(%q, %q) = %v, want %v", tt.level, tt.minimum, got, tt.expected)
		}
	}
}

func TestValidLevel(t *testing.T) {
	for _, l := range []string{Level1, Level2, Level3, Level4, Level5, LevelAdmin} {
		if !ValidLevel(l) {
			t.Errorf("ValidLevel(%q) = false", l)
		}
	}
	for _, l := range []string{"", "0", "6", "Administrator", "manager"} {
		if ValidLevel(l) {
			t.Errorf("ValidLevel(%q) = true", l)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"", true},
		{"short", true},
		{"1234567", true},
		{"12345678", false},
		{"a-valid-password", false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}
}
