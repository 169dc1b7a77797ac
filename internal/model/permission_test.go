package model

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		level    string
		perm     Permission
		expected bool
	}{
		{LevelAdmin, PermStockDisposal, true},
		{LevelAdmin, PermSystemConfig, true},
		{Level5, PermStockAdjustment, true},
		{Level5, PermStockDisposal, false},
		{Level5, PermUserDelete, false},
		{Level4, PermWorkflowApprove, true},
		{Level4, PermStockAdjustment, false},
		{Level3, PermStockWrite, true},
		{Level3, PermWorkflowApprove, false},
		{Level2, PermStockRead, true},
		{Level2, PermStockWrite, false},
		{Level1, PermReportView, true},
		{"unknown", PermStockRead, false},
	}

	for _, tt := range tests {
		if got := HasPermission(tt.level, tt.perm); got != tt.expected {
			t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.level, tt.perm, got, tt.expected)
		}
	}
}

func TestPermissionsForReturnsCopy(t *testing.T) {
	perms := PermissionsFor(Level1)
	perms[0] = PermSystemConfig
	if HasPermission(Level1, PermSystemConfig) {
		t.Error("mutating the returned slice changed level permissions")
	}
}

func TestMenuFor(t *testing.T) {
	keys := func(items []MenuItem) map[string]bool {
		m := map[string]bool{}
		for _, it := range items {
			m[it.Key] = true
		}
		return m
	}

	tests := []struct {
		level   string
		want    []string
		notWant []string
	}{
		{LevelAdmin, []string{"dashboard", "stock_view", "nara", "settings", "sop"}, nil},
		{Level5, []string{"dashboard", "nara", "settings", "work_tools"}, nil},
		{Level4, []string{"dashboard", "work_tools", "schedule"}, []string{"nara", "settings", "sop"}},
		{Level3, []string{"dashboard", "daily_log", "schedule"}, []string{"work_tools", "nara"}},
		{Level1, []string{"stock_view"}, []string{"dashboard", "daily_log", "schedule"}},
	}

	for _, tt := range tests {
		got := keys(MenuFor(tt.level))
		for _, k := range tt.want {
			if !got[k] {
				t.Errorf("MenuFor(%q) missing %q", tt.level, k)
			}
		}
		for _, k := range tt.notWant {
			if got[k] {
				t.Errorf("MenuFor(%q) unexpectedly contains %q", tt.level, k)
			}
		}
	}

	if items := MenuFor("bogus"); len(items) != 0 {
		t.Errorf("expected empty menu for unknown level, got %d items", len(items))
	}
}
