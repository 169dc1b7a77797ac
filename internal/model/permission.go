package model

// Permission is a named capability granted by level.
type Permission string

const (
	PermStockRead       Permission = "stock:read"
	PermStockWrite      Permission = "stock:write"
	PermStockDelete     Permission = "stock:delete"
	PermStockAdjustment Permission = "stock:adjustment"
	PermStockDisposal   Permission = "stock:disposal"

	PermUserRead       Permission = "user:read"
	PermUserWrite      Permission = "user:write"
	PermUserDelete     Permission = "user:delete"
	PermUserRoleManage Permission = "user:role_manage"

	PermSystemConfig      Permission = "system:config"
	PermSystemBackup      Permission = "system:backup"
	PermSystemMaintenance Permission = "system:maintenance"

	PermAuditRead      Permission = "audit:read"
	PermAuditExport    Permission = "audit:export"
	PermMonitoringView Permission = "monitoring:view"

	PermReportView     Permission = "report:view"
	PermReportExport   Permission = "report:export"
	PermReportSchedule Permission = "report:schedule"

	PermWorkflowApprove Permission = "workflow:approve"
)

var allPermissions = []Permission{
	PermStockRead, PermStockWrite, PermStockDelete, PermStockAdjustment, PermStockDisposal,
	PermUserRead, PermUserWrite, PermUserDelete, PermUserRoleManage,
	PermSystemConfig, PermSystemBackup, PermSystemMaintenance,
	PermAuditRead, PermAuditExport, PermMonitoringView,
	PermReportView, PermReportExport, PermReportSchedule,
	PermWorkflowApprove,
}

var (
	viewerPermissions = []Permission{PermStockRead, PermReportView}

	userPermissions = []Permission{PermStockRead, PermReportView}

	supervisorPermissions = []Permission{
		PermStockRead, PermStockWrite,
		PermUserRead,
		PermMonitoringView,
		PermReportView,
	}

	managerPermissions = []Permission{
		PermStockRead, PermStockWrite, PermStockAdjustment,
		PermUserRead, PermUserWrite,
		PermAuditRead, PermMonitoringView,
		PermReportView, PermReportExport,
		PermWorkflowApprove,
	}
)

var levelPermissions = map[string][]Permission{
	LevelAdmin: allPermissions,
	Level5:     managerPermissions,
	Level4:     append(append([]Permission{}, supervisorPermissions...), PermAuditRead, PermReportExport, PermWorkflowApprove),
	Level3:     supervisorPermissions,
	Level2:     userPermissions,
	Level1:     viewerPermissions,
}

// PermissionsFor returns a copy of the permissions granted to level.
func PermissionsFor(level string) []Permission {
	return append([]Permission(nil), levelPermissions[level]...)
}

// HasPermission reports whether level grants p.
func HasPermission(level string, p Permission) bool {
	for _, have := range levelPermissions[level] {
		if have == p {
			return true
		}
	}
	return false
}

// MenuItem is a navigation entry the client may show.
type MenuItem struct {
	Key      string     `json:"key"`
	Name     string     `json:"name"`
	Href     string     `json:"href"`
	SubItems []MenuItem `json:"sub_items,omitempty"`

	minLevel string
	only     []string
}

var menu = []MenuItem{
	{Key: "dashboard", Name: "대시보드", Href: "/dashboard", minLevel: Level3},
	{Key: "stock_view", Name: "재고관리", Href: "/stock-management", minLevel: Level1},
	{Key: "daily_log", Name: "업무일지", Href: "/work-diary", minLevel: Level3, SubItems: []MenuItem{
		{Name: "대시보드", Href: "/work-diary"},
		{Name: "업무일지 작성", Href: "/work-diary/write"},
		{Name: "업무일지 작성 내역", Href: "/work-diary/history"},
		{Name: "외근/출장 보고", Href: "/business-trip-reports"},
		{Name: "통계", Href: "/work-diary/advanced-stats"},
	}},
	{Key: "schedule", Name: "일정관리", Href: "/schedule", minLevel: Level3},
	{Key: "work_tools", Name: "업무도구", Href: "/work-tool", minLevel: Level4},
	{Key: "sop", Name: "SOP", Href: "/sop", only: []string{Level5}},
	{Key: "nara", Name: "Nara", Href: "/nara-monitoring", only: []string{Level5}},
	{Key: "settings", Name: "설정", Href: "/settings", only: []string{Level5}, SubItems: []MenuItem{
		{Name: "설정 홈", Href: "/settings"},
		{Name: "회원관리", Href: "/user-management"},
		{Name: "프로젝트 관리", Href: "/project-management"},
		{Name: "입찰모니터링 관리", Href: "/nara-settings"},
	}},
}

// MenuFor returns the navigation entries visible at level.
// Administrators see everything; unknown levels see nothing.
func MenuFor(level string) []MenuItem {
	if !ValidLevel(level) {
		return nil
	}

	var visible []MenuItem
	for _, m := range menu {
		if IsAdmin(level) || m.visibleTo(level) {
			visible = append(visible, m)
		}
	}
	return visible
}

func (m MenuItem) visibleTo(level string) bool {
	if len(m.only) > 0 {
		for _, l := range m.only {
			if l == level {
				return true
			}
		}
		return false
	}
	return LevelAtLeast(level, m.minLevel)
}
