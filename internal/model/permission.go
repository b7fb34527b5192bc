package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionExamsRead allows viewing exam lists and details.
	PermissionExamsRead Permission = "exams:read"

	// PermissionExamsWrite allows creating, replacing, and deleting own exams.
	PermissionExamsWrite Permission = "exams:write"

	// PermissionResultsRead allows viewing attempts on own exams.
	PermissionResultsRead Permission = "results:read"

	// PermissionStudentsRead allows viewing student accounts and the roster.
	PermissionStudentsRead Permission = "students:read"

	// PermissionStudentsWrite allows managing student accounts, roster, and assignments.
	PermissionStudentsWrite Permission = "students:write"

	// PermissionMonitor allows attaching to the live integrity monitor.
	PermissionMonitor Permission = "exams:monitor"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionExamsRead,
	PermissionExamsWrite,
	PermissionResultsRead,
	PermissionStudentsRead,
	PermissionStudentsWrite,
	PermissionMonitor,
}

// PermissionsFor returns the permission codes embedded into a token for role.
func PermissionsFor(role Role) []string {
	if role != RoleAdmin {
		return nil
	}
	out := make([]string, len(AllPermissions))
	for i, p := range AllPermissions {
		out[i] = string(p)
	}
	return out
}
