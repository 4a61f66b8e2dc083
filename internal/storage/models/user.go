package models

// Role ids seeded by the reference data migration.
const (
	RoleAdministrator int64 = 1
	RoleOwner         int64 = 2
	RoleUser          int64 = 3
)

// Permission names checked by the API.
const (
	PermissionPropertiesManage = "properties-manage"
	PermissionBookingsManage   = "bookings-manage"
)

// User is the minimal view of an account needed by the booking core.
// Registration and credentials live outside this service.
type User struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	RoleID int64  `json:"role_id"`
}
