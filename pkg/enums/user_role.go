package enums

// UserRole maps to users.role.
type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRoleScholar UserRole = "scholar"
)

func (r UserRole) IsValid() bool {
	return r == UserRoleAdmin || r == UserRoleScholar
}
