package access

import "time"

// Role grades what a project member may do.
type Role string

const (
	// RoleViewer may read branches and diffs.
	RoleViewer Role = "viewer"
	// RoleEditor may edit translations and merge branches.
	RoleEditor Role = "editor"
	// RoleAdmin may administer the project.
	RoleAdmin Role = "admin"
)

// roleRank orders roles so a stronger role satisfies a weaker requirement.
var roleRank = map[Role]int{
	RoleViewer: 1,
	RoleEditor: 2,
	RoleAdmin:  3,
}

// Satisfies reports whether the role meets or exceeds the required role.
func (r Role) Satisfies(required Role) bool {
	return roleRank[r] >= roleRank[required]
}

// Valid reports whether the role is one of the known grades.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// ProjectMembership maps a user to their role within one project.
type ProjectMembership struct {
	ProjectID string    `gorm:"column:project_id;primaryKey;size:190;not null"`
	UserID    string    `gorm:"column:user_id;primaryKey;size:190;not null;index"`
	Role      Role      `gorm:"column:role;size:32;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing project memberships.
func (ProjectMembership) TableName() string {
	return "project_memberships"
}
