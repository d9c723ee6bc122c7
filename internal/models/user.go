package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleHR         UserRole = "HR"
	RoleEmployee   UserRole = "EMPLOYEE"
	// RoleService identifies machine callers such as the psychometric testing subsystem.
	RoleService UserRole = "SERVICE"
)

// HRRoles lists the roles carrying HR capability.
var HRRoles = []UserRole{RoleSuperAdmin, RoleAdmin, RoleHR}

// HasHRCapability reports whether the role may act on behalf of HR.
func (r UserRole) HasHRCapability() bool {
	for _, role := range HRRoles {
		if r == role {
			return true
		}
	}
	return false
}

// AccountStatus tracks the lifecycle of an employee account.
type AccountStatus string

const (
	AccountStatusOnboarding AccountStatus = "ONBOARDING"
	AccountStatusActive     AccountStatus = "ACTIVE"
)

// User represents an account row owned by the identity service.
type User struct {
	ID            string        `db:"id" json:"id"`
	Email         string        `db:"email" json:"email"`
	FullName      string        `db:"full_name" json:"full_name"`
	Role          UserRole      `db:"role" json:"role"`
	JobRole       string        `db:"job_role" json:"job_role"`
	Department    *string       `db:"department" json:"department,omitempty"`
	AccountStatus AccountStatus `db:"account_status" json:"account_status"`
	ActivatedAt   *time.Time    `db:"activated_at" json:"activated_at,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
