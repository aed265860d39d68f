package domain

import "fmt"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

type Permission string

const (
	PermProfileRead  Permission = "profile:read"
	PermProfileWrite Permission = "profile:write"
	PermUsersRead    Permission = "users:read"
	PermUsersManage  Permission = "users:manage"
)

// PermissionsFor returns the fixed permission set of a role.
func PermissionsFor(r Role) []Permission {
	switch r {
	case RoleAdmin:
		return []Permission{PermProfileRead, PermProfileWrite, PermUsersRead, PermUsersManage}
	case RoleUser:
		return []Permission{PermProfileRead, PermProfileWrite}
	}
	return nil
}

func HasPermission(perms []Permission, want Permission) bool {
	for _, p := range perms {
		if p == want {
			return true
		}
	}
	return false
}
