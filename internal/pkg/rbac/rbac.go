// internal/pkg/rbac/rbac.go
package rbac

import "medboard-service/internal/domain/auth"

// Role names. RoleSuperAdmin is a superset of every other role's grants.
const (
	RoleSuperAdmin      = "super_admin"
	RoleMedicalAdmin    = "medical_admin"
	RoleContentAdmin    = "content_admin"
	RoleOperationsAdmin = "operations_admin"
	RoleViewer          = "viewer"
)

// Capability strings gate one permitted action each.
const (
	CapUserView   = "user.view"
	CapUserCreate = "user.create"
	CapUserManage = "user.manage"

	CapDoctorView       = "doctor.view"
	CapDoctorManage     = "doctor.manage"
	CapDepartmentView   = "department.view"
	CapDepartmentManage = "department.manage"

	CapProductView   = "product.view"
	CapProductManage = "product.manage"
	CapArticleView   = "article.view"
	CapArticleManage = "article.manage"

	CapDeviceView   = "device.view"
	CapDeviceManage = "device.manage"
	CapOrderView    = "order.view"
	CapOrderManage  = "order.manage"
)

// grants is the single source of truth mapping each non-super role to its
// explicit capability set. It is fixed at compile time, not data-driven.
var grants = map[string]map[string]struct{}{
	RoleMedicalAdmin: capSet(
		CapDoctorView, CapDoctorManage,
		CapDepartmentView, CapDepartmentManage,
		CapUserView,
	),
	RoleContentAdmin: capSet(
		CapProductView, CapProductManage,
		CapArticleView, CapArticleManage,
	),
	RoleOperationsAdmin: capSet(
		CapDeviceView, CapDeviceManage,
		CapOrderView, CapOrderManage,
		CapUserView,
	),
	RoleViewer: capSet(
		CapUserView, CapDoctorView, CapDepartmentView,
		CapProductView, CapArticleView, CapDeviceView, CapOrderView,
	),
}

func capSet(caps ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

// KnownRole reports whether the role name has a defined grant set.
func KnownRole(role string) bool {
	if role == RoleSuperAdmin {
		return true
	}
	_, ok := grants[role]
	return ok
}

// HasPermission decides whether the identity may perform the capability.
// The super role allows every capability, including ones absent from any
// explicit mapping. A nil identity always evaluates to false.
func HasPermission(identity *auth.Identity, capability string) bool {
	if identity == nil {
		return false
	}
	if identity.Role == RoleSuperAdmin {
		return true
	}
	set, ok := grants[identity.Role]
	if !ok {
		return false
	}
	_, ok = set[capability]
	return ok
}

// HasAnyRole reports whether the identity holds any of the listed roles.
// The super role matches every role check; a nil identity matches none.
func HasAnyRole(identity *auth.Identity, roles ...string) bool {
	if identity == nil {
		return false
	}
	if identity.Role == RoleSuperAdmin {
		return true
	}
	for _, role := range roles {
		if identity.Role == role {
			return true
		}
	}
	return false
}

// Capabilities returns a copy of the role's grant set for display purposes.
// The super role reports every known capability.
func Capabilities(role string) []string {
	if role == RoleSuperAdmin {
		seen := make(map[string]struct{})
		var all []string
		for _, set := range grants {
			for c := range set {
				if _, ok := seen[c]; ok {
					continue
				}
				seen[c] = struct{}{}
				all = append(all, c)
			}
		}
		return all
	}
	set, ok := grants[role]
	if !ok {
		return nil
	}
	caps := make([]string, 0, len(set))
	for c := range set {
		caps = append(caps, c)
	}
	return caps
}
