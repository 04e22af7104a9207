package authz

import (
	"fmt"
	"net/http"
)

// Reason identifies why access was denied. The set is fixed; callers may
// override the default detail message but not invent new reasons.
type Reason string

const (
	ReasonAuthenticationRequired Reason = "authentication_required"
	ReasonAdminRequired          Reason = "admin_required"
	ReasonSuperuserRequired      Reason = "superuser_required"
	ReasonStaffRequired          Reason = "staff_required"
	ReasonPermissionMissing      Reason = "permission_missing"
	ReasonOwnershipRequired      Reason = "ownership_required"
	ReasonAccessDenied           Reason = "access_denied"
	ReasonTokenNotFound          Reason = "token_not_found"
	ReasonTokenInactive          Reason = "token_inactive"
	ReasonTokenExpired           Reason = "token_expired"
	ReasonRefreshExpired         Reason = "refresh_expired"
	ReasonUserNotFound           Reason = "user_not_found"
	ReasonUserInactive           Reason = "user_inactive"
)

var statusByReason = map[Reason]int{
	ReasonAuthenticationRequired: http.StatusUnauthorized,
	ReasonAdminRequired:          http.StatusForbidden,
	ReasonSuperuserRequired:      http.StatusForbidden,
	ReasonStaffRequired:          http.StatusForbidden,
	ReasonPermissionMissing:      http.StatusForbidden,
	ReasonOwnershipRequired:      http.StatusForbidden,
	ReasonAccessDenied:           http.StatusForbidden,
	ReasonTokenNotFound:          http.StatusUnauthorized,
	ReasonTokenInactive:          http.StatusUnauthorized,
	ReasonTokenExpired:           http.StatusUnauthorized,
	ReasonRefreshExpired:         http.StatusUnauthorized,
	ReasonUserNotFound:           http.StatusUnauthorized,
	ReasonUserInactive:           http.StatusUnauthorized,
}

var detailByReason = map[Reason]string{
	ReasonAuthenticationRequired: "Authentication required. Please log in to access this resource.",
	ReasonAdminRequired:          "Administrator privileges required. You don't have sufficient access rights.",
	ReasonSuperuserRequired:      "Superuser privileges required. You don't have sufficient access rights.",
	ReasonStaffRequired:          "Staff privileges required. You don't have sufficient access rights.",
	ReasonPermissionMissing:      "Missing required permissions. You don't have access to this resource.",
	ReasonOwnershipRequired:      "Resource ownership required. You can only modify resources you own.",
	ReasonAccessDenied:           "Access denied. You don't have permission to perform this action.",
	ReasonTokenNotFound:          "Invalid or non-existent token",
	ReasonTokenInactive:          "Token is inactive",
	ReasonTokenExpired:           "Access token has expired",
	ReasonRefreshExpired:         "Refresh token has expired",
	ReasonUserNotFound:           "User not found or inactive",
	ReasonUserInactive:           "User not found or inactive",
}

// Denial is a typed access-denial result. It implements error so services
// can return it through ordinary error plumbing; HTTP layers unwrap it
// with errors.As and render the status and body it carries.
type Denial struct {
	Reason             Reason   `json:"error"`
	Status             int      `json:"-"`
	Detail             string   `json:"detail"`
	MissingPermissions []string `json:"missing_permissions,omitempty"`
}

func Deny(reason Reason) *Denial {
	status, ok := statusByReason[reason]
	if !ok {
		status = http.StatusForbidden
	}
	return &Denial{Reason: reason, Status: status, Detail: detailByReason[reason]}
}

func (d *Denial) WithDetail(detail string) *Denial {
	d.Detail = detail
	return d
}

func (d *Denial) Error() string {
	return fmt.Sprintf("access denied (%s): %s", d.Reason, d.Detail)
}
