package authz

import (
	"fmt"
	"net/http"
	"strings"

	"directory-admin-service/internal/domain"
)

// AccessLevel is the ordered minimum-privilege scale declared on routes.
type AccessLevel int

const (
	Public AccessLevel = iota
	Authenticated
	Staff
	Admin
	Superuser
)

func (l AccessLevel) String() string {
	switch l {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case Staff:
		return "staff"
	case Admin:
		return "admin"
	case Superuser:
		return "superuser"
	default:
		return fmt.Sprintf("access_level(%d)", int(l))
	}
}

// CheckLevel evaluates the minimum access level against an identity.
// A nil user only satisfies Public. Higher flags imply lower levels
// (a superuser passes the staff check) but the flags themselves stay
// independent: Superuser is satisfied only by is_superuser.
func CheckLevel(user *domain.User, level AccessLevel) *Denial {
	if level == Public {
		return nil
	}
	if user == nil {
		return Deny(ReasonAuthenticationRequired)
	}
	switch level {
	case Superuser:
		if !user.IsSuperuser {
			return Deny(ReasonSuperuserRequired)
		}
	case Admin:
		if !user.IsAdmin && !user.IsSuperuser {
			return Deny(ReasonAdminRequired)
		}
	case Staff:
		if !user.IsStaffuser && !user.IsAdmin && !user.IsSuperuser {
			return Deny(ReasonStaffRequired)
		}
	}
	return nil
}

// CheckPermissions verifies that every required name appears in held,
// preserving the requested order in the denial's missing list. Superusers
// bypass the check entirely.
func CheckPermissions(user *domain.User, held []string, required []string) *Denial {
	if len(required) == 0 {
		return nil
	}
	if user == nil {
		return Deny(ReasonAuthenticationRequired)
	}
	if user.IsSuperuser {
		return nil
	}
	have := make(map[string]struct{}, len(held))
	for _, name := range held {
		have[name] = struct{}{}
	}
	var missing []string
	for _, name := range required {
		if _, ok := have[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	d := Deny(ReasonPermissionMissing)
	d.Detail = "Missing required permissions: " + strings.Join(missing, ", ")
	d.MissingPermissions = missing
	return d
}

// Input carries everything a policy tree may inspect for one evaluation.
// Permissions is the resolved permission-name set for User; OwnerID is the
// owner of the target resource when the route resolved one.
type Input struct {
	User        *domain.User
	Permissions []string
	Method      string
	OwnerID     string
}

type policyKind int

const (
	kindAllowAny policyKind = iota
	kindDenyAll
	kindLevel
	kindPermissions
	kindOwner
	kindOwnerOrReadOnly
	kindAnd
	kindOr
)

// Policy is a tagged-variant check tree: leaves test one property of the
// input, And/Or nodes combine children. Evaluate walks it recursively and
// returns nil on success or the denial that stopped it.
type Policy struct {
	kind     policyKind
	level    AccessLevel
	perms    []string
	children []*Policy
}

func AllowAny() *Policy { return &Policy{kind: kindAllowAny} }

func DenyAll() *Policy { return &Policy{kind: kindDenyAll} }

func RequireLevel(level AccessLevel) *Policy { return &Policy{kind: kindLevel, level: level} }

func RequirePermissions(names ...string) *Policy { return &Policy{kind: kindPermissions, perms: names} }

// RequireOwner passes when the caller owns the target resource.
// Superusers own everything for the purposes of this check.
func RequireOwner() *Policy { return &Policy{kind: kindOwner} }

// OwnerOrReadOnly allows safe methods for anyone and mutations only for
// the owner (or a superuser).
func OwnerOrReadOnly() *Policy { return &Policy{kind: kindOwnerOrReadOnly} }

func And(children ...*Policy) *Policy { return &Policy{kind: kindAnd, children: children} }

func Or(children ...*Policy) *Policy { return &Policy{kind: kindOr, children: children} }

func (p *Policy) Evaluate(in Input) *Denial {
	switch p.kind {
	case kindAllowAny:
		return nil
	case kindDenyAll:
		return Deny(ReasonAccessDenied)
	case kindLevel:
		return CheckLevel(in.User, p.level)
	case kindPermissions:
		return CheckPermissions(in.User, in.Permissions, p.perms)
	case kindOwner:
		return checkOwner(in)
	case kindOwnerOrReadOnly:
		if isReadMethod(in.Method) {
			return nil
		}
		return checkOwner(in)
	case kindAnd:
		for _, child := range p.children {
			if d := child.Evaluate(in); d != nil {
				return d
			}
		}
		return nil
	case kindOr:
		var first *Denial
		for _, child := range p.children {
			d := child.Evaluate(in)
			if d == nil {
				return nil
			}
			if first == nil {
				first = d
			}
		}
		if first != nil {
			return first
		}
		return Deny(ReasonAccessDenied).WithDetail("Access denied. None of the required permissions were satisfied.")
	default:
		return Deny(ReasonAccessDenied)
	}
}

func checkOwner(in Input) *Denial {
	if in.User == nil {
		return Deny(ReasonAuthenticationRequired)
	}
	if in.User.IsSuperuser {
		return nil
	}
	if in.OwnerID == "" || in.OwnerID != in.User.ID {
		return Deny(ReasonOwnershipRequired)
	}
	return nil
}

func isReadMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
