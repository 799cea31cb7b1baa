package auth

import (
	"fmt"
	"strings"

	apperrors "github.com/spec-kit/task-service/pkg/util/errorutil"
)

// Operation names an action subject to access control.
type Operation string

const (
	OpLogin Operation = "auth.login"

	OpUserCreate Operation = "user.create"
	OpUserList   Operation = "user.list"
	OpUserRead   Operation = "user.read"
	OpUserUpdate Operation = "user.update"
	OpUserDelete Operation = "user.delete"

	OpTaskCreate Operation = "task.create"
	OpTaskDelete Operation = "task.delete"
	OpTaskAssign Operation = "task.assign"
	OpTaskRead   Operation = "task.read"
	OpTaskUpdate Operation = "task.update"
	OpTaskList   Operation = "task.list"
)

// Rule is the policy class an operation belongs to.
type Rule int

const (
	RuleDeny Rule = iota
	RulePublic
	RuleAdminOnly
	RuleAdminOrOwner
	RuleScopedList
)

var operationRules = map[Operation]Rule{
	OpLogin: RulePublic,

	OpUserCreate: RuleAdminOnly,
	OpUserList:   RuleAdminOnly,
	OpUserRead:   RuleAdminOnly,
	OpUserUpdate: RuleAdminOnly,
	OpUserDelete: RuleAdminOnly,

	OpTaskCreate: RuleAdminOnly,
	OpTaskDelete: RuleAdminOnly,
	OpTaskAssign: RuleAdminOnly,

	OpTaskRead:   RuleAdminOrOwner,
	OpTaskUpdate: RuleAdminOrOwner,

	OpTaskList: RuleScopedList,
}

// RuleFor returns the rule of op. Unknown operations are denied.
func RuleFor(op Operation) Rule {
	return operationRules[op]
}

// ResourceOwner identifies the principal owning a resource.
type ResourceOwner struct {
	ID             string
	CredentialName string
}

// ListScope is the mandatory constraint a scoped listing applies to its query.
type ListScope struct {
	Unrestricted bool
	OwnerEmail   string
}

// CanPerform reports whether principal may perform op on a resource owned by
// owner. owner is nil for unowned resources and resource-independent operations.
func CanPerform(principal PrincipalContext, op Operation, owner *ResourceOwner) bool {
	return Authorize(principal, op, owner) == nil
}

// Authorize is CanPerform with the reason for a denial: an UNAUTHORIZED error
// when there is no identity, FORBIDDEN when the identity lacks the right.
func Authorize(principal PrincipalContext, op Operation, owner *ResourceOwner) error {
	rule := RuleFor(op)
	if rule == RulePublic {
		return nil
	}
	if !principal.Authenticated() {
		return apperrors.NewUnauthorized("authentication required")
	}

	switch rule {
	case RuleAdminOnly:
		if principal.IsAdmin() {
			return nil
		}
		return apperrors.NewForbidden("admin role required")
	case RuleAdminOrOwner:
		if principal.IsAdmin() || ownedBy(principal, owner) {
			return nil
		}
		return apperrors.NewForbidden("not allowed to access this resource")
	case RuleScopedList:
		return nil
	default:
		return apperrors.NewForbidden("operation not permitted")
	}
}

// Precheck applies every part of the rule for op that does not depend on the
// resource. It lets route guards reject early without loading data.
func Precheck(principal PrincipalContext, op Operation) error {
	if RuleFor(op) == RuleAdminOrOwner {
		if !principal.Authenticated() {
			return apperrors.NewUnauthorized("authentication required")
		}
		return nil
	}
	return Authorize(principal, op, nil)
}

// ScopeFor returns the listing constraint for op. Administrators get the
// unscoped collection; other principals only what they own. The caller
// resolves OwnerEmail to the owner's id before querying.
func ScopeFor(principal PrincipalContext, op Operation) (ListScope, error) {
	if RuleFor(op) != RuleScopedList {
		return ListScope{}, apperrors.NewInternalError(fmt.Errorf("operation %s is not a scoped listing", op))
	}
	if err := Authorize(principal, op, nil); err != nil {
		return ListScope{}, err
	}
	if principal.IsAdmin() {
		return ListScope{Unrestricted: true}, nil
	}
	return ListScope{OwnerEmail: principal.CredentialName}, nil
}

func ownedBy(principal PrincipalContext, owner *ResourceOwner) bool {
	if owner == nil || owner.CredentialName == "" {
		return false
	}
	return strings.EqualFold(owner.CredentialName, principal.CredentialName)
}
