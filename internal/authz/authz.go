// Package authz is the single capability check consulted by services before
// borrowing, returning and any administrative read or mutation.
package authz

import (
	"context"

	"libraryapi/internal/apperr"
)

const (
	RoleAdmin   = "admin"
	RoleRegular = "regular"
)

// AdminOnly is passed as the resource owner for actions that have no owner.
const AdminOnly int64 = 0

// Action names a guarded operation. It only appears in error messages and logs.
type Action string

const (
	ActionBorrow        Action = "loan:borrow"
	ActionReturn        Action = "loan:return"
	ActionReadLoan      Action = "loan:read"
	ActionListLoans     Action = "loan:list"
	ActionDeleteLoan    Action = "loan:delete"
	ActionManageCatalog Action = "catalog:manage"
	ActionManageAuthors Action = "authors:manage"
	ActionReadUser      Action = "user:read"
	ActionUpdateUser    Action = "user:update"
	ActionManageUsers   Action = "users:manage"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID int64
	Role   string
}

// Operator is the principal that operator tooling with direct database
// access acts as. Its negative id never matches a user row.
var Operator = Principal{UserID: -1, Role: RoleAdmin}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

func (p Principal) Authenticated() bool { return p.UserID != 0 }

var (
	ErrUnauthenticated = apperr.Unauthorized("authentication required")
	ErrDenied          = apperr.Forbidden("not enough permissions")
)

// Authorize allows admins everything and owners their own resources.
func Authorize(p Principal, action Action, ownerID int64) error {
	if !p.Authenticated() {
		return ErrUnauthenticated
	}
	if p.IsAdmin() {
		return nil
	}
	if ownerID != AdminOnly && ownerID == p.UserID {
		return nil
	}
	return ErrDenied
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller stored in ctx, or the zero (anonymous) principal.
func PrincipalFrom(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}
