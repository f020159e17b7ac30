package services

import (
	"fmt"

	"sweetshop/internal/domain"
)

// Operation names a catalog operation subject to role checks.
type Operation string

const (
	OpList     Operation = "list"
	OpSearch   Operation = "search"
	OpCreate   Operation = "create"
	OpUpdate   Operation = "update"
	OpDelete   Operation = "delete"
	OpPurchase Operation = "purchase"
	OpRestock  Operation = "restock"
)

// Operations lists every operation the policy covers.
var Operations = []Operation{OpList, OpSearch, OpCreate, OpUpdate, OpDelete, OpPurchase, OpRestock}

// Authorize decides whether role may perform op. It returns nil when allowed
// and an error wrapping ErrForbidden otherwise. Unknown roles and operations
// are denied.
func Authorize(op Operation, role domain.Role) error {
	var allowed bool
	switch role {
	case domain.RoleAdmin:
		allowed = knownOp(op)
	case domain.RoleUser:
		switch op {
		case OpList, OpSearch, OpPurchase:
			allowed = true
		case OpCreate, OpUpdate, OpDelete, OpRestock:
			allowed = false
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s cannot %s", ErrForbidden, roleLabel(role), op)
	}
	return nil
}

func knownOp(op Operation) bool {
	for _, o := range Operations {
		if o == op {
			return true
		}
	}
	return false
}

func roleLabel(r domain.Role) string {
	if r == "" {
		return "anonymous"
	}
	return string(r)
}
