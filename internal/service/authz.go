package service

import "gymbook/internal/domain"

// RoleClass is the set of roles an operation accepts.
type RoleClass int

const (
	VisitorOnly RoleClass = iota
	TrainerOrManager
	ManagerOnly
	AnyRole
)

// requireRole returns ErrForbidden unless the principal's role is in class.
func requireRole(p domain.Principal, class RoleClass) error {
	var ok bool
	switch class {
	case VisitorOnly:
		ok = p.IsVisitor()
	case TrainerOrManager:
		ok = p.IsTrainerOrManager()
	case ManagerOnly:
		ok = p.IsManager()
	case AnyRole:
		ok = p.Role.Valid()
	}
	if !ok || p.ID.IsZero() {
		return ErrForbidden
	}
	return nil
}

// requireManage returns ErrForbidden unless the principal owns s or is a manager.
func requireManage(p domain.Principal, s *domain.Session) error {
	if !p.CanManage(s) {
		return ErrForbidden
	}
	return nil
}
