package domain

import "go.mongodb.org/mongo-driver/bson/primitive"

// Principal is the authenticated caller: a stable id plus exactly one role.
type Principal struct {
	ID   primitive.ObjectID
	Role Role
}

func (p Principal) IsVisitor() bool { return p.Role == RoleVisitor }

func (p Principal) IsManager() bool { return p.Role == RoleManager }

func (p Principal) IsTrainerOrManager() bool {
	return p.Role == RoleTrainer || p.Role == RoleManager
}

// Owns reports whether the principal is the trainer that created s.
func (p Principal) Owns(s *Session) bool {
	return s != nil && p.Role == RoleTrainer && s.TrainerID == p.ID
}

// CanManage reports whether the principal may mutate s (its roster or its fields).
// Managers are treated as owners of every session.
func (p Principal) CanManage(s *Session) bool {
	if s == nil {
		return false
	}
	return p.IsManager() || p.Owns(s)
}
