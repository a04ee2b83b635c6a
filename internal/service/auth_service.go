package service

import (
	"context"
	"errors"
	"gymbook/internal/auth"
	"gymbook/internal/domain"
	"gymbook/internal/repository"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrHashingFailed   = errors.New("failed to hash password")
	ErrTokenGeneration = errors.New("failed to generate authentication token")
)

// NewAccount is the input for provisioning a user of any role.
type NewAccount struct {
	Role        domain.Role
	Username    string
	Password    string
	Name        string
	Email       string
	Rating      float64 // trainers only
	MaxVisitors int     // trainers only
}

// Profile is the role-independent view of a user.
type Profile struct {
	ID       string      `json:"id"`
	Role     domain.Role `json:"role"`
	Username string      `json:"username"`
	Name     string      `json:"name"`
	Email    string      `json:"email"`
}

// AccountService provisions users and issues tokens for them. There is no self-service
// registration or login; accounts are created by managers or the admin CLI.
type AccountService interface {
	Provision(ctx context.Context, account NewAccount) (domain.Principal, error)
	IssueToken(ctx context.Context, username string) (string, domain.Principal, error)
	Profile(ctx context.Context, principal domain.Principal) (*Profile, error)
}

type accountService struct {
	visitors repository.VisitorRepository
	trainers repository.TrainerRepository
	managers repository.ManagerRepository
	tokens   *auth.TokenManager
}

// NewAccountService creates a new AccountService. tokens may be nil when only provisioning is needed.
func NewAccountService(
	visitors repository.VisitorRepository,
	trainers repository.TrainerRepository,
	managers repository.ManagerRepository,
	tokens *auth.TokenManager,
) AccountService {
	return &accountService{
		visitors: visitors,
		trainers: trainers,
		managers: managers,
		tokens:   tokens,
	}
}

// Provision validates, hashes the password and stores the user in the collection of its role.
func (s *accountService) Provision(ctx context.Context, account NewAccount) (domain.Principal, error) {
	// 1. Basic input validation
	account.Username = strings.TrimSpace(account.Username)
	if account.Username == "" || account.Password == "" {
		return domain.Principal{}, invalidInput("username and password are required")
	}
	if !account.Role.Valid() {
		return domain.Principal{}, invalidInput("unknown role %q", account.Role)
	}
	if account.Rating < 0 || account.MaxVisitors < 0 {
		return domain.Principal{}, invalidInput("rating and maxVisitors cannot be negative")
	}

	// 2. Usernames are unique across all three collections
	if _, _, err := s.lookup(ctx, account.Username); err == nil {
		return domain.Principal{}, ErrUsernameTaken
	} else if !errors.Is(err, ErrNotFound) {
		return domain.Principal{}, err
	}

	// 3. Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(account.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Principal{}, ErrHashingFailed
	}

	// 4. Save in the role's collection
	principal := domain.Principal{Role: account.Role}
	switch account.Role {
	case domain.RoleVisitor:
		principal.ID, err = s.visitors.Create(ctx, &domain.Visitor{
			Username: account.Username, PasswordHash: string(hashedPassword),
			Name: account.Name, Email: account.Email,
		})
	case domain.RoleTrainer:
		principal.ID, err = s.trainers.Create(ctx, &domain.Trainer{
			Username: account.Username, PasswordHash: string(hashedPassword),
			Name: account.Name, Email: account.Email,
			Rating: account.Rating, MaxVisitors: account.MaxVisitors,
		})
	case domain.RoleManager:
		principal.ID, err = s.managers.Create(ctx, &domain.Manager{
			Username: account.Username, PasswordHash: string(hashedPassword),
			Name: account.Name, Email: account.Email,
		})
	}
	if err != nil {
		// Lost a race with another request for the same username; the unique index caught it.
		if errors.Is(err, repository.ErrDuplicateKey) {
			return domain.Principal{}, ErrUsernameTaken
		}
		return domain.Principal{}, storeError(err)
	}
	return principal, nil
}

// IssueToken signs a bearer token for the user with the given username.
func (s *accountService) IssueToken(ctx context.Context, username string) (string, domain.Principal, error) {
	if s.tokens == nil {
		return "", domain.Principal{}, ErrTokenGeneration
	}
	principal, _, err := s.lookup(ctx, username)
	if err != nil {
		return "", domain.Principal{}, err
	}
	token, err := s.tokens.Issue(principal)
	if err != nil {
		return "", domain.Principal{}, ErrTokenGeneration
	}
	return token, principal, nil
}

// Profile returns the stored profile of the principal.
func (s *accountService) Profile(ctx context.Context, principal domain.Principal) (*Profile, error) {
	profile := &Profile{ID: principal.ID.Hex(), Role: principal.Role}
	var err error
	switch principal.Role {
	case domain.RoleVisitor:
		var v *domain.Visitor
		if v, err = s.visitors.GetByID(ctx, principal.ID); err == nil {
			profile.Username, profile.Name, profile.Email = v.Username, v.Name, v.Email
		}
	case domain.RoleTrainer:
		var t *domain.Trainer
		if t, err = s.trainers.GetByID(ctx, principal.ID); err == nil {
			profile.Username, profile.Name, profile.Email = t.Username, t.Name, t.Email
		}
	case domain.RoleManager:
		var m *domain.Manager
		if m, err = s.managers.GetByID(ctx, principal.ID); err == nil {
			profile.Username, profile.Name, profile.Email = m.Username, m.Name, m.Email
		}
	default:
		return nil, ErrForbidden
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeError(err)
	}
	return profile, nil
}

// lookup finds username in the visitor, trainer and manager collections, in that order.
func (s *accountService) lookup(ctx context.Context, username string) (domain.Principal, string, error) {
	v, err := s.visitors.GetByUsername(ctx, username)
	if err == nil {
		return domain.Principal{ID: v.ID, Role: domain.RoleVisitor}, v.Name, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.Principal{}, "", storeError(err)
	}

	t, err := s.trainers.GetByUsername(ctx, username)
	if err == nil {
		return domain.Principal{ID: t.ID, Role: domain.RoleTrainer}, t.Name, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.Principal{}, "", storeError(err)
	}

	m, err := s.managers.GetByUsername(ctx, username)
	if err == nil {
		return domain.Principal{ID: m.ID, Role: domain.RoleManager}, m.Name, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.Principal{}, "", storeError(err)
	}
	return domain.Principal{}, "", ErrNotFound
}
