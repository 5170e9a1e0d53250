package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"tourdesk/internal/model"
	"tourdesk/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TokenTTL is how long an access token stays valid.
const TokenTTL = 24 * time.Hour

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// DTOs for Request validation
type RegisterRequest struct {
	CompanyName string `json:"company_name" binding:"required,max=255"`
	Slug        string `json:"slug" binding:"required,min=3,max=100"`
	Timezone    string `json:"timezone"`
	Currency    string `json:"currency" binding:"omitempty,len=3"`
	Username    string `json:"username" binding:"required,max=255"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type PINRequest struct {
	PIN string `json:"pin" binding:"required,pin"`
}

type CreateMemberRequest struct {
	Username string `json:"username" binding:"required,max=255"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required,oneof=owner admin staff"`
}

type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=owner admin staff"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	HasPIN    bool      `json:"has_pin"`
	CreatedAt string    `json:"created_at"`
}

type MeResponse struct {
	UserResponse
	CompanyID   uuid.UUID `json:"company_id"`
	CompanyName string    `json:"company_name"`
	CompanySlug string    `json:"company_slug"`
	Timezone    string    `json:"timezone"`
	Currency    string    `json:"currency"`
}

// UserService covers sign-up, login and team management
type UserService interface {
	RegisterCompany(ctx context.Context, req RegisterRequest) (*MeResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	GetMe(ctx context.Context, userID uuid.UUID) (*MeResponse, error)
	SetPIN(ctx context.Context, userID uuid.UUID, pin string) error
	VerifyPIN(ctx context.Context, userID uuid.UUID, pin string) error
	ListTeam(ctx context.Context, scope Scope) ([]UserResponse, error)
	CreateMember(ctx context.Context, scope Scope, req CreateMemberRequest) (*UserResponse, error)
	UpdateMemberRole(ctx context.Context, scope Scope, userID uuid.UUID, role string) (*UserResponse, error)
	RemoveMember(ctx context.Context, scope Scope, userID uuid.UUID) error
}

type userService struct {
	repo        repository.UserRepository
	companyRepo repository.CompanyRepository
	agentRepo   repository.AgentRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	jwtSecret   []byte
	now         func() time.Time
}

// NewUserService returns a new instance of UserService
func NewUserService(
	repo repository.UserRepository,
	companyRepo repository.CompanyRepository,
	agentRepo repository.AgentRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	jwtSecret string,
) UserService {
	return &userService{
		repo:        repo,
		companyRepo: companyRepo,
		agentRepo:   agentRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		jwtSecret:   []byte(jwtSecret),
		now:         time.Now,
	}
}

// Helper: parse model to standard json API response
func mapToResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		HasPIN:    user.PINHash != "",
		CreatedAt: user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func mapToMe(user *model.User) *MeResponse {
	me := &MeResponse{UserResponse: *mapToResponse(user), CompanyID: user.CompanyID}
	if user.Company != nil {
		me.CompanyName = user.Company.Name
		me.CompanySlug = user.Company.Slug
		me.Timezone = user.Company.Timezone
		me.Currency = user.Company.Currency
	}
	return me
}

func hashSecret(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.New("failed to hash secret")
	}
	return string(hashed), nil
}

// ensureUnique rejects a username or email already taken by any company.
func (s *userService) ensureUnique(ctx context.Context, username, email string) error {
	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return conflict("username already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check username: %w", err)
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return conflict("email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check email: %w", err)
	}
	return nil
}

// RegisterCompany creates a tenant with default settings, its direct agent
// and the owner account.
func (s *userService) RegisterCompany(ctx context.Context, req RegisterRequest) (*MeResponse, error) {
	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if !slugPattern.MatchString(slug) {
		return nil, invalid("slug may only contain lowercase letters, digits and dashes")
	}
	tz := req.Timezone
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, invalid("unknown timezone %q", tz)
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = "THB"
	}

	hashed, err := hashSecret(req.Password)
	if err != nil {
		return nil, err
	}

	var user model.User
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.companyRepo.FindBySlug(txCtx, slug); err == nil {
			return conflict("slug %q is taken", slug)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check slug: %w", err)
		}
		if err := s.ensureUnique(txCtx, req.Username, req.Email); err != nil {
			return err
		}

		company := model.Company{Name: strings.TrimSpace(req.CompanyName), Slug: slug, Timezone: tz, Currency: currency}
		if err := s.companyRepo.Create(txCtx, &company); err != nil {
			return fmt.Errorf("failed to create company: %w", err)
		}
		settings := model.DefaultSettings(company.ID)
		if err := s.companyRepo.SaveSettings(txCtx, &settings); err != nil {
			return fmt.Errorf("failed to create settings: %w", err)
		}
		direct := model.Agent{CompanyID: company.ID, Name: "Direct (website)", IsDirect: true, IsActive: true}
		if err := s.agentRepo.Create(txCtx, &direct); err != nil {
			return fmt.Errorf("failed to create direct agent: %w", err)
		}

		user = model.User{
			CompanyID: company.ID,
			Company:   &company,
			Username:  req.Username,
			Email:     strings.ToLower(req.Email),
			Password:  hashed,
			Role:      model.RoleOwner,
		}
		if err := s.repo.Create(txCtx, &user); err != nil {
			return fmt.Errorf("failed to create owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mapToMe(&user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(req.Email))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}

	tz := "UTC"
	if user.Company != nil && user.Company.Timezone != "" {
		tz = user.Company.Timezone
	}
	expiresAt := s.now().Add(TokenTTL)

	// Generate JWT Token
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        user.ID.String(),
		"role":       user.Role,
		"company_id": user.CompanyID.String(),
		"tz":         tz,
		"exp":        expiresAt.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	return &TokenResponse{Token: tokenString, ExpiresAt: expiresAt}, nil
}

func (s *userService) GetMe(ctx context.Context, userID uuid.UUID) (*MeResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, lookupErr("user", err)
	}
	return mapToMe(user), nil
}

func (s *userService) SetPIN(ctx context.Context, userID uuid.UUID, pin string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return lookupErr("user", err)
	}
	hashed, err := hashSecret(pin)
	if err != nil {
		return err
	}
	user.PINHash = hashed
	return s.repo.Update(ctx, user)
}

// VerifyPIN checks the quick-action PIN of a user.
func (s *userService) VerifyPIN(ctx context.Context, userID uuid.UUID, pin string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return lookupErr("user", err)
	}
	if user.PINHash == "" {
		return invalid("no PIN set")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PINHash), []byte(pin)); err != nil {
		return fmt.Errorf("%w: wrong PIN", ErrUnauthorized)
	}
	return nil
}

func (s *userService) ListTeam(ctx context.Context, scope Scope) ([]UserResponse, error) {
	users, err := s.repo.ListByCompany(ctx, scope.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team: %w", err)
	}
	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapToResponse(&users[i]))
	}
	return responses, nil
}

// canAssign reports whether the caller may hand out role. Only owners
// create or touch other owners.
func canAssign(scope Scope, role string) bool {
	if !scope.CanManage() {
		return false
	}
	return role != model.RoleOwner || scope.Role == model.RoleOwner
}

func (s *userService) CreateMember(ctx context.Context, scope Scope, req CreateMemberRequest) (*UserResponse, error) {
	if !model.ValidRole(req.Role) {
		return nil, invalid("invalid role %q", req.Role)
	}
	if !canAssign(scope, req.Role) {
		return nil, fmt.Errorf("%w: cannot create a %s", ErrForbidden, req.Role)
	}
	hashed, err := hashSecret(req.Password)
	if err != nil {
		return nil, err
	}

	user := model.User{
		CompanyID: scope.CompanyID,
		Username:  req.Username,
		Email:     strings.ToLower(req.Email),
		Password:  hashed,
		Role:      req.Role,
	}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.ensureUnique(txCtx, user.Username, user.Email); err != nil {
			return err
		}
		if err := s.repo.Create(txCtx, &user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		entry := newAuditLog(scope, model.ActionTeamChange, user.ID.String(), user.Username,
			map[string]string{"change": "added", "role": user.Role})
		return s.auditRepo.Log(txCtx, entry)
	})
	if err != nil {
		return nil, err
	}
	return mapToResponse(&user), nil
}

// member loads a user of the caller's company and checks the caller may
// change them.
func (s *userService) member(ctx context.Context, scope Scope, userID uuid.UUID) (*model.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil || user.CompanyID != scope.CompanyID {
		return nil, fmt.Errorf("user %w", ErrNotFound)
	}
	if !canAssign(scope, user.Role) {
		return nil, fmt.Errorf("%w: cannot change a %s", ErrForbidden, user.Role)
	}
	return user, nil
}

// lastOwner reports whether user is the only owner left.
func (s *userService) lastOwner(ctx context.Context, user *model.User) (bool, error) {
	if user.Role != model.RoleOwner {
		return false, nil
	}
	n, err := s.repo.CountByRole(ctx, user.CompanyID, model.RoleOwner)
	if err != nil {
		return false, fmt.Errorf("failed to count owners: %w", err)
	}
	return n <= 1, nil
}

func (s *userService) UpdateMemberRole(ctx context.Context, scope Scope, userID uuid.UUID, role string) (*UserResponse, error) {
	if !model.ValidRole(role) {
		return nil, invalid("invalid role %q", role)
	}
	if !canAssign(scope, role) {
		return nil, fmt.Errorf("%w: cannot assign %s", ErrForbidden, role)
	}

	var user *model.User
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		if user, err = s.member(txCtx, scope, userID); err != nil {
			return err
		}
		if role != model.RoleOwner {
			last, err := s.lastOwner(txCtx, user)
			if err != nil {
				return err
			}
			if last {
				return conflict("the last owner cannot be demoted")
			}
		}
		from := user.Role
		user.Role = role
		if err := s.repo.Update(txCtx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		entry := newAuditLog(scope, model.ActionTeamChange, user.ID.String(), user.Username,
			map[string]string{"change": "role", "from": from, "to": role})
		return s.auditRepo.Log(txCtx, entry)
	})
	if err != nil {
		return nil, err
	}
	return mapToResponse(user), nil
}

func (s *userService) RemoveMember(ctx context.Context, scope Scope, userID uuid.UUID) error {
	if scope.UserID != nil && *scope.UserID == userID {
		return conflict("you cannot remove yourself")
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.member(txCtx, scope, userID)
		if err != nil {
			return err
		}
		last, err := s.lastOwner(txCtx, user)
		if err != nil {
			return err
		}
		if last {
			return conflict("the last owner cannot be removed")
		}
		if err := s.repo.Delete(txCtx, scope.CompanyID, user.ID); err != nil {
			return fmt.Errorf("failed to remove user: %w", err)
		}
		entry := newAuditLog(scope, model.ActionTeamChange, user.ID.String(), user.Username,
			map[string]string{"change": "removed", "role": user.Role})
		return s.auditRepo.Log(txCtx, entry)
	})
}
