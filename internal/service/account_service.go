package service

import (
	"context"
	"errors"
	"strings"

	"github.com/mehrbod2002/masjidmap/internal/apperrors"
	"github.com/mehrbod2002/masjidmap/internal/models"
	"github.com/mehrbod2002/masjidmap/internal/repository"
	"github.com/sirupsen/logrus"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

type AccountService interface {
	Register(ctx context.Context, name, email, password string) (*models.Account, error)
	Authenticate(ctx context.Context, email, password string) (*models.Account, error)
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetAllAccounts(ctx context.Context, caller *models.Caller) ([]*models.Account, error)
	SetRole(ctx context.Context, caller *models.Caller, id string, role models.Role) (*models.Account, error)
	// ResolveCaller loads the current role of an authenticated account.
	ResolveCaller(ctx context.Context, id primitive.ObjectID) (*models.Caller, error)
	// EnsureMainAdmin makes sure exactly one main admin exists, creating or promoting
	// the account with the given email when none does.
	EnsureMainAdmin(ctx context.Context, name, email, password string) (*models.Account, bool, error)
}

type accountService struct {
	accountRepo repository.AccountRepository
	rt          Runtime
}

func NewAccountService(accountRepo repository.AccountRepository, rt Runtime) AccountService {
	return &accountService{accountRepo: accountRepo, rt: rt.withDefaults()}
}

func (s *accountService) Register(ctx context.Context, name, email, password string) (*models.Account, error) {
	name = strings.TrimSpace(name)
	email = models.NormalizeEmail(email)
	verr := apperrors.Validation("invalid registration")
	if name == "" {
		verr.WithField("name", "required")
	}
	if email == "" || !strings.Contains(email, "@") {
		verr.WithField("email", "invalid")
	}
	if len(password) < minPasswordLength {
		verr.WithField("password", "too short")
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, err, "hash password")
	}

	ctx, cancel := s.rt.bounded(ctx)
	defer cancel()

	account := &models.Account{Name: name, Email: email, PasswordHash: string(hash), Role: models.RoleUser}
	if err := s.accountRepo.SaveAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.New(apperrors.KindConflict, "email already registered").WithField("email", "taken")
		}
		return nil, expired(err, "register account")
	}
	s.rt.audit(ctx, account.ID, "Register", "Account registered", map[string]interface{}{"email": email})
	return account, nil
}

func (s *accountService) Authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	ctx, cancel := s.rt.bounded(ctx)
	defer cancel()

	account, err := s.accountRepo.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, expired(err, "load account")
	}
	if account == nil || bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, apperrors.New(apperrors.KindAuthenticationRequired, "invalid email or password")
	}
	s.rt.audit(ctx, account.ID, "Login", "Account logged in", nil)
	return account, nil
}

func (s *accountService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	objID, err := parseID(id, "account")
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.rt.bounded(ctx)
	defer cancel()

	account, err := s.accountRepo.GetAccountByID(ctx, objID)
	if err != nil {
		return nil, expired(err, "load account")
	}
	if account == nil {
		return nil, apperrors.NotFound("account %s not found", id)
	}
	return account, nil
}

func (s *accountService) GetAllAccounts(ctx context.Context, caller *models.Caller) ([]*models.Account, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if caller.Role != models.RoleMainAdmin {
		return nil, apperrors.Permission("only the main admin can list accounts")
	}
	ctx, cancel := s.rt.bounded(ctx)
	defer cancel()

	accounts, err := s.accountRepo.GetAllAccounts(ctx)
	return accounts, expired(err, "list accounts")
}

func (s *accountService) SetRole(ctx context.Context, caller *models.Caller, id string, role models.Role) (*models.Account, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if caller.Role != models.RoleMainAdmin {
		return nil, apperrors.Permission("only the main admin can change roles")
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, apperrors.Validation("role must be user or admin").WithField("role", "oneof user admin")
	}
	objID, err := parseID(id, "account")
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.rt.bounded(ctx)
	defer cancel()

	account, err := s.accountRepo.GetAccountByID(ctx, objID)
	if err != nil {
		return nil, expired(err, "load account")
	}
	if account == nil {
		return nil, apperrors.NotFound("account %s not found", id)
	}
	if account.Role == models.RoleMainAdmin {
		return nil, apperrors.Permission("the main admin role cannot be changed")
	}
	if account.Role == role {
		return account, nil
	}
	if err := s.accountRepo.UpdateRole(ctx, objID, account.Role, role); err != nil {
		if errors.Is(err, repository.ErrNoMatch) {
			return nil, apperrors.InvalidState("account role changed concurrently")
		}
		return nil, expired(err, "update role")
	}

	previous := account.Role
	account.Role = role
	s.rt.audit(ctx, caller.AccountID, "SetRole", "Account role changed", map[string]interface{}{
		"account_id": objID.Hex(),
		"from":       string(previous),
		"to":         string(role),
	})
	return account, nil
}

func (s *accountService) ResolveCaller(ctx context.Context, id primitive.ObjectID) (*models.Caller, error) {
	ctx, cancel := s.rt.bounded(ctx)
	defer cancel()

	account, err := s.accountRepo.GetAccountByID(ctx, id)
	if err != nil {
		return nil, expired(err, "load account")
	}
	if account == nil {
		return nil, apperrors.New(apperrors.KindAuthenticationRequired, "account no longer exists")
	}
	return &models.Caller{AccountID: account.ID, Role: account.Role}, nil
}

func (s *accountService) EnsureMainAdmin(ctx context.Context, name, email, password string) (*models.Account, bool, error) {
	ctx, cancel := s.rt.bounded(ctx)
	defer cancel()

	admins, err := s.accountRepo.GetAccountsByRole(ctx, models.RoleMainAdmin)
	if err != nil {
		return nil, false, expired(err, "load main admin")
	}
	if len(admins) > 0 {
		if len(admins) > 1 {
			s.rt.Logger.WithField("count", len(admins)).Warn("more than one main admin present")
		}
		return admins[0], false, nil
	}

	existing, err := s.accountRepo.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, false, expired(err, "load account")
	}
	if existing != nil {
		if err := s.accountRepo.UpdateRole(ctx, existing.ID, existing.Role, models.RoleMainAdmin); err != nil {
			return nil, false, expired(err, "promote main admin")
		}
		existing.Role = models.RoleMainAdmin
		s.rt.Logger.WithFields(logrus.Fields{"email": existing.Email}).Info("existing account promoted to main admin")
		return existing, true, nil
	}

	if len(password) < minPasswordLength {
		return nil, false, apperrors.Validation("main admin password is too short").WithField("password", "too short")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.KindInternal, err, "hash password")
	}
	account := &models.Account{Name: name, Email: email, PasswordHash: string(hash), Role: models.RoleMainAdmin}
	if err := s.accountRepo.SaveAccount(ctx, account); err != nil {
		return nil, false, expired(err, "create main admin")
	}
	s.rt.Logger.WithFields(logrus.Fields{"email": account.Email}).Info("main admin created")
	return account, true, nil
}
