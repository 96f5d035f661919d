// internal/app/services/provisioning/provisioning.go
//
// Package provisioning creates identities and workspaces together with the
// owner membership that makes them usable. Each flow is a single unit of
// work: either every document exists afterwards or none does.
package provisioning

import (
	"context"
	"errors"
	"fmt"

	accountstore "github.com/dalemusser/teamhub/internal/app/store/accounts"
	membershipstore "github.com/dalemusser/teamhub/internal/app/store/memberships"
	rolestore "github.com/dalemusser/teamhub/internal/app/store/roles"
	userstore "github.com/dalemusser/teamhub/internal/app/store/users"
	workspacestore "github.com/dalemusser/teamhub/internal/app/store/workspaces"
	"github.com/dalemusser/teamhub/internal/app/system/apperr"
	"github.com/dalemusser/teamhub/internal/app/system/authutil"
	"github.com/dalemusser/teamhub/internal/app/system/authz"
	"github.com/dalemusser/teamhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/teamhub/internal/app/system/metrics"
	"github.com/dalemusser/teamhub/internal/app/system/normalize"
	"github.com/dalemusser/teamhub/internal/app/system/txn"
	"github.com/dalemusser/teamhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DefaultWorkspaceName names the workspace every new user starts with.
const DefaultWorkspaceName = "My Workspace"

var (
	ErrAlreadyRegistered  = apperr.Conflict("User already exists with this email")
	ErrInvalidCredentials = apperr.Unauthorized("Invalid credentials")
	ErrAccountDeactivated = apperr.Unauthorized("Account is deactivated")
	ErrOwnerRoleMissing   = apperr.Precondition("Owner role not found. Please seed roles first.")
	ErrUserNotFound       = apperr.NotFound("User not found")
)

// Service runs the provisioning flows.
type Service struct {
	db         *mongo.Database
	users      *userstore.Store
	accounts   *accountstore.Store
	workspaces *workspacestore.Store
	members    *membershipstore.Store
	roles      *rolestore.Catalog
	log        *zap.Logger
	rec        metrics.Recorder

	defaultName string
}

// Option configures a Service.
type Option func(*Service)

// WithDefaultWorkspaceName overrides DefaultWorkspaceName.
func WithDefaultWorkspaceName(name string) Option {
	return func(s *Service) {
		if n := normalize.Name(name); n != "" {
			s.defaultName = n
		}
	}
}

// WithRecorder publishes flow outcomes to rec.
func WithRecorder(rec metrics.Recorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.rec = rec
		}
	}
}

// New wires a Service over db.
func New(db *mongo.Database, roles *rolestore.Catalog, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		db:          db,
		users:       userstore.New(db),
		accounts:    accountstore.New(db),
		workspaces:  workspacestore.New(db),
		members:     membershipstore.New(db),
		roles:       roles,
		log:         log,
		rec:         metrics.Nop{},
		defaultName: DefaultWorkspaceName,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// WorkspaceName is the name given to workspaces created at sign-up.
func (s *Service) WorkspaceName() string { return s.defaultName }

// Result is what a registration produced.
type Result struct {
	User        models.User
	WorkspaceID primitive.ObjectID
	// Created is false when an OAuth login matched an existing user.
	Created bool
}

func (s *Service) ownerRole(ctx context.Context) (models.Role, error) {
	r, err := s.roles.Required(ctx, authz.RoleOwner)
	if errors.Is(err, rolestore.ErrCatalogMissing) {
		return models.Role{}, ErrOwnerRoleMissing
	}
	if err != nil {
		return models.Role{}, apperr.Internal(err)
	}
	return r, nil
}

// mapErr keeps apperr values and wraps everything else as Internal.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	return apperr.Internal(err)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Shared steps                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// createWorkspace inserts a workspace and its OWNER membership.
func (s *Service) createWorkspace(ctx context.Context, undo *txn.Undo, ownerID primitive.ObjectID, name, description string, ownerRoleID primitive.ObjectID) (models.Workspace, error) {
	ws, err := s.workspaces.Create(ctx, models.Workspace{
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
	})
	if err != nil {
		return models.Workspace{}, fmt.Errorf("create workspace: %w", err)
	}
	undo.Delete(s.workspaces.Collection(), ws.ID)

	m, err := s.members.Create(ctx, models.Membership{
		UserID:      ownerID,
		WorkspaceID: ws.ID,
		RoleID:      ownerRoleID,
	})
	if err != nil {
		return models.Workspace{}, fmt.Errorf("create owner membership: %w", err)
	}
	undo.Delete(s.members.Collection(), m.ID)
	return ws, nil
}

// bootstrapUser creates u, its account, the default workspace and the
// owner membership, then points the user at that workspace.
func (s *Service) bootstrapUser(ctx context.Context, undo *txn.Undo, u models.User, acct models.Account, ownerRoleID primitive.ObjectID) (Result, error) {
	u, err := s.users.Create(ctx, u)
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		return Result{}, ErrAlreadyRegistered
	}
	if err != nil {
		return Result{}, fmt.Errorf("create user: %w", err)
	}
	undo.Delete(s.users.Collection(), u.ID)

	acct.UserID = u.ID
	a, err := s.accounts.Create(ctx, acct)
	if errors.Is(err, accountstore.ErrDuplicate) {
		return Result{}, ErrAlreadyRegistered
	}
	if err != nil {
		return Result{}, fmt.Errorf("create account: %w", err)
	}
	undo.Delete(s.accounts.Collection(), a.ID)

	desc := fmt.Sprintf("Workspace created for user %s", u.Name)
	ws, err := s.createWorkspace(ctx, undo, u.ID, s.defaultName, desc, ownerRoleID)
	if err != nil {
		return Result{}, err
	}

	if err := s.users.SetCurrentWorkspace(ctx, u.ID, &ws.ID); err != nil {
		return Result{}, fmt.Errorf("set current workspace: %w", err)
	}
	u.CurrentWorkspace = &ws.ID
	return Result{User: u, WorkspaceID: ws.ID, Created: true}, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Flows                                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// LocalRegistration is the input to RegisterLocalUser.
type LocalRegistration struct {
	Email    string
	Name     string
	Password string
}

// RegisterLocalUser creates a password user with an email account, a
// default workspace and the owner membership.
func (s *Service) RegisterLocalUser(ctx context.Context, in LocalRegistration) (Result, error) {
	res, err := s.registerLocal(ctx, in)
	s.rec.Provisioning("register", err)
	return res, err
}

func (s *Service) registerLocal(ctx context.Context, in LocalRegistration) (Result, error) {
	email := normalize.Email(in.Email)

	hash, err := authutil.HashPassword(in.Password)
	if err != nil {
		return Result{}, mapErr(err)
	}
	owner, err := s.ownerRole(ctx)
	if err != nil {
		return Result{}, err
	}

	var res Result
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context, undo *txn.Undo) error {
		if _, err := s.users.GetByEmail(ctx, email); err == nil {
			return ErrAlreadyRegistered
		} else if !errors.Is(err, userstore.ErrNotFound) {
			return err
		}

		var err error
		res, err = s.bootstrapUser(ctx, undo,
			models.User{Name: in.Name, Email: email, PasswordHash: hash},
			models.Account{Provider: accountstore.ProviderEmail, ProviderID: email, Email: email},
			owner.ID)
		return err
	})
	if err != nil {
		return Result{}, mapErr(err)
	}

	s.log.Info("user registered",
		zap.String("user_id", res.User.ID.Hex()),
		zap.String("workspace_id", res.WorkspaceID.Hex()))
	return res, nil
}

// OAuthProfile is what an OAuth provider told us about the user.
type OAuthProfile struct {
	Provider    string
	ProviderID  string
	DisplayName string
	Email       string
	Picture     string
	Tokens      models.Tokens
}

// LoginOrRegisterOAuthUser provisions a first-time OAuth user or links and
// refreshes the provider account of an existing one.
func (s *Service) LoginOrRegisterOAuthUser(ctx context.Context, p OAuthProfile) (Result, error) {
	res, err := s.loginOrRegister(ctx, p)
	s.rec.Provisioning("oauth", err)
	return res, err
}

func (s *Service) loginOrRegister(ctx context.Context, p OAuthProfile) (Result, error) {
	email := normalize.Email(p.Email)
	if email == "" || p.ProviderID == "" {
		return Result{}, apperr.Validation("Provider did not return an email address", nil)
	}
	owner, err := s.ownerRole(ctx)
	if err != nil {
		return Result{}, err
	}

	account := models.Account{
		Provider:     p.Provider,
		ProviderID:   p.ProviderID,
		Email:        email,
		AccessToken:  p.Tokens.AccessToken,
		RefreshToken: p.Tokens.RefreshToken,
		TokenExpiry:  p.Tokens.Expiry,
	}

	var res Result
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context, undo *txn.Undo) error {
		u, err := s.users.GetByEmail(ctx, email)
		if errors.Is(err, userstore.ErrNotFound) {
			name := p.DisplayName
			if normalize.Name(name) == "" {
				name = email
			}
			res, err = s.bootstrapUser(ctx, undo,
				models.User{Name: name, Email: email, ProfilePicture: p.Picture},
				account, owner.ID)
			return err
		}
		if err != nil {
			return err
		}
		if !u.IsActive {
			return ErrAccountDeactivated
		}

		existing, err := s.accounts.FindByUser(ctx, u.ID, p.Provider)
		switch {
		case errors.Is(err, accountstore.ErrNotFound):
			account.UserID = u.ID
			a, err := s.accounts.Create(ctx, account)
			if err != nil {
				return fmt.Errorf("link account: %w", err)
			}
			undo.Delete(s.accounts.Collection(), a.ID)
		case err != nil:
			return err
		default:
			if err := s.accounts.UpdateTokens(ctx, existing.ID, p.Tokens); err != nil {
				return fmt.Errorf("update tokens: %w", err)
			}
		}

		if p.Picture != "" {
			set, err := s.users.SetPictureIfEmpty(ctx, u.ID, p.Picture)
			if err != nil {
				return fmt.Errorf("set picture: %w", err)
			}
			if set {
				u.ProfilePicture = p.Picture
			}
		}

		res = Result{User: *u}
		if u.CurrentWorkspace != nil {
			res.WorkspaceID = *u.CurrentWorkspace
		}
		return nil
	})
	if err != nil {
		return Result{}, mapErr(err)
	}
	return res, nil
}

// CreateWorkspace creates a workspace owned by ownerID along with the
// owner's OWNER membership. Name and description are reduced to plain text.
func (s *Service) CreateWorkspace(ctx context.Context, ownerID primitive.ObjectID, name, description string) (models.Workspace, error) {
	ws, err := s.createWorkspaceFlow(ctx, ownerID, name, description)
	s.rec.Provisioning("create_workspace", err)
	return ws, err
}

func (s *Service) createWorkspaceFlow(ctx context.Context, ownerID primitive.ObjectID, name, description string) (models.Workspace, error) {
	name = normalize.Name(htmlsanitize.PlainText(name))
	if name == "" {
		return models.Workspace{}, apperr.Validation("Workspace name is required",
			map[string]string{"name": "Workspace name is required"})
	}
	description = htmlsanitize.PlainText(description)

	u, err := s.users.GetByID(ctx, ownerID)
	if errors.Is(err, userstore.ErrNotFound) {
		return models.Workspace{}, ErrUserNotFound
	}
	if err != nil {
		return models.Workspace{}, apperr.Internal(err)
	}
	if !u.IsActive {
		return models.Workspace{}, ErrAccountDeactivated
	}

	owner, err := s.ownerRole(ctx)
	if err != nil {
		return models.Workspace{}, err
	}

	var ws models.Workspace
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context, undo *txn.Undo) error {
		var err error
		ws, err = s.createWorkspace(ctx, undo, ownerID, name, description, owner.ID)
		return err
	})
	if err != nil {
		return models.Workspace{}, mapErr(err)
	}
	return ws, nil
}

// VerifyLocalCredentials resolves an email account and checks its password.
// Every failure, including a deactivated user, is ErrInvalidCredentials.
func (s *Service) VerifyLocalCredentials(ctx context.Context, email, password string) (*models.User, error) {
	acct, err := s.accounts.FindByProvider(ctx, accountstore.ProviderEmail, normalize.Email(email))
	if errors.Is(err, accountstore.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	u, err := s.users.GetByID(ctx, acct.UserID)
	if errors.Is(err, userstore.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !u.IsActive || !u.HasPassword() || !authutil.CheckPassword(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
