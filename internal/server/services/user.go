package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/cryptox"
	"github.com/dmitrijs2005/indiec/internal/dbx"
	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/dmitrijs2005/indiec/internal/server/auth"
	"github.com/dmitrijs2005/indiec/internal/server/config"
	"github.com/dmitrijs2005/indiec/internal/server/documents"
	"github.com/dmitrijs2005/indiec/internal/server/hybrid"
	"github.com/dmitrijs2005/indiec/internal/server/models"
	"github.com/dmitrijs2005/indiec/internal/server/repositories/users"
)

// UserView is a user row joined with its profile document.
type UserView struct {
	*models.User
	Profile *models.UserProfile `json:"profile,omitempty"`
}

type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Phone     *string
	BirthDate *time.Time
	SexID     *int64
	CountryID *int64
	RoleID    int64
	Profile   *models.UserProfile
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// ProfileUpdate changes relational columns and/or the profile document.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	BirthDate *time.Time
	SexID     *int64
	CountryID *int64
	Profile   *models.UserProfile
}

func (u ProfileUpdate) patch() models.UserPatch {
	return models.UserPatch{
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
		BirthDate: u.BirthDate,
		SexID:     u.SexID,
		CountryID: u.CountryID,
	}
}

// changedFields names the fields set in u, for audit details.
func (u ProfileUpdate) changedFields() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(u.FirstName != nil, "first_name")
	add(u.LastName != nil, "last_name")
	add(u.Email != nil, "email")
	add(u.Phone != nil, "phone")
	add(u.BirthDate != nil, "birth_date")
	add(u.SexID != nil, "sex_id")
	add(u.CountryID != nil, "country_id")
	add(u.Profile != nil, "profile")
	return out
}

// UserService handles accounts: registration, login, profile and password
// changes, deletion and the legacy encryption migration.
type UserService struct {
	Deps
	profiles                    documents.Collection[models.UserProfile]
	hasher                      *cryptox.PasswordHasher
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	logger                      logging.Logger
}

func NewUserService(d Deps, hasher *cryptox.PasswordHasher, cfg *config.Config) *UserService {
	return &UserService{
		Deps:                        d,
		profiles:                    documents.NewCollection[models.UserProfile](d.Docs, documents.UsersProfile),
		hasher:                      hasher,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		logger:                      d.Logger.With("module", "users"),
	}
}

// Register creates the user row and its profile document in one hybrid
// operation. The email must be unique case-insensitively.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*UserView, error) {
	if _, err := s.Repos.Users(s.DB).FindByEmail(ctx, in.Email); err == nil {
		s.auditDuplicateEmail(ctx, in.Email)
		return nil, common.ErrorConflict
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	hash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	profile := in.Profile
	if profile == nil {
		profile = &models.UserProfile{}
	}
	if profile.Preferences == nil {
		profile.Preferences = models.DefaultUserPreferences()
	}

	user := &models.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
		Phone:        in.Phone,
		BirthDate:    in.BirthDate,
		SexID:        in.SexID,
		CountryID:    in.CountryID,
		RoleID:       in.RoleID,
	}

	plan := hybrid.NewPlan().
		Relational("user", func(ctx context.Context, tx dbx.DBTX, _ hybrid.Results) (any, error) {
			return s.Repos.Users(tx).Create(ctx, user)
		}).
		Compensate("user", func(ctx context.Context, tx dbx.DBTX, rel hybrid.Results) error {
			created, _ := hybrid.Get[*models.User](rel, "user")
			_, err := s.Repos.Users(tx).Delete(ctx, created.ID)
			return err
		}).
		Document("profile", func(ctx context.Context, rel hybrid.Results) (any, error) {
			created, _ := hybrid.Get[*models.User](rel, "user")
			return s.profiles.Upsert(ctx, created.ID, profile)
		})

	res, err := s.Hybrid.Execute(ctx, plan)
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			s.auditDuplicateEmail(ctx, in.Email)
		}
		return nil, err
	}

	created, _ := hybrid.Get[*models.User](res.Relational, "user")
	stored, _ := hybrid.Get[*models.UserProfile](res.Document, "profile")

	s.Audit.Record(ctx, models.AuditEntry{
		UserID:       &created.ID,
		Action:       models.AuditUserRegistered,
		ResourceType: models.ResourceUser,
		ResourceID:   fmt.Sprint(created.ID),
	})

	return &UserView{User: created, Profile: stored}, nil
}

func (s *UserService) auditDuplicateEmail(ctx context.Context, email string) {
	s.Audit.Record(ctx, models.AuditEntry{
		Action:       models.AuditRegistrationEmailExists,
		ResourceType: models.ResourceUser,
		Details:      map[string]any{"email_hash": cryptox.ComputeSearchHash(email)},
		RiskLevel:    models.RiskMedium,
	})
}

// Login verifies the credentials of an active user and issues a token.
// Every outcome is audited. Failures are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	repo := s.Repos.Users(s.DB)

	user, err := repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.Audit.Record(ctx, models.AuditEntry{
				Action:       models.AuditLoginUserNotFound,
				ResourceType: models.ResourceUser,
				Details:      map[string]any{"email_hash": cryptox.ComputeSearchHash(email)},
				RiskLevel:    models.RiskMedium,
			})
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}

	if user.StateID != models.StateActive {
		s.Audit.Record(ctx, models.AuditEntry{
			UserID:       &user.ID,
			Action:       models.AuditLoginUserInactive,
			ResourceType: models.ResourceUser,
			ResourceID:   fmt.Sprint(user.ID),
			RiskLevel:    models.RiskMedium,
		})
		return nil, common.ErrorUnauthorized
	}

	if !s.hasher.VerifyPassword(password, user.PasswordHash) {
		s.Audit.Record(ctx, models.AuditEntry{
			UserID:       &user.ID,
			Action:       models.AuditLoginWrongPassword,
			ResourceType: models.ResourceUser,
			ResourceID:   fmt.Sprint(user.ID),
			RiskLevel:    models.RiskMedium,
		})
		return nil, common.ErrorUnauthorized
	}

	now := time.Now().UTC()
	if updated, err := repo.Update(ctx, user.ID, models.UserPatch{LastAccessAt: &now}); err != nil {
		s.logger.Warn(ctx, "failed to update last access", "user_id", user.ID, "error", err)
	} else {
		user = updated
	}

	token, err := auth.GenerateToken(user.ID, user.Email, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	s.Audit.Record(ctx, models.AuditEntry{
		UserID:       &user.ID,
		Action:       models.AuditLoginSuccess,
		ResourceType: models.ResourceUser,
		ResourceID:   fmt.Sprint(user.ID),
	})

	return &LoginResult{Token: token, ExpiresAt: now.Add(s.accessTokenValidityDuration), User: user}, nil
}

// IsAdmin reports whether userID has the administrator role.
func (s *UserService) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	return s.isAdmin(ctx, userID)
}

// authorize allows actors to act on themselves; anything else needs the
// administrator role and is audited when refused.
func (s *UserService) authorize(ctx context.Context, actorID, ownerID int64) error {
	if actorID == ownerID {
		return nil
	}
	admin, err := s.IsAdmin(ctx, actorID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	if admin {
		return nil
	}
	s.Audit.Record(ctx, models.AuditEntry{
		UserID:       &actorID,
		Action:       models.AuditUnauthorizedAccessAttempt,
		ResourceType: models.ResourceUser,
		ResourceID:   fmt.Sprint(ownerID),
		RiskLevel:    models.RiskHigh,
	})
	return common.ErrorForbidden
}

// Get returns the user and its profile document.
func (s *UserService) Get(ctx context.Context, actorID, id int64) (*UserView, error) {
	if err := s.authorize(ctx, actorID, id); err != nil {
		return nil, err
	}

	user, err := s.Repos.Users(s.DB).FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if actorID != id {
		s.Audit.Record(ctx, models.AuditEntry{
			UserID:       &actorID,
			Action:       models.AuditSensitiveDataAccess,
			ResourceType: models.ResourceUser,
			ResourceID:   fmt.Sprint(id),
		})
	}
	return &UserView{User: user, Profile: profile}, nil
}

// UpdateProfile applies relational and profile changes as one hybrid
// operation.
func (s *UserService) UpdateProfile(ctx context.Context, actorID, id int64, in ProfileUpdate) (*UserView, error) {
	if err := s.authorize(ctx, actorID, id); err != nil {
		return nil, err
	}

	plan := hybrid.NewPlan().
		Relational("user", func(ctx context.Context, tx dbx.DBTX, _ hybrid.Results) (any, error) {
			return s.Repos.Users(tx).Update(ctx, id, in.patch())
		}).
		Document("profile", func(ctx context.Context, _ hybrid.Results) (any, error) {
			if in.Profile == nil {
				return s.profiles.Get(ctx, id)
			}
			return s.profiles.Upsert(ctx, id, in.Profile)
		})

	res, err := s.Hybrid.Execute(ctx, plan)
	if err != nil {
		s.Audit.Record(ctx, models.AuditEntry{
			UserID:       &actorID,
			Action:       models.AuditSensitiveDataUpdateError,
			ResourceType: models.ResourceUser,
			ResourceID:   fmt.Sprint(id),
			Details:      map[string]any{"fields": in.changedFields()},
			RiskLevel:    models.RiskMedium,
		})
		return nil, err
	}

	s.Audit.Record(ctx, models.AuditEntry{
		UserID:       &actorID,
		Action:       models.AuditSensitiveDataUpdate,
		ResourceType: models.ResourceUser,
		ResourceID:   fmt.Sprint(id),
		Details:      map[string]any{"fields": in.changedFields()},
	})

	user, _ := hybrid.Get[*models.User](res.Relational, "user")
	profile, _ := hybrid.Get[*models.UserProfile](res.Document, "profile")
	return &UserView{User: user, Profile: profile}, nil
}

// SetPhoto records an uploaded photo path on the profile document.
func (s *UserService) SetPhoto(ctx context.Context, actorID, id int64, path string) (*models.UserProfile, error) {
	if err := s.authorize(ctx, actorID, id); err != nil {
		return nil, err
	}
	if _, err := s.Repos.Users(s.DB).FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.profiles.Upsert(ctx, id, &models.UserProfile{PhotoPath: path})
}

// ChangePassword replaces the password after verifying the current one.
func (s *UserService) ChangePassword(ctx context.Context, id int64, current, next string) error {
	repo := s.Repos.Users(s.DB)
	user, err := repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if !s.hasher.VerifyPassword(current, user.PasswordHash) {
		s.Audit.Record(ctx, models.AuditEntry{
			UserID:       &id,
			Action:       models.AuditPasswordChangeFailed,
			ResourceType: models.ResourceUser,
			ResourceID:   fmt.Sprint(id),
			RiskLevel:    models.RiskMedium,
		})
		return common.NewValidationError(common.FieldError{Field: "current_password", Message: "is incorrect"})
	}

	hash, err := s.hasher.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := repo.Update(ctx, id, models.UserPatch{PasswordHash: &hash}); err != nil {
		return err
	}

	s.Audit.Record(ctx, models.AuditEntry{
		UserID:       &id,
		Action:       models.AuditPasswordChanged,
		ResourceType: models.ResourceUser,
		ResourceID:   fmt.Sprint(id),
		RiskLevel:    models.RiskMedium,
	})
	return nil
}

// Delete removes the user row, then its profile document on a best-effort
// basis.
func (s *UserService) Delete(ctx context.Context, actorID, id int64) error {
	if err := s.authorize(ctx, actorID, id); err != nil {
		return err
	}

	plan := hybrid.NewPlan().
		Relational("user", deleteOp(id, func(tx dbx.DBTX) deleter { return s.Repos.Users(tx) })).
		Document("profile", func(ctx context.Context, _ hybrid.Results) (any, error) {
			return s.profiles.Delete(ctx, id)
		})

	_, err := s.Hybrid.Execute(ctx, plan)
	if err = bestEffort(ctx, s.logger, err, "user_id", id); err != nil {
		return err
	}

	s.Audit.Record(ctx, models.AuditEntry{
		UserID:       &actorID,
		Action:       models.AuditSensitiveDataDelete,
		ResourceType: models.ResourceUser,
		ResourceID:   fmt.Sprint(id),
		RiskLevel:    models.RiskHigh,
	})
	return nil
}

func (s *UserService) List(ctx context.Context, filter models.UserFilter, page models.PageRequest) ([]models.User, int64, error) {
	items, total, err := s.Repos.Users(s.DB).FindMany(ctx, filter, page)
	if err != nil {
		return nil, 0, err
	}
	s.Audit.Record(ctx, models.AuditEntry{
		Action:       models.AuditUserSearch,
		ResourceType: models.ResourceUser,
		Details:      map[string]any{"results": len(items)},
	})
	return items, total, nil
}

// MigrateEncryption rewrites every row stored before field encryption was
// enabled, batch rows at a time, and returns the number of rows migrated.
func (s *UserService) MigrateEncryption(ctx context.Context, batch int) (int, error) {
	if batch <= 0 {
		batch = 100
	}
	repo := s.Repos.Users(s.DB)

	migrated := 0
	for {
		legacy, err := repo.FindLegacy(ctx, batch)
		if err != nil {
			return migrated, err
		}
		if len(legacy) == 0 {
			break
		}
		for i := range legacy {
			if err := repo.AdoptLegacy(ctx, &legacy[i]); err != nil {
				if errors.Is(err, users.ErrNoCipher) {
					return migrated, err
				}
				return migrated, fmt.Errorf("migrate user %d: %w", legacy[i].ID, err)
			}
			migrated++
		}
		s.logger.Info(ctx, "migrated legacy user rows", "count", migrated)
	}

	s.Audit.Record(ctx, models.AuditEntry{
		Action:       models.AuditSystemMaintenance,
		ResourceType: models.ResourceSystem,
		Details:      map[string]any{"task": "migrate_encryption", "rows": migrated},
	})
	return migrated, nil
}
