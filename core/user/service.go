package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/hifdh/core"
)

// DirectoryLimit caps the student directory. Students past it are omitted.
const DirectoryLimit = 500

var (
	// errors
	ErrNotFound         = errors.New("user not found")
	ErrEmailExists      = errors.New("a user with this email already exists")
	ErrCannotVerifyRole = errors.New("cannot verify role")
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// QueryStudents returns at most limit users with RoleStudent, ordered by email ascending.
		QueryStudents(ctx context.Context, limit int) ([]User, error)
		// UpdateUser saves the identity fields of usr (name, email, role, password, timestamps).
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	Service struct {
		repo                 Repository
		mailSvc              core.EmailService
		secretKey            []byte
		passwordResetTimeout time.Duration
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:                 repo,
		mailSvc:              mailSvc,
		secretKey:            []byte(conf.SecretKey),
		passwordResetTimeout: conf.PasswordResetTimeoutDelta,
	}
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if _, err := svc.repo.GetUserByEmail(ctx, nu.Email); err == nil {
		return User{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	} else if errors.Cause(err) != ErrNotFound {
		return User{}, errors.Wrap(err, "checking email uniqueness")
	}

	now := core.NowFunc().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, core.CleanString(id))
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

// Update saves the name, role and password (when set) of usr.
func (svc *Service) Update(ctx context.Context, usr User, name string, role Role, pwd string) (User, error) {
	if name != "" {
		usr.Name = name
	}
	if role.Valid() {
		usr.Role = role
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			return User{}, err
		}
	}
	usr.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = core.NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// Directory lists the students, sorted by email, capped at DirectoryLimit.
// A record without RoleStudent is never returned.
func (svc *Service) Directory(ctx context.Context, filter QueryFilter) ([]User, error) {
	filter.Clean()
	users, err := svc.repo.QueryStudents(ctx, DirectoryLimit)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}

	students := make([]User, 0, len(users))
	for _, usr := range users {
		if !usr.IsStudent() {
			continue
		}
		if filter.Search != "" && !core.ContainsFold(usr.Email, filter.Search) {
			continue
		}
		students = append(students, usr)
	}
	return students, nil
}

// ResolveAccess looks up the role of an authenticated identity.
// When the lookup fails the returned Access carries no role (fail closed) together with
// ErrCannotVerifyRole, so callers may keep serving the non-admin view.
func (svc *Service) ResolveAccess(ctx context.Context, id, email string) (Access, error) {
	acc := Access{UserID: id, Email: core.CleanString(email, true /* lower */)}
	if id == "" {
		return Access{}, nil
	}

	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return acc, errors.Wrap(ErrCannotVerifyRole, err.Error())
	}
	if usr.Role.Valid() {
		acc.Role = usr.Role
	}
	if acc.Email == "" {
		acc.Email = usr.Email
	}
	return acc, nil
}

// RequestPasswordReset mails a password reset link to the user owning email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *Service) sendPasswordResetMail(usr User) {
	token, err := svc.makeToken(usr)
	if err != nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	})
}

// ResetPassword sets a new password once the reset token is verified.
func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err := svc.verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err)
	}
	if err := CheckPasswordPolicy(rp.Password, usr); err != nil {
		return err
	}
	if _, err := svc.Update(ctx, usr, "", RoleNone, rp.Password); err != nil {
		return errors.Wrap(err, "updating password")
	}
	return nil
}
