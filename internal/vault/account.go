// account.go implements the owner account lifecycle: signup, login, profile
// and password changes, and full account deletion.
package vault

import (
	"context"

	"github.com/botvault/botvault/internal/auth"
	"github.com/botvault/botvault/internal/db/models"
	"github.com/botvault/botvault/internal/validation"

	"github.com/botvault/botvault/internal/audit"
)

// Session pairs an authenticated user with their freshly issued session
// token.
type Session struct {
	User  *models.User
	Token string
}

// Signup registers a new owner account and returns a logged-in session.
func (s *Service) Signup(ctx context.Context, username, email, password string) (*Session, error) {
	if err := validation.Username(username); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	if err := validation.Email(email); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	if err := validation.Password(password); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	if existing, err := s.users.GetByEmail(ctx, email); err != nil {
		return nil, storeErr("lookup email", err)
	} else if existing != nil {
		return nil, validationf("email is already registered")
	}
	if existing, err := s.users.GetByUsername(ctx, username); err != nil {
		return nil, storeErr("lookup username", err)
	} else if existing != nil {
		return nil, validationf("username is already taken")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, storeErr("hash password", err)
	}

	user := &models.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, storeErr("create user", err)
	}

	s.record(ctx, audit.Owner(user.ID, models.ActionUserSignup, "user", user.ID, nil))

	return s.issueSession(user)
}

// Login authenticates an owner by email and password. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, storeErr("lookup email", err)
	}
	if user == nil || !auth.CheckPassword(password, user.PasswordHash) {
		return nil, ErrUnauthorized
	}

	s.record(ctx, audit.Owner(user.ID, models.ActionUserLogin, "user", user.ID,
		map[string]interface{}{"method": "password"}))

	return s.issueSession(user)
}

func (s *Service) issueSession(user *models.User) (*Session, error) {
	token, err := s.sessions.Issue(user.ID, user.Username, user.Email)
	if err != nil {
		return nil, storeErr("issue session", err)
	}
	return &Session{User: user, Token: token}, nil
}

// GetUser loads an owner's account record.
func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, storeErr("lookup user", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

// UpdateProfile changes an owner's username and email.
func (s *Service) UpdateProfile(ctx context.Context, userID, username, email string) (*models.User, error) {
	if err := validation.Username(username); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	if err := validation.Email(email); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if email != user.Email {
		if existing, err := s.users.GetByEmail(ctx, email); err != nil {
			return nil, storeErr("lookup email", err)
		} else if existing != nil {
			return nil, validationf("email is already registered")
		}
	}
	if username != user.Username {
		if existing, err := s.users.GetByUsername(ctx, username); err != nil {
			return nil, storeErr("lookup username", err)
		} else if existing != nil {
			return nil, validationf("username is already taken")
		}
	}

	if err := s.users.UpdateProfile(ctx, userID, username, email); err != nil {
		return nil, storeErr("update profile", err)
	}

	s.record(ctx, audit.Owner(userID, models.ActionProfileUpdate, "user", userID, nil))

	user.Username = username
	user.Email = email
	return user, nil
}

// ChangePassword rotates an owner's password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(currentPassword, user.PasswordHash) {
		return ErrUnauthorized
	}
	if err := validation.Password(newPassword); err != nil {
		return &ValidationError{Message: err.Error()}
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return storeErr("hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return storeErr("update password", err)
	}

	s.record(ctx, audit.Owner(userID, models.ActionPasswordChange, "user", userID, nil))
	return nil
}

// DeleteAccount removes the owner and everything they own after verifying
// their password. The audit trail goes with the account; deletion itself is
// only visible in server logs.
func (s *Service) DeleteAccount(ctx context.Context, userID, password string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return ErrUnauthorized
	}

	if err := s.users.DeleteCascade(ctx, userID); err != nil {
		return storeErr("delete account", err)
	}

	s.logger.Info("account deleted", "user_id", userID, "username", user.Username)
	return nil
}
