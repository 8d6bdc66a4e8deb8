package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/rankboard/internal/apperror"
	"github.com/sakif/rankboard/internal/auth"
	"github.com/sakif/rankboard/internal/model"
	"github.com/sakif/rankboard/internal/repository"
	"github.com/sakif/rankboard/internal/storage"
)

// UserService manages accounts and their avatars. Ownership rules (admin or
// self) are enforced here, on top of whatever the router gates.
type UserService struct {
	users     repository.UserRepository
	subs      repository.SubmissionRepository
	passwords *auth.PasswordService
	blobs     storage.BlobStore
	cleaner   *storage.Cleaner
	logger    *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	subs repository.SubmissionRepository,
	passwords *auth.PasswordService,
	blobs storage.BlobStore,
	cleaner *storage.Cleaner,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		subs:      subs,
		passwords: passwords,
		blobs:     blobs,
		cleaner:   cleaner,
		logger:    logger,
	}
}

// NewUser is the input to Create. An empty Role means model.RoleUser.
type NewUser struct {
	Username string
	Email    string
	Password string
	Role     model.Role
}

func (s *UserService) Create(ctx context.Context, in NewUser) (*model.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if in.Role == "" {
		in.Role = model.RoleUser
	}
	if !in.Role.Valid() {
		return nil, apperror.ValidationFailed("role", "role must be admin or user")
	}
	if err := auth.CheckPasswordPolicy(in.Password); err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	u := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user created",
		slog.Int64("user_id", u.ID),
		slog.String("username", u.Username),
		slog.String("role", string(u.Role)),
	)
	return u, nil
}

// Get returns the profile of id. Users may only read their own.
func (s *UserService) Get(ctx context.Context, who auth.Identity, id int64) (*model.User, error) {
	if err := canManage(who, id); err != nil {
		return nil, err
	}
	return s.users.GetUserByID(ctx, id)
}

// List returns all accounts, optionally only those with role.
func (s *UserService) List(ctx context.Context, role model.Role) ([]model.User, error) {
	if role != "" && !role.Valid() {
		return nil, apperror.ValidationFailed("role", "role must be admin or user")
	}
	all, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if role == "" {
		return all, nil
	}
	out := make([]model.User, 0, len(all))
	for _, u := range all {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

// Update applies a partial profile change. Only admins may change roles, and
// the last admin cannot be demoted.
func (s *UserService) Update(ctx context.Context, who auth.Identity, id int64, upd model.UserUpdate) (*model.User, error) {
	if err := canManage(who, id); err != nil {
		return nil, err
	}

	if upd.Username != nil {
		v := strings.TrimSpace(*upd.Username)
		if v == "" {
			return nil, apperror.ValidationFailed("username", "username must not be empty")
		}
		upd.Username = &v
	}
	if upd.Email != nil {
		v := strings.TrimSpace(*upd.Email)
		if v == "" {
			return nil, apperror.ValidationFailed("email", "email must not be empty")
		}
		upd.Email = &v
	}
	if upd.Role != nil {
		if !who.IsAdmin() {
			return nil, apperror.Forbidden("only admins can change roles")
		}
		if !upd.Role.Valid() {
			return nil, apperror.ValidationFailed("role", "role must be admin or user")
		}
		if *upd.Role != model.RoleAdmin {
			if err := s.keepOneAdmin(ctx, id); err != nil {
				return nil, err
			}
		}
	}
	if upd.Password != nil {
		if err := auth.CheckPasswordPolicy(*upd.Password); err != nil {
			return nil, apperror.ValidationFailed("password", err.Error())
		}
		hash, err := s.passwords.Hash(*upd.Password)
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		upd.PasswordHash = &hash
		upd.Password = nil
	}

	u, err := s.users.UpdateUser(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user updated",
		slog.Int64("user_id", id),
		slog.Int64("by", who.UserID),
	)
	return u, nil
}

// Delete removes the account with everything that cascades from it, then
// the files those rows pointed at. Admins cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, who auth.Identity, id int64) error {
	if who.UserID == id {
		return apperror.ValidationFailed("id", "you cannot delete your own account")
	}
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if u.IsAdmin() {
		if err := s.keepOneAdmin(ctx, id); err != nil {
			return err
		}
	}
	files, err := s.subs.ListSubmissionFilenamesByUser(ctx, id)
	if err != nil {
		return err
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}

	s.cleaner.Remove(ctx, storage.BucketSubmissions, files...)
	if u.AvatarFilename != nil {
		s.cleaner.Remove(ctx, storage.BucketAvatars, *u.AvatarFilename)
	}
	s.logger.Info("user deleted",
		slog.Int64("user_id", id),
		slog.Int64("by", who.UserID),
		slog.Int("files", len(files)),
	)
	return nil
}

// keepOneAdmin fails if id is currently the only admin.
func (s *UserService) keepOneAdmin(ctx context.Context, id int64) error {
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if !u.IsAdmin() {
		return nil
	}
	n, err := s.users.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if n <= 1 {
		return apperror.Conflict("at least one admin must remain")
	}
	return nil
}

// AvatarFilename is the blob name for a new avatar; ext includes the dot.
func AvatarFilename(userID int64, ext string) string {
	return fmt.Sprintf("avatar_%d_%s%s", userID, xid.New().String(), ext)
}

// SetAvatar stores img as the user's avatar and removes the previous one.
func (s *UserService) SetAvatar(ctx context.Context, who auth.Identity, id int64, ext, contentType string, img io.Reader) (*model.User, error) {
	if err := canManage(who, id); err != nil {
		return nil, err
	}
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name := AvatarFilename(id, ext)
	if err := s.blobs.Put(ctx, storage.BucketAvatars, name, contentType, img); err != nil {
		return nil, fmt.Errorf("storing avatar: %w", err)
	}
	if err := s.users.SetAvatar(ctx, id, &name); err != nil {
		s.cleaner.Remove(ctx, storage.BucketAvatars, name)
		return nil, err
	}
	if u.AvatarFilename != nil {
		s.cleaner.Remove(ctx, storage.BucketAvatars, *u.AvatarFilename)
	}

	s.logger.Info("avatar updated", slog.Int64("user_id", id))
	return s.users.GetUserByID(ctx, id)
}

// ClearAvatar detaches and removes the user's avatar, if any.
func (s *UserService) ClearAvatar(ctx context.Context, who auth.Identity, id int64) (*model.User, error) {
	if err := canManage(who, id); err != nil {
		return nil, err
	}
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.AvatarFilename == nil {
		return u, nil
	}
	if err := s.users.SetAvatar(ctx, id, nil); err != nil {
		return nil, err
	}
	s.cleaner.Remove(ctx, storage.BucketAvatars, *u.AvatarFilename)
	return s.users.GetUserByID(ctx, id)
}

// OpenAvatar streams an avatar by blob name. Names are public.
func (s *UserService) OpenAvatar(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := storage.ValidName(name); err != nil {
		return nil, apperror.NotFoundMessage("avatar not found")
	}
	rc, err := s.blobs.Open(ctx, storage.BucketAvatars, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, apperror.NotFoundMessage("avatar not found")
		}
		return nil, fmt.Errorf("opening avatar: %w", err)
	}
	return rc, nil
}

// EnsureRootAdmin creates the bootstrap admin unless a user with that email
// already exists. It reports whether an account was created.
func (s *UserService) EnsureRootAdmin(ctx context.Context, username, email, password string) (bool, error) {
	if email == "" {
		return false, nil
	}
	_, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return false, err
	}

	u, err := s.Create(ctx, NewUser{
		Username: username,
		Email:    email,
		Password: password,
		Role:     model.RoleAdmin,
	})
	if err != nil {
		return false, fmt.Errorf("creating root admin: %w", err)
	}
	s.logger.Info("root admin created", slog.Int64("user_id", u.ID), slog.String("email", u.Email))
	return true, nil
}

func canManage(who auth.Identity, id int64) error {
	if who.IsAdmin() || who.UserID == id {
		return nil
	}
	return apperror.Forbidden("you can only access your own account")
}
