package registry

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrEmailTaken        = errors.New("email already registered")
	ErrUUIDTaken         = errors.New("uuid already registered")
	ErrSecretPathTaken   = errors.New("secret path already registered")
	ErrPortIndexConflict = errors.New("listener slot already taken")
)
