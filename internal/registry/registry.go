package registry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"

	"github.com/SentimentalK/Avalon-Tunnel/internal/audit"
	"github.com/SentimentalK/Avalon-Tunnel/model"
	"github.com/SentimentalK/Avalon-Tunnel/params"
	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

type CreateUserOptions struct {
	Email string
	Notes string
	Level int
	UUID  string // optional; generated when empty
}

type UpdateUserOptions struct {
	Email   *string
	Enabled *bool
	Level   *int
	Notes   *string
}

// Registry owns the user lifecycle. UUID and SecretPath are fixed at creation
// and can never be changed through Update; the enabled flag is the soft
// lifecycle, Delete is the only hard removal and also detaches the user's
// device access rows.
type Registry struct {
	db       *gorm.DB
	userRepo UserRepository
}

func NewRegistry(db *gorm.DB, userRepo UserRepository) *Registry {
	return &Registry{
		db:       db,
		userRepo: userRepo,
	}
}

// GenerateSecretPath returns a random fixed-length alphanumeric URL segment.
func GenerateSecretPath(length int) string {
	alphabet := params.SecretPathAlphabet
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			panic(fmt.Errorf("failed to generate random path: %w", err))
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf)
}

// classifyConflict maps a unique-constraint violation to the violated column.
// The sqlite driver names the offending column in the constraint message,
// e.g. "UNIQUE constraint failed: user.email".
func classifyConflict(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return err
	}
	msg := sqliteErr.Error()
	switch {
	case strings.Contains(msg, "user.email"):
		return ErrEmailTaken
	case strings.Contains(msg, "user.uuid"):
		return ErrUUIDTaken
	case strings.Contains(msg, "user.secret_path"):
		return ErrSecretPathTaken
	case strings.Contains(msg, "user.port_index"):
		return ErrPortIndexConflict
	}
	return err
}

func (r *Registry) Create(ctx context.Context, opts CreateUserOptions) (*model.User, error) {
	if _, err := mail.ParseAddress(opts.Email); err != nil {
		return nil, ErrInvalidEmail
	}
	userUUID := opts.UUID
	if userUUID == "" {
		userUUID = uuid.NewString()
	}
	secretPath := GenerateSecretPath(params.SecretPathLength)

	// The slot read and the insert are not one atomic statement, so two
	// concurrent creates can race to the same port_index. The loser hits the
	// unique index and retries with a fresh slot.
	for attempt := 0; ; attempt++ {
		next, ok, err := r.userRepo.MaxPortIndex(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			next++
		}

		user := model.User{
			UUID:       userUUID,
			SecretPath: secretPath,
			Email:      opts.Email,
			Level:      opts.Level,
			Enabled:    true,
			Notes:      opts.Notes,
			PortIndex:  next,
		}
		err = r.userRepo.Create(ctx, &user)
		if err == nil {
			audit.RecordUserCreated(ctx, &user)
			return &user, nil
		}
		err = classifyConflict(err)
		if errors.Is(err, ErrPortIndexConflict) && attempt < params.PortSlotAssignRetries {
			continue
		}
		return nil, err
	}
}

func (r *Registry) GetByUUID(ctx context.Context, userUUID string) (*model.User, error) {
	user, err := r.userRepo.FirstByUUID(ctx, userUUID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// List returns users in creation order.
func (r *Registry) List(ctx context.Context, enabledOnly bool) ([]*model.User, error) {
	return r.userRepo.Find(ctx, enabledOnly)
}

// Update applies the recognized mutable fields. It returns (false, nil) when
// no recognized field was supplied; immutable fields are not part of the
// options type and cannot be smuggled in.
func (r *Registry) Update(ctx context.Context, userUUID string, opts UpdateUserOptions) (bool, error) {
	columns := map[string]interface{}{}
	if opts.Email != nil {
		if _, err := mail.ParseAddress(*opts.Email); err != nil {
			return false, ErrInvalidEmail
		}
		columns["email"] = *opts.Email
	}
	if opts.Enabled != nil {
		columns["enabled"] = *opts.Enabled
	}
	if opts.Level != nil {
		columns["level"] = *opts.Level
	}
	if opts.Notes != nil {
		columns["notes"] = *opts.Notes
	}
	if len(columns) == 0 {
		return false, nil
	}

	rows, err := r.userRepo.Updates(ctx, userUUID, columns)
	if err != nil {
		return false, classifyConflict(err)
	}
	if rows == 0 {
		return false, ErrUserNotFound
	}

	audit.RecordUserUpdated(ctx, userUUID, columns)
	return true, nil
}

// Delete removes a user and its device access rows in one transaction.
func (r *Registry) Delete(ctx context.Context, userUUID string) (bool, error) {
	var deleted int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		repo := r.userRepo.WithTx(tx)
		user, err := repo.FirstByUUID(ctx, userUUID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Where("user_id = ?", user.ID).Delete(&model.DeviceAccessLog{}).Error; err != nil {
			return err
		}
		deleted, err = repo.Delete(ctx, userUUID)
		return err
	})
	if err != nil {
		return false, err
	}
	if deleted == 0 {
		return false, nil
	}

	audit.RecordUserDeleted(ctx, userUUID)
	return true, nil
}
