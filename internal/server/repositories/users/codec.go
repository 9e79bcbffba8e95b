package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/indiec/internal/cryptox"
	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/dmitrijs2005/indiec/internal/server/models"
)

// sensitive holds the stored form of the encrypted user columns.
type sensitive struct {
	FirstName string
	LastName  string
	Email     string
	Phone     *string
	Version   int
}

// FieldFailure describes one sensitive column that could not be encrypted
// or decrypted.
type FieldFailure struct {
	Op     string // "encrypt" or "decrypt"
	UserID int64
	Field  string
	Err    error
}

// FailureHook is told about every cipher failure on a sensitive column.
type FailureHook func(ctx context.Context, f FieldFailure)

// Codec converts sensitive user columns between their in-memory plaintext
// and their stored form. With a nil cipher it runs in degraded mode: values
// are stored as plaintext with encryption_version 0 and each write logs one
// warning.
type Codec struct {
	cipher    *cryptox.FieldCipher
	logger    logging.Logger
	onFailure FailureHook
}

func NewCodec(cipher *cryptox.FieldCipher, logger logging.Logger) *Codec {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Codec{cipher: cipher, logger: logger, onFailure: func(context.Context, FieldFailure) {}}
}

// SetFailureHook installs h. It must be called before the codec is shared.
func (c *Codec) SetFailureHook(h FailureHook) {
	if h != nil {
		c.onFailure = h
	}
}

// Encrypting reports whether stored values are encrypted.
func (c *Codec) Encrypting() bool { return c.cipher != nil }

func (c *Codec) warnPlaintext(ctx context.Context, op string) {
	c.logger.Warn(ctx, "storing sensitive user fields without encryption", "op", op)
}

// encodeUser encodes every sensitive column of u.
func (c *Codec) encodeUser(ctx context.Context, u *models.User) (sensitive, error) {
	if c.cipher == nil {
		c.warnPlaintext(ctx, "write")
		return sensitive{FirstName: u.FirstName, LastName: u.LastName, Email: u.Email, Phone: u.Phone}, nil
	}

	encrypt := func(field, v string) (string, error) {
		out, err := c.cipher.EncryptField(v)
		if err != nil {
			c.onFailure(ctx, FieldFailure{Op: "encrypt", UserID: u.ID, Field: field, Err: err})
			return "", fmt.Errorf("encrypt %s: %w", field, err)
		}
		return out, nil
	}

	var (
		s   = sensitive{Version: models.EncryptionAESv1}
		err error
	)
	if s.FirstName, err = encrypt("first_name", u.FirstName); err != nil {
		return s, err
	}
	if s.LastName, err = encrypt("last_name", u.LastName); err != nil {
		return s, err
	}
	if s.Email, err = encrypt("email", u.Email); err != nil {
		return s, err
	}
	if u.Phone != nil {
		phone, err := encrypt("phone", *u.Phone)
		if err != nil {
			return s, err
		}
		s.Phone = &phone
	}
	return s, nil
}

// decodeUser replaces the stored sensitive values on u with plaintext. A
// field that fails to decrypt is logged, reported to the failure hook and
// left as stored; its column name is returned.
func (c *Codec) decodeUser(ctx context.Context, u *models.User) (failed []string) {
	if u.EncryptionVersion == models.EncryptionNone {
		return nil
	}
	decode := func(field string, v *string) {
		plain, ok := c.decodeField(ctx, u.ID, field, *v)
		if !ok {
			failed = append(failed, field)
			return
		}
		*v = plain
	}
	decode("first_name", &u.FirstName)
	decode("last_name", &u.LastName)
	decode("email", &u.Email)
	if u.Phone != nil {
		v := *u.Phone
		decode("phone", &v)
		u.Phone = &v
	}
	return failed
}

func (c *Codec) decodeField(ctx context.Context, userID int64, field, stored string) (string, bool) {
	if c.cipher == nil {
		c.logger.Warn(ctx, "encrypted user field read without a configured key", "user_id", userID, "field", field)
		return stored, false
	}
	plain, err := c.cipher.DecryptField(stored)
	if err != nil {
		c.logger.Warn(ctx, "user field decryption failed", "user_id", userID, "field", field, "error", err)
		c.onFailure(ctx, FieldFailure{Op: "decrypt", UserID: userID, Field: field, Err: err})
		return stored, false
	}
	return plain, true
}

// ErrNoCipher is returned by operations that require an encryption key.
var ErrNoCipher = errors.New("no encryption key configured")

// adoptLegacy prepares a row written before encryption_version existed for
// rewriting at version 1. Values that already look encrypted and decrypt
// under the current key are kept, everything else is encrypted.
func (c *Codec) adoptLegacy(ctx context.Context, u *models.User) (sensitive, string, error) {
	if c.cipher == nil {
		return sensitive{}, "", ErrNoCipher
	}

	adopt := func(field, v string) (stored, plain string, err error) {
		if cryptox.IsEncrypted(v) {
			if p, derr := c.cipher.DecryptField(v); derr == nil {
				return v, p, nil
			}
			c.logger.Warn(ctx, "legacy value looks encrypted but does not decrypt, encrypting as plaintext", "user_id", u.ID, "field", field)
		}
		enc, err := c.cipher.EncryptField(v)
		return enc, v, err
	}

	var (
		s          = sensitive{Version: models.EncryptionAESv1}
		emailPlain string
		err        error
	)
	if s.FirstName, _, err = adopt("first_name", u.FirstName); err != nil {
		return s, "", err
	}
	if s.LastName, _, err = adopt("last_name", u.LastName); err != nil {
		return s, "", err
	}
	if s.Email, emailPlain, err = adopt("email", u.Email); err != nil {
		return s, "", err
	}
	if u.Phone != nil {
		phone, _, err := adopt("phone", *u.Phone)
		if err != nil {
			return s, "", err
		}
		s.Phone = &phone
	}
	return s, cryptox.ComputeSearchHash(emailPlain), nil
}
