package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"accessgate/internal/apperr"
)

const (
	argon2Prefix  = "$argon2id$"
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

// Argon2Params is the work factor of newly derived hashes.
type Argon2Params struct {
	Memory  uint32
	Time    uint32
	Threads uint8
}

var DefaultArgon2Params = Argon2Params{Memory: 64 * 1024, Time: 1, Threads: 4}

// PasswordHasher derives and verifies secret hashes. Hashes are argon2id in
// the PHC string format; bcrypt hashes carried over from the legacy user
// store are still accepted by Verify.
type PasswordHasher struct {
	MinLength int
	Params    Argon2Params
}

func NewPasswordHasher(minLength int, params Argon2Params) *PasswordHasher {
	return &PasswordHasher{MinLength: minLength, Params: params}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	if len(password) < h.MinLength {
		return "", apperr.ErrWeakSecret
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	p := h.Params
	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, argon2KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches hash. Malformed hashes never match.
func (h *PasswordHasher) Verify(password, hash string) bool {
	switch {
	case strings.HasPrefix(hash, argon2Prefix):
		return verifyArgon2(password, hash)
	case isBcrypt(hash):
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	default:
		return false
	}
}

// NeedsRehash reports whether hash should be replaced by one derived with the
// current parameters.
func (h *PasswordHasher) NeedsRehash(hash string) bool {
	params, _, _, err := decodeArgon2(hash)
	if err != nil {
		return true
	}
	return params != h.Params
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

func verifyArgon2(password, hash string) bool {
	p, salt, key, err := decodeArgon2(hash)
	if err != nil {
		return false
	}

	derived := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, uint32(len(key)))

	return subtle.ConstantTimeCompare(derived, key) == 1
}

func decodeArgon2(hash string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, fmt.Errorf("invalid argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, fmt.Errorf("unsupported argon2 version")
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return p, nil, nil, fmt.Errorf("invalid argon2 parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("invalid salt: %w", err)
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, fmt.Errorf("invalid key")
	}

	return p, salt, key, nil
}
