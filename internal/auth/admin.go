package auth

import (
	"crypto/subtle"
	"fmt"

	"github.com/nerrad567/gray-logic-entities/internal/infrastructure/config"
)

// CheckAdmin verifies a login against the configured admin credential.
//
// admin.Password may be plain text or an Argon2id PHC string. Returns
// ErrLoginDisabled when no password is configured and
// ErrInvalidCredentials on any mismatch.
func CheckAdmin(admin config.AdminConfig, username, password string) error {
	if admin.Password == "" {
		return ErrLoginDisabled
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(admin.Username)) == 1

	var passOK bool
	if IsPasswordHash(admin.Password) {
		ok, err := VerifyPassword(password, admin.Password)
		if err != nil {
			return fmt.Errorf("admin password: %w", err)
		}
		passOK = ok
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(admin.Password)) == 1
	}

	if !userOK || !passOK {
		return ErrInvalidCredentials
	}
	return nil
}
