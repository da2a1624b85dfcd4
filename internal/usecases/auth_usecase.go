package usecases

import (
	"errors"
	"fmt"
	"time"

	"hekumbi_chat/internal/entities"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminDisabled      = errors.New("admin login is not configured")
)

const TokenTTL = 24 * time.Hour

// AuthUsecase signs in the single operator account configured in the
// environment. The password is only kept as a bcrypt hash.
type AuthUsecase struct {
	admin     *entities.Admin
	jwtSecret []byte
	now       func() time.Time
}

// NewAuthUsecase hashes password once at startup. An empty password
// disables login.
func NewAuthUsecase(username, password, secret string) (*AuthUsecase, error) {
	uc := &AuthUsecase{jwtSecret: []byte(secret), now: time.Now}
	if password == "" {
		return uc, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	uc.admin = &entities.Admin{
		Username:     username,
		PasswordHash: string(hashed),
		Role:         entities.RoleAdmin,
	}
	return uc, nil
}

func (uc *AuthUsecase) Enabled() bool { return uc.admin != nil }

func (uc *AuthUsecase) Login(username, password string) (string, error) {
	if uc.admin == nil {
		return "", ErrAdminDisabled
	}
	if username != uc.admin.Username {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(uc.admin.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user": uc.admin.Username,
		"role": uc.admin.Role,
		"exp":  uc.now().Add(TokenTTL).Unix(),
	})
	tokenString, err := token.SignedString(uc.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
