// Package auth is the thin identity surface around the engine: it verifies
// credentials and issues the JWTs the middleware checks. Session handling
// beyond that lives with an external collaborator.
package auth

import (
	"errors"
	"log"

	"rede/internal/models"
	"rede/internal/repositories"
	"rede/internal/utils"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service interface {
	Login(email, password string) (*models.User, string, string, error)
	Logout(userID uint) error
	GetUserTokenVersion(userID uint) (int, error)
}

type service struct {
	users repositories.UserRepository
}

func NewService(users repositories.UserRepository) Service {
	return &service{users: users}
}

func (s *service) Login(email, password string) (*models.User, string, string, error) {
	user, err := s.users.GetByEmail(email)
	if err != nil {
		log.Printf("login failed: no user for %s", email)
		return nil, "", "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		log.Printf("login failed: wrong password for user %d", user.ID)
		return nil, "", "", ErrInvalidCredentials
	}

	accessToken, refreshToken, err := utils.GenerateTokens(&models.UserClaims{
		UserID:       user.ID,
		Email:        user.Email,
		AccessLevel:  user.AccessLevel,
		Permissions:  models.GetDefaultPermissions(user.AccessLevel),
		TokenVersion: user.TokenVersion,
	})
	if err != nil {
		return nil, "", "", err
	}
	return user, accessToken, refreshToken, nil
}

// Logout bumps the token version so outstanding tokens stop validating.
func (s *service) Logout(userID uint) error {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return err
	}
	return s.users.UpdateTokenVersion(userID, user.TokenVersion+1)
}

func (s *service) GetUserTokenVersion(userID uint) (int, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return 0, err
	}
	return user.TokenVersion, nil
}
