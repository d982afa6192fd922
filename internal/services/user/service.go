// Package user handles account creation and profile maintenance. Referral
// placement happens here and only here: the sponsor link is fixed at
// registration and never rewritten afterwards.
package user

import (
	"errors"
	"fmt"
	"strings"

	"rede/internal/models"
	"rede/internal/repositories"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidInput       = errors.New("invalid registration input")
	ErrUnknownSponsorCode = errors.New("unknown sponsor code")
	ErrDuplicateUser      = errors.New("email, phone or cpf already registered")
)

// RegisterInput is a new account request. SponsorCode is optional; users
// without one join outside any network and generate no upline commissions.
type RegisterInput struct {
	Email       string             `json:"email"`
	Password    string             `json:"password"`
	Name        string             `json:"name"`
	Phone       string             `json:"phone"`
	CPF         string             `json:"cpf"`
	AccessLevel models.AccessLevel `json:"access_level"`
	SponsorCode string             `json:"sponsor_code"`
}

type Service interface {
	Register(input RegisterInput) (*models.User, error)
	GetByID(userID uint) (*models.User, error)
	UpdatePayoutDetails(userID uint, details models.PayoutDetails) error
	ListDirectDownline(userID uint, limit, offset int) ([]*models.User, int64, error)
}

type service struct {
	users repositories.UserRepository
}

func NewService(users repositories.UserRepository) Service {
	return &service{users: users}
}

func (s *service) Register(input RegisterInput) (*models.User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Email == "" || input.Name == "" || input.Phone == "" {
		return nil, fmt.Errorf("%w: email, name and phone are required", ErrInvalidInput)
	}
	if len(input.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}

	level := input.AccessLevel
	if level == "" {
		level = models.AccessLevelClient
	}
	if !level.Valid() || level.IsAdmin() {
		return nil, fmt.Errorf("%w: access level %q", ErrInvalidInput, input.AccessLevel)
	}

	var sponsorID *uint
	if input.SponsorCode != "" {
		sponsor, err := s.users.GetBySponsorCode(strings.TrimSpace(input.SponsorCode))
		if err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return nil, ErrUnknownSponsorCode
			}
			return nil, fmt.Errorf("failed to look up sponsor: %w", err)
		}
		id := sponsor.ID
		sponsorID = &id
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:       input.Email,
		Password:    string(hash),
		Name:        input.Name,
		Phone:       input.Phone,
		CPF:         input.CPF,
		AccessLevel: level,
		Status:      "active",
		SponsorID:   sponsorID,
		SponsorCode: newSponsorCode(),
	}
	if err := s.users.Create(user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateUser) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *service) GetByID(userID uint) (*models.User, error) {
	return s.users.GetByID(userID)
}

func (s *service) UpdatePayoutDetails(userID uint, details models.PayoutDetails) error {
	if !details.Complete() {
		return fmt.Errorf("%w: provide a pix key or full bank account", ErrInvalidInput)
	}
	return s.users.UpdatePayoutDetails(userID, details)
}

func (s *service) ListDirectDownline(userID uint, limit, offset int) ([]*models.User, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	total, err := s.users.CountDirectDownline(userID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count downline of user %d: %w", userID, err)
	}
	members, err := s.users.ListDirectDownline(userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

// newSponsorCode returns the short referral code shared in invite links.
func newSponsorCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}
