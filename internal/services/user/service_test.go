package user

import (
	"testing"

	"rede/internal/models"
	"rede/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memUsers struct {
	repositories.UserRepository
	users  map[uint]*models.User
	nextID uint
	payout map[uint]models.PayoutDetails
}

func newMemUsers() *memUsers {
	return &memUsers{
		users:  make(map[uint]*models.User),
		payout: make(map[uint]models.PayoutDetails),
	}
}

func (m *memUsers) Create(u *models.User) error {
	for _, existing := range m.users {
		if existing.Email == u.Email || existing.Phone == u.Phone {
			return repositories.ErrDuplicateUser
		}
	}
	m.nextID++
	u.ID = m.nextID
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(id uint) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetBySponsorCode(code string) (*models.User, error) {
	for _, u := range m.users {
		if u.SponsorCode == code {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (m *memUsers) UpdatePayoutDetails(userID uint, details models.PayoutDetails) error {
	m.payout[userID] = details
	return nil
}

func (m *memUsers) CountDirectDownline(userID uint) (int64, error) {
	var total int64
	for _, u := range m.users {
		if u.SponsorID != nil && *u.SponsorID == userID {
			total++
		}
	}
	return total, nil
}

func (m *memUsers) ListDirectDownline(userID uint, limit, offset int) ([]*models.User, error) {
	var recruits []*models.User
	for id := uint(1); id <= m.nextID; id++ {
		u, ok := m.users[id]
		if !ok || u.SponsorID == nil || *u.SponsorID != userID {
			continue
		}
		cp := *u
		recruits = append(recruits, &cp)
	}
	if offset >= len(recruits) {
		return nil, nil
	}
	recruits = recruits[offset:]
	if len(recruits) > limit {
		recruits = recruits[:limit]
	}
	return recruits, nil
}

func validInput() RegisterInput {
	return RegisterInput{
		Email:    "nova@example.com",
		Password: "s3cret-pass",
		Name:     "Nova",
		Phone:    "+55 11 98888-0000",
		CPF:      "987.654.321-00",
	}
}

func TestRegister(t *testing.T) {
	repo := newMemUsers()
	svc := NewService(repo)

	created, err := svc.Register(validInput())
	require.NoError(t, err)
	assert.Equal(t, models.AccessLevelClient, created.AccessLevel, "defaults to client")
	assert.Nil(t, created.SponsorID)
	assert.NotEmpty(t, created.SponsorCode)

	// The stored password is a bcrypt hash, never the plaintext.
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.Password), []byte("s3cret-pass")))
}

func TestRegister_WithSponsorCode(t *testing.T) {
	repo := newMemUsers()
	svc := NewService(repo)

	sponsor, err := svc.Register(RegisterInput{
		Email:       "sponsor@example.com",
		Password:    "s3cret-pass",
		Name:        "Sponsor",
		Phone:       "+55 11 97777-0000",
		AccessLevel: models.AccessLevelReseller,
	})
	require.NoError(t, err)

	input := validInput()
	input.SponsorCode = sponsor.SponsorCode
	recruit, err := svc.Register(input)
	require.NoError(t, err)
	require.NotNil(t, recruit.SponsorID)
	assert.Equal(t, sponsor.ID, *recruit.SponsorID)
	assert.NotEqual(t, sponsor.SponsorCode, recruit.SponsorCode)
}

func TestRegister_Validation(t *testing.T) {
	svc := NewService(newMemUsers())

	t.Run("unknown sponsor code", func(t *testing.T) {
		input := validInput()
		input.SponsorCode = "NOPE123456"
		_, err := svc.Register(input)
		assert.ErrorIs(t, err, ErrUnknownSponsorCode)
	})

	t.Run("short password", func(t *testing.T) {
		input := validInput()
		input.Password = "short"
		_, err := svc.Register(input)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("missing email", func(t *testing.T) {
		input := validInput()
		input.Email = ""
		_, err := svc.Register(input)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("admin level not self-assignable", func(t *testing.T) {
		input := validInput()
		input.AccessLevel = models.AccessLevelAdminGeneral
		_, err := svc.Register(input)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo := newMemUsers()
		dupSvc := NewService(repo)
		_, err := dupSvc.Register(validInput())
		require.NoError(t, err)
		_, err = dupSvc.Register(validInput())
		assert.ErrorIs(t, err, ErrDuplicateUser)
	})
}

func TestListDirectDownline(t *testing.T) {
	repo := newMemUsers()
	svc := NewService(repo)

	sponsor, err := svc.Register(RegisterInput{
		Email:       "sponsor@example.com",
		Password:    "s3cret-pass",
		Name:        "Sponsor",
		Phone:       "+55 11 97777-0000",
		AccessLevel: models.AccessLevelReseller,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		input := validInput()
		input.Email = string(rune('a'+i)) + "@example.com"
		input.Phone = string(rune('a'+i)) + "-phone"
		input.SponsorCode = sponsor.SponsorCode
		_, err := svc.Register(input)
		require.NoError(t, err)
	}

	// The total counts the whole downline even when the page is smaller.
	page, total, err := svc.ListDirectDownline(sponsor.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 2)

	rest, total, err := svc.ListDirectDownline(sponsor.ID, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, rest, 1)
}

func TestUpdatePayoutDetails(t *testing.T) {
	repo := newMemUsers()
	svc := NewService(repo)

	err := svc.UpdatePayoutDetails(1, models.PayoutDetails{BankName: "Banco X"})
	assert.ErrorIs(t, err, ErrInvalidInput, "bank details without account are incomplete")

	require.NoError(t, svc.UpdatePayoutDetails(1, models.PayoutDetails{PixKey: "nova@example.com"}))
	assert.Equal(t, "nova@example.com", repo.payout[1].PixKey)

	require.NoError(t, svc.UpdatePayoutDetails(1, models.PayoutDetails{
		BankName: "Banco X", BankCode: "001", Agency: "1234", Account: "567-8", AccountType: "checking",
	}))
	assert.Equal(t, "001", repo.payout[1].BankCode)
}
