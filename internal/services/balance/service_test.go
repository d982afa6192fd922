package balance

import (
	"context"
	"sync"
	"testing"
	"time"

	"rede/internal/models"
	"rede/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLedger is an in-memory LedgerRepository with the same conditional
// semantics as the SQL implementation: guarded debits and optimistic status
// transitions.
type memLedger struct {
	mu          sync.Mutex
	commissions map[uint]*models.Commission
	withdrawals map[uint]*models.Withdrawal
	available   map[uint]float64
	blocked     map[uint]float64
	nextID      uint

	// scripted one-shot errors per commission id, consumed in order
	transitionErrs map[uint][]error
}

func newMemLedger() *memLedger {
	return &memLedger{
		commissions:    make(map[uint]*models.Commission),
		withdrawals:    make(map[uint]*models.Withdrawal),
		available:      make(map[uint]float64),
		blocked:        make(map[uint]float64),
		transitionErrs: make(map[uint][]error),
	}
}

func (l *memLedger) CreateCommission(c *models.Commission) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.commissions {
		if existing.OrderID == c.OrderID && existing.BeneficiaryUserID == c.BeneficiaryUserID && existing.Level == c.Level {
			return repositories.ErrDuplicateCommission
		}
	}
	l.nextID++
	c.ID = l.nextID
	cp := *c
	l.commissions[c.ID] = &cp
	return nil
}

func (l *memLedger) GetCommission(id uint) (*models.Commission, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.commissions[id]
	if !ok {
		return nil, repositories.ErrCommissionNotFound
	}
	cp := *c
	return &cp, nil
}

func (l *memLedger) CommissionsExistForOrder(orderID uint) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.commissions {
		if c.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (l *memLedger) CommissionsByOrder(orderID uint) ([]*models.Commission, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.Commission
	for _, c := range l.commissions {
		if c.OrderID == orderID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (l *memLedger) CommissionsDueForRelease(now time.Time, limit int) ([]*models.Commission, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.Commission
	for _, c := range l.commissions {
		if c.Status == models.CommissionStatusBlocked && !c.AvailableAt.After(now) {
			cp := *c
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (l *memLedger) TransitionCommission(id uint, from, to models.CommissionStatus, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if errs := l.transitionErrs[id]; len(errs) > 0 {
		err := errs[0]
		l.transitionErrs[id] = errs[1:]
		return err
	}
	c, ok := l.commissions[id]
	if !ok {
		return repositories.ErrCommissionNotFound
	}
	if c.Status != from {
		return repositories.ErrStaleTransition
	}
	c.Status = to
	switch to {
	case models.CommissionStatusAvailable:
		c.ReleasedAt = &at
	case models.CommissionStatusPaid:
		c.PaidAt = &at
	case models.CommissionStatusReversed:
		c.ReversedAt = &at
	}
	return nil
}

func (l *memLedger) ListCommissions(filter repositories.CommissionFilter) ([]*models.Commission, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.Commission
	for _, c := range l.commissions {
		if filter.UserID != 0 && c.BeneficiaryUserID != filter.UserID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

func (l *memLedger) SumCommissionAmounts(userID uint, statuses []models.CommissionStatus) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	included := make(map[models.CommissionStatus]bool)
	for _, s := range statuses {
		included[s] = true
	}
	var total float64
	for _, c := range l.commissions {
		if c.BeneficiaryUserID == userID && included[c.Status] {
			total += c.Amount
		}
	}
	return total, nil
}

func (l *memLedger) SumCommissionsByLevel(userID uint, statuses []models.CommissionStatus) ([]repositories.LevelTotal, error) {
	return nil, nil
}

func (l *memLedger) SumCommissionsSince(userID uint, since time.Time) (float64, error) {
	return 0, nil
}

func (l *memLedger) CreditBlocked(userID uint, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blocked[userID] += amount
	return nil
}

func (l *memLedger) DebitBlocked(userID uint, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.blocked[userID] < amount {
		return repositories.ErrInsufficientFunds
	}
	l.blocked[userID] -= amount
	return nil
}

func (l *memLedger) ReleaseBlocked(userID uint, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.blocked[userID] < amount {
		return repositories.ErrInsufficientFunds
	}
	l.blocked[userID] -= amount
	l.available[userID] += amount
	return nil
}

func (l *memLedger) CreditAvailable(userID uint, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.available[userID] += amount
	return nil
}

func (l *memLedger) DebitAvailable(userID uint, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.available[userID] < amount {
		return repositories.ErrInsufficientFunds
	}
	l.available[userID] -= amount
	return nil
}

func (l *memLedger) GetBalances(userID uint) (float64, float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.available[userID], l.blocked[userID], nil
}

func (l *memLedger) CreateWithdrawal(w *models.Withdrawal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	w.ID = l.nextID
	cp := *w
	l.withdrawals[w.ID] = &cp
	return nil
}

func (l *memLedger) GetWithdrawal(id uint) (*models.Withdrawal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.withdrawals[id]
	if !ok {
		return nil, repositories.ErrWithdrawalNotFound
	}
	cp := *w
	return &cp, nil
}

func (l *memLedger) TransitionWithdrawal(id uint, from, to models.WithdrawalStatus, at time.Time, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.withdrawals[id]
	if !ok {
		return repositories.ErrWithdrawalNotFound
	}
	if w.Status != from {
		return repositories.ErrStaleTransition
	}
	w.Status = to
	switch to {
	case models.WithdrawalStatusApproved:
		w.ApprovedAt = &at
	case models.WithdrawalStatusPaid:
		w.PaidAt = &at
	case models.WithdrawalStatusRejected:
		w.RejectedAt = &at
		w.RejectReason = reason
	}
	return nil
}

func (l *memLedger) ListWithdrawals(filter repositories.WithdrawalFilter) ([]*models.Withdrawal, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.Withdrawal
	for _, w := range l.withdrawals {
		if filter.UserID != 0 && w.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && w.Status != filter.Status {
			continue
		}
		cp := *w
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

func (l *memLedger) SumWithdrawalAmounts(userID uint, excluding []models.WithdrawalStatus) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	excluded := make(map[models.WithdrawalStatus]bool)
	for _, s := range excluding {
		excluded[s] = true
	}
	var total float64
	for _, w := range l.withdrawals {
		if w.UserID == userID && !excluded[w.Status] {
			total += w.Amount
		}
	}
	return total, nil
}

func (l *memLedger) ExportWithdrawals(status models.WithdrawalStatus) ([]repositories.WithdrawalExportRow, error) {
	return nil, nil
}

// ExecuteInTransaction mirrors the SQL implementation's rollback: a failing
// fn leaves commissions, withdrawals and balances untouched. Scripted
// transition errors stay consumed so retry loops make progress.
func (l *memLedger) ExecuteInTransaction(fn func(repositories.LedgerRepository) error) error {
	l.mu.Lock()
	commissions := make(map[uint]*models.Commission, len(l.commissions))
	for id, c := range l.commissions {
		cp := *c
		commissions[id] = &cp
	}
	withdrawals := make(map[uint]*models.Withdrawal, len(l.withdrawals))
	for id, w := range l.withdrawals {
		cp := *w
		withdrawals[id] = &cp
	}
	available := make(map[uint]float64, len(l.available))
	for id, v := range l.available {
		available[id] = v
	}
	blocked := make(map[uint]float64, len(l.blocked))
	for id, v := range l.blocked {
		blocked[id] = v
	}
	nextID := l.nextID
	l.mu.Unlock()

	if err := fn(l); err != nil {
		l.mu.Lock()
		l.commissions = commissions
		l.withdrawals = withdrawals
		l.available = available
		l.blocked = blocked
		l.nextID = nextID
		l.mu.Unlock()
		return err
	}
	return nil
}

// memUsers is a minimal UserRepository for lookups by id.
type memUsers struct {
	users map[uint]*models.User
}

func (m *memUsers) Create(u *models.User) error { m.users[u.ID] = u; return nil }
func (m *memUsers) GetByID(id uint) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}
func (m *memUsers) GetByEmail(string) (*models.User, error)       { return nil, repositories.ErrUserNotFound }
func (m *memUsers) GetBySponsorCode(string) (*models.User, error) { return nil, repositories.ErrUserNotFound }
func (m *memUsers) Update(*models.User) error                     { return nil }
func (m *memUsers) UpdateTokenVersion(uint, int) error            { return nil }
func (m *memUsers) UpdatePayoutDetails(uint, models.PayoutDetails) error {
	return nil
}
func (m *memUsers) CountDirectDownline(uint) (int64, error) { return 0, nil }
func (m *memUsers) ListDirectDownline(uint, int, int) ([]*models.User, error) {
	return nil, nil
}

// staticSettings serves a fixed configuration.
type staticSettings struct {
	cfg models.CommissionSettings
}

func (s *staticSettings) Get(context.Context) (*models.CommissionSettings, error) {
	cfg := s.cfg
	return &cfg, nil
}

func (s *staticSettings) Update(ctx context.Context, cfg *models.CommissionSettings) error {
	s.cfg = *cfg
	return nil
}

func newTestService(t *testing.T) (Service, *memLedger, *memUsers) {
	t.Helper()
	ledger := newMemLedger()
	users := &memUsers{users: make(map[uint]*models.User)}
	cfg := models.DefaultCommissionSettings()
	svc := NewService(ledger, users, &staticSettings{cfg: cfg}, nil, &NoopMetricsCollector{})
	return svc, ledger, users
}

func seedCommission(l *memLedger, orderID, userID uint, amount float64, status models.CommissionStatus, availableAt time.Time) *models.Commission {
	c := &models.Commission{
		OrderID:           orderID,
		BeneficiaryUserID: userID,
		Level:             len(l.commissions),
		Amount:            amount,
		Status:            status,
		AvailableAt:       availableAt,
	}
	if err := l.CreateCommission(c); err != nil {
		panic(err)
	}
	l.commissions[c.ID].Status = status
	return c
}

func userWithPayout(id uint) *models.User {
	u := &models.User{
		Email:         "u@example.com",
		Name:          "U",
		PayoutDetails: &models.PayoutDetails{PixKey: "u@example.com"},
	}
	u.ID = id
	return u
}

func TestReleaseDue(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	now := time.Now().UTC()

	due := seedCommission(ledger, 1, 10, 100, models.CommissionStatusBlocked, now.Add(-time.Hour))
	notDue := seedCommission(ledger, 2, 10, 50, models.CommissionStatusBlocked, now.Add(24*time.Hour))
	ledger.CreditBlocked(10, 150)

	result, err := svc.ReleaseDue(context.Background(), now, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 1, result.Released)
	assert.Equal(t, 0, result.Conflicts)

	released, _ := ledger.GetCommission(due.ID)
	assert.Equal(t, models.CommissionStatusAvailable, released.Status)
	assert.NotNil(t, released.ReleasedAt)

	untouched, _ := ledger.GetCommission(notDue.ID)
	assert.Equal(t, models.CommissionStatusBlocked, untouched.Status)

	available, blocked, _ := ledger.GetBalances(10)
	assert.Equal(t, 100.0, available)
	assert.Equal(t, 50.0, blocked)
}

func TestReleaseDue_ConflictCounted(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	now := time.Now().UTC()

	c := seedCommission(ledger, 1, 10, 100, models.CommissionStatusBlocked, now.Add(-time.Hour))
	ledger.CreditBlocked(10, 100)
	ledger.transitionErrs[c.ID] = []error{repositories.ErrStaleTransition}

	result, err := svc.ReleaseDue(context.Background(), now, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Conflicts)
	assert.Equal(t, 0, result.Released)

	// Nothing moved for the lost row.
	available, blocked, _ := ledger.GetBalances(10)
	assert.Equal(t, 0.0, available)
	assert.Equal(t, 100.0, blocked)
}

func TestReverseOrder(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	now := time.Now().UTC()

	// Order 7 produced three commissions in different lifecycle stages.
	blocked := seedCommission(ledger, 7, 10, 100, models.CommissionStatusBlocked, now.Add(24*time.Hour))
	released := seedCommission(ledger, 7, 11, 50, models.CommissionStatusAvailable, now.Add(-time.Hour))
	paid := seedCommission(ledger, 7, 12, 50, models.CommissionStatusPaid, now.Add(-time.Hour))
	ledger.CreditBlocked(10, 100)
	ledger.CreditAvailable(11, 50)

	reversed, err := svc.ReverseOrder(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, reversed)

	c1, _ := ledger.GetCommission(blocked.ID)
	assert.Equal(t, models.CommissionStatusReversed, c1.Status)
	c2, _ := ledger.GetCommission(released.ID)
	assert.Equal(t, models.CommissionStatusReversed, c2.Status)
	c3, _ := ledger.GetCommission(paid.ID)
	assert.Equal(t, models.CommissionStatusPaid, c3.Status, "paid commissions stay paid")

	_, blockedBal, _ := ledger.GetBalances(10)
	assert.Equal(t, 0.0, blockedBal)
	availableBal, _, _ := ledger.GetBalances(11)
	assert.Equal(t, 0.0, availableBal)

	// Re-running the reversal is a no-op.
	again, err := svc.ReverseOrder(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 0, again)
}

func TestReverseOrder_RetriesAfterRelease(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	now := time.Now().UTC()

	// The sweep releases this commission between reversal's read and write:
	// the first transition attempt is stale, the retry sees "available".
	c := seedCommission(ledger, 7, 10, 100, models.CommissionStatusBlocked, now.Add(-time.Hour))
	ledger.CreditBlocked(10, 100)
	ledger.transitionErrs[c.ID] = []error{repositories.ErrStaleTransition}
	_, err := svc.ReleaseDue(context.Background(), now, 100)
	require.NoError(t, err) // lost the scripted conflict, commission untouched

	_, err = svc.ReleaseDue(context.Background(), now, 100)
	require.NoError(t, err) // now actually released

	reversed, err := svc.ReverseOrder(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, reversed)

	available, blocked, _ := ledger.GetBalances(10)
	assert.Equal(t, 0.0, available)
	assert.Equal(t, 0.0, blocked)
}

func TestReverseOrder_SkipsWithdrawnFunds(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	now := time.Now().UTC()

	// User 10's released commission was already withdrawn; user 11 still
	// holds theirs. The reversal must skip the first without erroring so a
	// redelivered cancellation never wedges on it.
	drained := seedCommission(ledger, 7, 10, 100, models.CommissionStatusAvailable, now.Add(-time.Hour))
	intact := seedCommission(ledger, 7, 11, 50, models.CommissionStatusAvailable, now.Add(-time.Hour))
	ledger.CreditAvailable(10, 30)
	ledger.CreditAvailable(11, 50)

	reversed, err := svc.ReverseOrder(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, reversed)

	c1, _ := ledger.GetCommission(drained.ID)
	assert.Equal(t, models.CommissionStatusAvailable, c1.Status, "left for operator attention")
	c2, _ := ledger.GetCommission(intact.ID)
	assert.Equal(t, models.CommissionStatusReversed, c2.Status)

	available, _, _ := ledger.GetBalances(10)
	assert.Equal(t, 30.0, available, "partial funds untouched")
}

func TestRequestWithdrawal(t *testing.T) {
	svc, ledger, users := newTestService(t)
	users.users[1] = userWithPayout(1)
	ledger.CreditAvailable(1, 500)

	w, err := svc.RequestWithdrawal(context.Background(), 1, 200)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusPending, w.Status)
	assert.Equal(t, 200.0, w.Amount)
	assert.Equal(t, 10.0, w.Fee, "5%% fee on 200")
	assert.Equal(t, 190.0, w.NetAmount)
	assert.NotEmpty(t, w.Reference)
	assert.Equal(t, "u@example.com", w.PayoutDetails.PixKey, "payout details snapshotted")

	available, _, _ := ledger.GetBalances(1)
	assert.Equal(t, 300.0, available, "full amount reserved at request time")
}

func TestRequestWithdrawal_Validation(t *testing.T) {
	svc, ledger, users := newTestService(t)
	users.users[1] = userWithPayout(1)
	noPayout := &models.User{Email: "n@example.com", Name: "N"}
	noPayout.ID = 2
	users.users[2] = noPayout
	ledger.CreditAvailable(1, 500)
	ledger.CreditAvailable(2, 500)

	ctx := context.Background()

	_, err := svc.RequestWithdrawal(ctx, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.RequestWithdrawal(ctx, 1, 49.99)
	assert.ErrorIs(t, err, ErrBelowMinimum, "just below the 50 minimum")

	_, err = svc.RequestWithdrawal(ctx, 1, 600)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = svc.RequestWithdrawal(ctx, 2, 100)
	assert.ErrorIs(t, err, ErrMissingPayoutDetails)

	// Exactly the minimum and exactly the balance both pass.
	_, err = svc.RequestWithdrawal(ctx, 1, 50)
	require.NoError(t, err)
	_, err = svc.RequestWithdrawal(ctx, 1, 450)
	require.NoError(t, err)
	available, _, _ := ledger.GetBalances(1)
	assert.Equal(t, 0.0, available)
}

func TestWithdrawalModeration(t *testing.T) {
	svc, ledger, users := newTestService(t)
	users.users[1] = userWithPayout(1)
	ledger.CreditAvailable(1, 500)
	ctx := context.Background()

	w, err := svc.RequestWithdrawal(ctx, 1, 200)
	require.NoError(t, err)

	// Paying before approval is illegal.
	err = svc.PayWithdrawal(ctx, w.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, svc.ApproveWithdrawal(ctx, w.ID))
	require.NoError(t, svc.PayWithdrawal(ctx, w.ID))

	final, _ := ledger.GetWithdrawal(w.ID)
	assert.Equal(t, models.WithdrawalStatusPaid, final.Status)
	assert.NotNil(t, final.ApprovedAt)
	assert.NotNil(t, final.PaidAt)

	// Paying never touches the balance again.
	available, _, _ := ledger.GetBalances(1)
	assert.Equal(t, 300.0, available)

	// Terminal status rejects further moves.
	err = svc.RejectWithdrawal(ctx, w.ID, "too late")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRejectWithdrawal_RestoresReservation(t *testing.T) {
	svc, ledger, users := newTestService(t)
	users.users[1] = userWithPayout(1)
	ledger.CreditAvailable(1, 500)
	ctx := context.Background()

	w, err := svc.RequestWithdrawal(ctx, 1, 200)
	require.NoError(t, err)

	require.NoError(t, svc.RejectWithdrawal(ctx, w.ID, "bank details bounced"))

	rejected, _ := ledger.GetWithdrawal(w.ID)
	assert.Equal(t, models.WithdrawalStatusRejected, rejected.Status)
	assert.Equal(t, "bank details bounced", rejected.RejectReason)

	available, _, _ := ledger.GetBalances(1)
	assert.Equal(t, 500.0, available, "reservation restored in full")
}

func TestReconcile(t *testing.T) {
	svc, ledger, users := newTestService(t)
	users.users[1] = userWithPayout(1)
	now := time.Now().UTC()
	ctx := context.Background()

	// Two live commissions and one reversed (reversed must not count).
	seedCommission(ledger, 1, 1, 100, models.CommissionStatusBlocked, now)
	seedCommission(ledger, 2, 1, 50, models.CommissionStatusAvailable, now)
	seedCommission(ledger, 3, 1, 30, models.CommissionStatusReversed, now)
	ledger.CreditBlocked(1, 100)
	ledger.CreditAvailable(1, 50)

	report, err := svc.Reconcile(ctx, 1)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, 150.0, report.LedgerTotal)

	// A withdrawal reduces what the ledger expects the balances to hold.
	w, err := svc.RequestWithdrawal(ctx, 1, 50)
	require.NoError(t, err)
	report, err = svc.Reconcile(ctx, 1)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, 100.0, report.LedgerTotal)

	// Rejection restores both sides.
	require.NoError(t, svc.RejectWithdrawal(ctx, w.ID, "test"))
	report, err = svc.Reconcile(ctx, 1)
	require.NoError(t, err)
	assert.True(t, report.Consistent)

	// Tampering with a balance is detected.
	ledger.available[1] += 7
	report, err = svc.Reconcile(ctx, 1)
	assert.ErrorIs(t, err, ErrLedgerMismatch)
	assert.False(t, report.Consistent)
	assert.InDelta(t, 7.0, report.Drift, 0.001)
}

func TestCreditBlocked_RejectsNonPositive(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	assert.ErrorIs(t, svc.CreditBlocked(ledger, 1, 0), ErrInvalidAmount)
	assert.ErrorIs(t, svc.CreditBlocked(ledger, 1, -5), ErrInvalidAmount)
	require.NoError(t, svc.CreditBlocked(ledger, 1, 25))
	_, blocked, _ := ledger.GetBalances(1)
	assert.Equal(t, 25.0, blocked)
}
