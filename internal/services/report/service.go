// Package report answers the read-side queries the storefront and admin
// dashboards consume: commission listings, balance summaries, rankings and
// the withdrawal CSV export.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"strconv"
	"time"

	"rede/internal/models"
	"rede/internal/repositories"
	"rede/internal/repositories/cache"
)

// Service is the reporting/read side of the engine. It never mutates the
// ledger.
type Service interface {
	ListCommissions(ctx context.Context, filter repositories.CommissionFilter) ([]*models.Commission, int64, error)
	GetSummary(ctx context.Context, userID uint) (*Summary, error)
	GetRanking(ctx context.Context, criteria RankingCriteria, period Period, limit int) ([]repositories.RankingEntry, error)
	ExportWithdrawalsCSV(ctx context.Context, status models.WithdrawalStatus) ([]byte, error)
}

type service struct {
	ledger  repositories.LedgerRepository
	reports repositories.ReportRepository
	cache   *cache.CacheService
}

func NewService(ledger repositories.LedgerRepository, reports repositories.ReportRepository, cacheService *cache.CacheService) Service {
	if ledger == nil {
		panic("ledger repository is required")
	}
	if reports == nil {
		panic("report repository is required")
	}
	return &service{
		ledger:  ledger,
		reports: reports,
		cache:   cacheService,
	}
}

func (s *service) ListCommissions(ctx context.Context, filter repositories.CommissionFilter) ([]*models.Commission, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	return s.ledger.ListCommissions(filter)
}

func (s *service) GetSummary(ctx context.Context, userID uint) (*Summary, error) {
	if s.cache != nil {
		var cached Summary
		if found, err := s.cache.Get(ctx, s.cache.SummaryKey(userID), &cached); err == nil && found {
			return &cached, nil
		}
	}

	available, blocked, err := s.ledger.GetBalances(userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	thisMonth, err := s.ledger.SumCommissionsSince(userID, monthStart)
	if err != nil {
		return nil, err
	}

	byLevel, err := s.ledger.SumCommissionsByLevel(userID, []models.CommissionStatus{
		models.CommissionStatusBlocked,
		models.CommissionStatusAvailable,
		models.CommissionStatusPaid,
	})
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		UserID:           userID,
		AvailableBalance: available,
		BlockedBalance:   blocked,
		ThisMonth:        thisMonth,
		ByLevel:          byLevel,
	}

	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, s.cache.SummaryKey(userID), summary, summaryCacheTTL); err != nil {
			log.Printf("failed to cache summary for user %d: %v", userID, err)
		}
	}
	return summary, nil
}

func (s *service) GetRanking(ctx context.Context, criteria RankingCriteria, period Period, limit int) ([]repositories.RankingEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = DefaultRankingLimit
	}
	if period.End.IsZero() {
		period = MonthToDate(time.Now().UTC())
	}

	switch criteria {
	case RankBySales:
		return s.reports.RankBySales(period.Start, period.End, limit)
	case RankByCommissions:
		return s.reports.RankByCommissions(period.Start, period.End, limit)
	case RankByNetwork:
		return s.reports.RankByNetwork(period.Start, period.End, limit)
	case RankByPoints:
		return s.reports.RankByPoints(period.Start, period.End, limit)
	default:
		return nil, fmt.Errorf("unknown ranking criteria %q", criteria)
	}
}

func (s *service) ExportWithdrawalsCSV(ctx context.Context, status models.WithdrawalStatus) ([]byte, error) {
	rows, err := s.ledger.ExportWithdrawals(status)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(withdrawalCSVHeader); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.UserName, row.Email, row.CPF, row.Phone,
			strconv.FormatUint(uint64(row.WithdrawalID), 10),
			strconv.FormatUint(uint64(row.UserID), 10),
			strconv.FormatFloat(row.Amount, 'f', 2, 64),
			row.BankName, row.BankCode, row.Agency, row.Account, row.AccountType, row.PixKey,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
