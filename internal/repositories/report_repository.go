package repositories

import (
	"fmt"
	"time"

	"rede/internal/models"

	"gorm.io/gorm"
)

// RankingEntry is one row of a period ranking.
type RankingEntry struct {
	UserID uint    `json:"user_id"`
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
}

// ReportRepository answers the aggregation queries the dashboards consume.
type ReportRepository interface {
	// RankBySales ranks by paid order subtotal in the period.
	RankBySales(start, end time.Time, limit int) ([]RankingEntry, error)
	// RankByCommissions ranks by non-reversed commission amount earned.
	RankByCommissions(start, end time.Time, limit int) ([]RankingEntry, error)
	// RankByNetwork ranks by direct recruits registered in the period.
	RankByNetwork(start, end time.Time, limit int) ([]RankingEntry, error)
	// RankByPoints ranks by sales points plus a fixed bonus per recruit.
	RankByPoints(start, end time.Time, limit int) ([]RankingEntry, error)
}

// pointsPerRecruit is the ranking weight of one direct signup relative to
// one currency unit of own sales.
const pointsPerRecruit = 50

type reportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) RankBySales(start, end time.Time, limit int) ([]RankingEntry, error) {
	var entries []RankingEntry
	err := r.db.Model(&models.Order{}).
		Select("orders.buyer_id as user_id, users.name, COALESCE(SUM(orders.subtotal), 0) as value").
		Joins("JOIN users ON users.id = orders.buyer_id").
		Where("orders.payment_status = ? AND orders.order_status <> ? AND orders.paid_at BETWEEN ? AND ?",
			models.PaymentStatusPaid, models.OrderStatusCancelled, start, end).
		Group("orders.buyer_id, users.name").
		Order("value DESC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank by sales: %w", err)
	}
	return entries, nil
}

func (r *reportRepository) RankByCommissions(start, end time.Time, limit int) ([]RankingEntry, error) {
	var entries []RankingEntry
	err := r.db.Model(&models.Commission{}).
		Select("commissions.beneficiary_user_id as user_id, users.name, COALESCE(SUM(commissions.amount), 0) as value").
		Joins("JOIN users ON users.id = commissions.beneficiary_user_id").
		Where("commissions.status <> ? AND commissions.created_at BETWEEN ? AND ?",
			models.CommissionStatusReversed, start, end).
		Group("commissions.beneficiary_user_id, users.name").
		Order("value DESC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank by commissions: %w", err)
	}
	return entries, nil
}

func (r *reportRepository) RankByNetwork(start, end time.Time, limit int) ([]RankingEntry, error) {
	var entries []RankingEntry
	err := r.db.Model(&models.User{}).
		Select("recruits.sponsor_id as user_id, users.name, COUNT(recruits.id) as value").
		Table("users as recruits").
		Joins("JOIN users ON users.id = recruits.sponsor_id").
		Where("recruits.sponsor_id IS NOT NULL AND recruits.created_at BETWEEN ? AND ?", start, end).
		Group("recruits.sponsor_id, users.name").
		Order("value DESC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank by network: %w", err)
	}
	return entries, nil
}

func (r *reportRepository) RankByPoints(start, end time.Time, limit int) ([]RankingEntry, error) {
	var entries []RankingEntry
	err := r.db.Raw(`
		SELECT u.id as user_id, u.name,
			COALESCE(s.sales, 0) + ? * COALESCE(n.recruits, 0) as value
		FROM users u
		LEFT JOIN (
			SELECT buyer_id, SUM(subtotal) as sales FROM orders
			WHERE payment_status = ? AND order_status <> ? AND paid_at BETWEEN ? AND ?
			GROUP BY buyer_id
		) s ON s.buyer_id = u.id
		LEFT JOIN (
			SELECT sponsor_id, COUNT(*) as recruits FROM users
			WHERE sponsor_id IS NOT NULL AND created_at BETWEEN ? AND ?
			GROUP BY sponsor_id
		) n ON n.sponsor_id = u.id
		WHERE COALESCE(s.sales, 0) + COALESCE(n.recruits, 0) > 0
		ORDER BY value DESC
		LIMIT ?`,
		pointsPerRecruit,
		models.PaymentStatusPaid, models.OrderStatusCancelled, start, end,
		start, end,
		limit,
	).Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank by points: %w", err)
	}
	return entries, nil
}
