// Package report computes the read-only dashboard aggregates. Readers
// run at the default isolation level; every writer commits the bill
// total and its charge lines together, so these sums never observe a
// line without its total bump.
package report

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyeh/hmscore/internal/model"
	"github.com/gyeh/hmscore/internal/normalize"
	embedsql "github.com/gyeh/hmscore/internal/sql"
)

// Dashboard gathers entity counts, the appointment status breakdown,
// the paid/pending revenue split, and physician workload.
func Dashboard(ctx context.Context, pool *pgxpool.Pool, workloadLimit int) (*model.DashboardStats, error) {
	stats := &model.DashboardStats{
		AppointmentsByStatus: make(map[model.AppointmentStatus]int64),
	}

	counts := []struct {
		table string
		dst   *int64
	}{
		{"patients", &stats.Patients},
		{"physicians", &stats.Physicians},
		{"appointments", &stats.Appointments},
		{"bills", &stats.Bills},
	}
	for _, c := range counts {
		if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("count %s: %w", c.table, err)
		}
	}

	rows, err := pool.Query(ctx, embedsql.AppointmentBreakdown)
	if err != nil {
		return nil, fmt.Errorf("appointment breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan breakdown: %w", err)
		}
		stats.AppointmentsByStatus[model.AppointmentStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := pool.QueryRow(ctx, embedsql.RevenueSummary).
		Scan(&stats.RevenuePaidCents, &stats.RevenuePendingCents); err != nil {
		return nil, fmt.Errorf("revenue summary: %w", err)
	}

	wrows, err := pool.Query(ctx, embedsql.PhysicianWorkload, workloadLimit)
	if err != nil {
		return nil, fmt.Errorf("physician workload: %w", err)
	}
	defer wrows.Close()
	for wrows.Next() {
		var w model.PhysicianWorkload
		var first, last string
		if err := wrows.Scan(&w.PhysicianID, &first, &last, &w.Appointments); err != nil {
			return nil, fmt.Errorf("scan workload: %w", err)
		}
		w.Name = normalize.FullName(first, last)
		stats.Workload = append(stats.Workload, w)
	}
	if err := wrows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
