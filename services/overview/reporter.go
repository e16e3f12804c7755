// Package overview aggregates platform-wide counts for SUPER_ADMIN.
package overview

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pavitra93/leadhub/shared/policy"
	"github.com/pavitra93/leadhub/shared/repository"
	"github.com/pavitra93/leadhub/shared/utils"
)

// Report is the platform overview. The counts are read concurrently and are
// not a consistent snapshot.
type Report struct {
	TotalTenants int64                    `json:"total_tenants"`
	TotalUsers   int64                    `json:"total_users"`
	TotalLeads   int64                    `json:"total_leads"`
	TodayLeads   int64                    `json:"today_leads"`
	Tenants      []repository.TenantStats `json:"tenants"`
}

// Reporter computes the overview
type Reporter struct {
	stats repository.StatsStore
	leads repository.LeadStore
	now   func() time.Time
}

// NewReporter creates a reporter. A nil now uses time.Now.
func NewReporter(stats repository.StatsStore, leads repository.LeadStore, now func() time.Time) *Reporter {
	if now == nil {
		now = time.Now
	}
	return &Reporter{stats: stats, leads: leads, now: now}
}

// Report counts tenants, identities and leads. "Today" starts at local midnight.
func (r *Reporter) Report(ctx context.Context) (*Report, error) {
	today := utils.StartOfDay(r.now())
	all := policy.Unrestricted()
	report := &Report{}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := r.stats.CountTenants(ctx)
		report.TotalTenants = n
		return err
	})
	g.Go(func() error {
		n, err := r.stats.CountUsers(ctx, all)
		report.TotalUsers = n
		return err
	})
	g.Go(func() error {
		n, err := r.leads.Count(ctx, all, repository.LeadFilter{})
		report.TotalLeads = n
		return err
	})
	g.Go(func() error {
		n, err := r.leads.Count(ctx, all, repository.LeadFilter{From: &today})
		report.TodayLeads = n
		return err
	})
	g.Go(func() error {
		rows, err := r.stats.TenantLeadStats(ctx, today)
		report.Tenants = rows
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if report.Tenants == nil {
		report.Tenants = []repository.TenantStats{}
	}
	return report, nil
}
