package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stemsi/examsecure/internal/repository"
)

type fakeDashboard struct {
	counts    repository.DashboardCounts
	owner     int
	now       time.Time
	limit     int
	countsErr error
}

func (f *fakeDashboard) SummaryCounts(_ context.Context, ownerID int) (repository.DashboardCounts, error) {
	f.owner = ownerID
	return f.counts, f.countsErr
}

func (f *fakeDashboard) UpcomingExams(_ context.Context, _ int, now time.Time, limit int) ([]repository.DashboardUpcomingExam, error) {
	f.now = now
	f.limit = limit
	return []repository.DashboardUpcomingExam{}, nil
}

func (f *fakeDashboard) RecentResults(_ context.Context, _, _ int) ([]repository.DashboardExamResult, error) {
	return []repository.DashboardExamResult{}, nil
}

func TestDashboardScopesToOwner(t *testing.T) {
	repo := &fakeDashboard{counts: repository.DashboardCounts{Exams: 2, RosterSize: 5}}
	svc := NewDashboardService(repo)
	fixed := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	data, err := svc.GetDashboardData(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetDashboardData: %v", err)
	}
	if repo.owner != 7 {
		t.Errorf("owner = %d, want 7", repo.owner)
	}
	if !repo.now.Equal(fixed) || !data.GeneratedAt.Equal(fixed) {
		t.Errorf("now = %v, generated = %v, want %v", repo.now, data.GeneratedAt, fixed)
	}
	if repo.limit != dashboardListLimit {
		t.Errorf("limit = %d, want %d", repo.limit, dashboardListLimit)
	}
	if data.Counts.Exams != 2 || data.Counts.RosterSize != 5 {
		t.Errorf("counts = %+v", data.Counts)
	}
}

func TestDashboardWrapsStoreError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewDashboardService(&fakeDashboard{countsErr: boom})

	if _, err := svc.GetDashboardData(context.Background(), 1); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
}
