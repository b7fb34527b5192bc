package service

import (
	"context"
	"fmt"
	"time"

	"github.com/stemsi/examsecure/internal/repository"
	"github.com/stemsi/examsecure/internal/timeutil"
)

const dashboardListLimit = 5

type dashboardStore interface {
	SummaryCounts(ctx context.Context, ownerID int) (repository.DashboardCounts, error)
	UpcomingExams(ctx context.Context, ownerID int, now time.Time, limit int) ([]repository.DashboardUpcomingExam, error)
	RecentResults(ctx context.Context, ownerID, limit int) ([]repository.DashboardExamResult, error)
}

// DashboardData consolidates all metrics for the admin dashboard.
type DashboardData struct {
	Counts        repository.DashboardCounts         `json:"counts"`
	UpcomingExams []repository.DashboardUpcomingExam `json:"upcoming_exams"`
	RecentResults []repository.DashboardExamResult   `json:"recent_results"`
	GeneratedAt   time.Time                          `json:"generated_at"`
}

// DashboardService handles admin dashboard business logic.
type DashboardService struct {
	repo dashboardStore
	now  func() time.Time
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(repo dashboardStore) *DashboardService {
	return &DashboardService{repo: repo, now: timeutil.Now}
}

// GetDashboardData collects the owner-scoped dashboard metrics.
func (s *DashboardService) GetDashboardData(ctx context.Context, ownerID int) (*DashboardData, error) {
	now := s.now()

	counts, err := s.repo.SummaryCounts(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("summary counts: %w", err)
	}

	upcoming, err := s.repo.UpcomingExams(ctx, ownerID, now, dashboardListLimit)
	if err != nil {
		return nil, fmt.Errorf("upcoming exams: %w", err)
	}

	recent, err := s.repo.RecentResults(ctx, ownerID, dashboardListLimit)
	if err != nil {
		return nil, fmt.Errorf("recent results: %w", err)
	}

	return &DashboardData{
		Counts:        counts,
		UpcomingExams: upcoming,
		RecentResults: recent,
		GeneratedAt:   now,
	}, nil
}
