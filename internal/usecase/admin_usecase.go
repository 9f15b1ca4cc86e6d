package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/carpool-bot/internal/domain/entity"
	"github.com/yourusername/carpool-bot/internal/domain/repository"
)

// ReportHorizon how far ahead the ride report looks
const ReportHorizon = 7 * 24 * time.Hour

// AdminUseCase admin business logic
type AdminUseCase interface {
	// Login admin login
	Login(ctx context.Context, telegramID int64, password string) (bool, error)

	// Logout admin logout
	Logout(ctx context.Context, telegramID int64) error

	// IsAdmin checks for a live admin session
	IsAdmin(ctx context.Context, telegramID int64) (bool, error)

	// RunMatching runs one matching cycle on demand
	RunMatching(ctx context.Context, telegramID int64) (MatchReport, error)

	// ExportRides renders upcoming rides as a document
	ExportRides(ctx context.Context, telegramID int64) (string, []byte, error)
}

type adminUseCase struct {
	password string
	admins   repository.AdminRepository
	rides    repository.RideRepository
	report   repository.RideReport
	matching MatchingUseCase
	now      func() time.Time
}

// NewAdminUseCase creates AdminUseCase. An empty password disables admin login.
func NewAdminUseCase(
	password string,
	admins repository.AdminRepository,
	rides repository.RideRepository,
	report repository.RideReport,
	matching MatchingUseCase,
) AdminUseCase {
	return &adminUseCase{
		password: password,
		admins:   admins,
		rides:    rides,
		report:   report,
		matching: matching,
		now:      time.Now,
	}
}

func (u *adminUseCase) Login(ctx context.Context, telegramID int64, password string) (bool, error) {
	if u.password == "" || password != u.password {
		return false, nil
	}

	now := u.now()
	session := entity.AdminSession{
		TelegramID:   telegramID,
		LoginTime:    now,
		LastActivity: now,
	}
	if err := u.admins.CreateSession(ctx, session); err != nil {
		return false, fmt.Errorf("failed to create session: %w", err)
	}

	u.logAction(ctx, telegramID, "login", "Admin successfully logged in")
	return true, nil
}

func (u *adminUseCase) Logout(ctx context.Context, telegramID int64) error {
	return u.admins.DeleteSession(ctx, telegramID)
}

func (u *adminUseCase) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	return u.admins.IsAdmin(ctx, telegramID)
}

func (u *adminUseCase) RunMatching(ctx context.Context, telegramID int64) (MatchReport, error) {
	if err := u.requireAdmin(ctx, telegramID); err != nil {
		return MatchReport{}, err
	}

	report, err := u.matching.RunCycle(ctx)
	if err != nil {
		return report, err
	}

	u.logAction(ctx, telegramID, "match_now",
		fmt.Sprintf("Matched %d, deferred %d, expired %d", report.Matched, report.Deferred, report.Expired))
	return report, nil
}

func (u *adminUseCase) ExportRides(ctx context.Context, telegramID int64) (string, []byte, error) {
	if err := u.requireAdmin(ctx, telegramID); err != nil {
		return "", nil, err
	}

	now := u.now()
	rides, err := u.rides.LoadConfirmedRides(ctx, now, now.Add(ReportHorizon))
	if err != nil {
		return "", nil, fmt.Errorf("failed to load rides: %w", err)
	}

	name, data, err := u.report.Render(ctx, rides)
	if err != nil {
		return "", nil, fmt.Errorf("failed to render report: %w", err)
	}

	u.logAction(ctx, telegramID, "export_rides", fmt.Sprintf("Exported %d rides", len(rides)))
	return name, data, nil
}

func (u *adminUseCase) requireAdmin(ctx context.Context, telegramID int64) error {
	isAdmin, err := u.admins.IsAdmin(ctx, telegramID)
	if err != nil {
		return err
	}
	if !isAdmin {
		return ErrNotAdmin
	}
	return nil
}

func (u *adminUseCase) logAction(ctx context.Context, telegramID int64, action, details string) {
	_ = u.admins.LogAction(ctx, entity.AdminAction{
		ID:         uuid.New().String(),
		TelegramID: telegramID,
		Action:     action,
		Details:    details,
		Timestamp:  u.now(),
	})
}
