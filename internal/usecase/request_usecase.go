package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yourusername/carpool-bot/internal/domain/entity"
	"github.com/yourusername/carpool-bot/internal/domain/repository"
)

// RequestUseCase user-facing operations on stored ride requests
type RequestUseCase interface {
	// ListMine requests of the user, newest first
	ListMine(ctx context.Context, telegramID string) ([]entity.RideRequest, error)

	// Cancel cancels an own open request; idPrefix may be the short id shown in chat
	Cancel(ctx context.Context, telegramID, idPrefix string) (entity.RideRequest, error)
}

type requestUseCase struct {
	rides repository.RideRepository
}

// NewRequestUseCase creates RequestUseCase
func NewRequestUseCase(rides repository.RideRepository) RequestUseCase {
	return &requestUseCase{rides: rides}
}

func (u *requestUseCase) ListMine(ctx context.Context, telegramID string) ([]entity.RideRequest, error) {
	return u.rides.ListRequestsByTelegramID(ctx, telegramID)
}

func (u *requestUseCase) Cancel(ctx context.Context, telegramID, idPrefix string) (entity.RideRequest, error) {
	idPrefix = strings.TrimSpace(idPrefix)
	if idPrefix == "" {
		return entity.RideRequest{}, repository.ErrRequestNotFound
	}

	requests, err := u.rides.ListRequestsByTelegramID(ctx, telegramID)
	if err != nil {
		return entity.RideRequest{}, err
	}

	var found *entity.RideRequest
	for i := range requests {
		if strings.HasPrefix(requests[i].ID, idPrefix) {
			if found != nil {
				return entity.RideRequest{}, fmt.Errorf("%w: id prefix %q is ambiguous", repository.ErrRequestNotFound, idPrefix)
			}
			found = &requests[i]
		}
	}
	if found == nil {
		return entity.RideRequest{}, repository.ErrRequestNotFound
	}
	if found.Status != entity.RequestOpen {
		return *found, ErrRequestNotOpen
	}

	if err := u.rides.CancelRequest(ctx, found.ID); err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) || errors.Is(err, repository.ErrRequestNotOpen) {
			return *found, err
		}
		return *found, fmt.Errorf("cancel request: %w", err)
	}
	found.Status = entity.RequestCanceled
	return *found, nil
}
