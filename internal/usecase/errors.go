package usecase

import (
	"errors"

	"github.com/yourusername/carpool-bot/internal/domain/repository"
)

var (
	// ErrCycleInProgress a scheduler cycle was triggered while the previous one is still running
	ErrCycleInProgress = errors.New("cycle already in progress")

	// ErrNoActiveContext user sent an answer without starting a dialogue
	ErrNoActiveContext = errors.New("no active dialogue")

	// ErrMissingField dialogue draft lacks a required field
	ErrMissingField = errors.New("required field is missing")

	// ErrInvalidAnswer answer could not be parsed for the requested field
	ErrInvalidAnswer = errors.New("invalid answer")

	// ErrCommandUnavailable command is not valid in the active dialogue
	ErrCommandUnavailable = errors.New("command is not available")

	// ErrRequestNotOpen request can no longer be changed
	ErrRequestNotOpen = repository.ErrRequestNotOpen

	// ErrNotAdmin command requires an admin session
	ErrNotAdmin = errors.New("user is not admin")
)
