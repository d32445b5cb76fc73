package domain

import "errors"

var (
	// ErrNegativeValue rejects conversions with a negative monetary value
	ErrNegativeValue = errors.New("conversion value is negative")

	// ErrInvalidLookback rejects lookback windows below zero days
	ErrInvalidLookback = errors.New("lookback window is negative")

	// ErrUnknownModel is returned when a requested attribution model type
	// is outside the closed set
	ErrUnknownModel = errors.New("unknown attribution model type")

	// ErrModelNotReady guards forecasting and optimization: the MMM must be
	// trained, validated, or deployed
	ErrModelNotReady = errors.New("marketing mix model is not ready")

	// ErrNoChannels is returned when an MMM operation needs at least one
	// configured channel
	ErrNoChannels = errors.New("marketing mix model has no channels")

	// ErrBadTransition rejects illegal MMM status transitions
	ErrBadTransition = errors.New("illegal model status transition")
)
