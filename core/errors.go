package core

import (
	"errors"

	goerrors "gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrInvalidInput is returned for malformed requests: bad dates, non-positive Nbv,
	// unknown statistic, unit or operation tokens.
	ErrInvalidInput = goerrors.NewKind("invalid input: %s")

	// ErrUnknownSeries is returned when the requested series has no metadata
	ErrUnknownSeries = goerrors.NewKind("unknown series: %s")

	// ErrNotConfigured signals that no materialized table matches; callers fall back to on-demand aggregation
	ErrNotConfigured = goerrors.NewKind("no configuration for %s %s with delta %v")

	// ErrStoreUnavailable wraps any connection or query failure of the store
	ErrStoreUnavailable = goerrors.NewKind("store unavailable: %s")

	// ErrEmptyResult is returned for a well-formed request that matched no observation
	ErrEmptyResult = goerrors.NewKind("no data found for %s between %s and %s")
)

// ErrorKind classifies an error for the outer binding
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidInput
	KindUnknownSeries
	KindNotConfigured
	KindStoreUnavailable
	KindEmptyResult
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindUnknownSeries:
		return "UnknownSeries"
	case KindNotConfigured:
		return "NotConfigured"
	case KindStoreUnavailable:
		return "StoreUnavailable"
	case KindEmptyResult:
		return "EmptyResult"
	}
	return "Unknown"
}

// KindOf walks the error chain and returns the kind of the first classified error
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var e *goerrors.Error
	if !errors.As(err, &e) {
		return KindUnknown
	}
	switch {
	case ErrInvalidInput.Is(e):
		return KindInvalidInput
	case ErrUnknownSeries.Is(e):
		return KindUnknownSeries
	case ErrNotConfigured.Is(e):
		return KindNotConfigured
	case ErrStoreUnavailable.Is(e):
		return KindStoreUnavailable
	case ErrEmptyResult.Is(e):
		return KindEmptyResult
	}
	return KindUnknown
}
