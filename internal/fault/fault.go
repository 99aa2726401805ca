// Package fault classifies the non-fatal failures of telemetry discovery
// and sampling. None of them aborts the process; they are counted, logged
// and otherwise absorbed.
package fault

import (
	"errors"
	"fmt"
)

// Kind is the class of a telemetry failure.
type Kind string

const (
	// DiscoveryGap marks a monitoring entry or topology directory that was
	// unreadable or malformed and left out of the catalog.
	DiscoveryGap Kind = "DISCOVERY_GAP"
	// SampleMiss marks a failed per-tick read of a discovered counter. The
	// channel keeps its previous sample.
	SampleMiss Kind = "SAMPLE_MISS"
	// IntegrationUnavailable marks an absent accelerator backend or a failed
	// backend call. Affected channels receive the NaN sentinel.
	IntegrationUnavailable Kind = "INTEGRATION_UNAVAILABLE"
)

// Sentinels for errors.Is matching on Kind.
var (
	ErrDiscoveryGap           = errors.New("discovery gap")
	ErrSampleMiss             = errors.New("sample miss")
	ErrIntegrationUnavailable = errors.New("integration unavailable")
)

// Error carries the kind, the channel or path involved, and the cause.
type Error struct {
	Kind    Kind
	Channel string
	Err     error
}

// New builds an Error.
func New(kind Kind, channel string, err error) *Error {
	return &Error{Kind: kind, Channel: channel, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Channel, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Channel)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrDiscoveryGap:
		return e.Kind == DiscoveryGap
	case ErrSampleMiss:
		return e.Kind == SampleMiss
	case ErrIntegrationUnavailable:
		return e.Kind == IntegrationUnavailable
	}
	return false
}

// KindOf returns the Kind of err, or "" when err is not a fault.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
