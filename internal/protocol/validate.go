package protocol

import (
	"fmt"

	apperrors "github.com/streamspace/fleetconsole/internal/errors"
)

// ValidateVitals enforces the numeric bounds §4.1 requires on any
// heartbeat- or metric-shaped payload: cpuPercent ∈ [0,100], memoryTotal > 0.
func ValidateVitals(cpuPercent float64, memoryTotal uint64) *apperrors.AppError {
	if cpuPercent < 0 || cpuPercent > 100 {
		return apperrors.Validation(fmt.Sprintf("cpuPercent out of range: %v", cpuPercent))
	}
	if memoryTotal == 0 {
		return apperrors.Validation("memory_total must be greater than zero")
	}
	return nil
}

// ValidateTerminalDims enforces the terminal:create / terminal:resize
// minimum dimensions: cols ≥ 10, rows ≥ 1.
func ValidateTerminalDims(cols, rows int) *apperrors.AppError {
	if cols < 10 {
		return apperrors.Validation(fmt.Sprintf("cols must be >= 10, got %d", cols))
	}
	if rows < 1 {
		return apperrors.Validation(fmt.Sprintf("rows must be >= 1, got %d", rows))
	}
	return nil
}

// ValidateLogBatch enforces the ≤ 1000-line cap on log:batch frames.
func ValidateLogBatch(lines int) *apperrors.AppError {
	if lines > 1000 {
		return apperrors.Validation(fmt.Sprintf("log batch of %d exceeds the 1000-line cap", lines))
	}
	return nil
}

// DefaultCommandTimeoutSeconds and MaxCommandTimeoutSeconds bound
// command:exec's timeoutSeconds field: 0 means "use the default".
const (
	DefaultCommandTimeoutSeconds = 30
	MaxCommandTimeoutSeconds     = 3600
)

// ValidateCommandTimeout resolves a requested command:exec timeout: 0 gives
// the default, 1..MaxCommandTimeoutSeconds is returned unchanged, and any
// other value is a validation error.
func ValidateCommandTimeout(requested int) (int, *apperrors.AppError) {
	if requested == 0 {
		return DefaultCommandTimeoutSeconds, nil
	}
	if requested < 0 || requested > MaxCommandTimeoutSeconds {
		return 0, apperrors.Validation(fmt.Sprintf("timeoutSeconds must be between 1 and %d, got %d", MaxCommandTimeoutSeconds, requested))
	}
	return requested, nil
}
