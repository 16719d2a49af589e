package identity

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// IsWithinThresholdPeriod reports whether t falls inside the trailing window
// described by a duration expression such as "24h" or "2h30m".
func IsWithinThresholdPeriod(t time.Time, thresholdExpr string) (bool, error) {
	d, err := time.ParseDuration(thresholdExpr)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid threshold expression")
	}

	return t.After(time.Now().Add(-d)), nil
}

// IsOutsideThresholdPeriod is the complement of IsWithinThresholdPeriod.
func IsOutsideThresholdPeriod(t time.Time, thresholdExpr string) (bool, error) {
	within, err := IsWithinThresholdPeriod(t, thresholdExpr)
	if err != nil {
		return false, err
	}
	return !within, nil
}
