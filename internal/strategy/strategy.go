// Package strategy holds the application strategies that turn an approved
// commit plan into real commits, plus the selection logic between them.
package strategy

import (
	"github.com/resquash/resquash/internal/hunk"
	"github.com/resquash/resquash/internal/logging"
)

// Strategy applies an ordered commit plan to the repository.
type Strategy interface {
	// Name identifies the strategy in logs and reports.
	Name() string
	// ValidateEnvironment checks that the repository and tooling can
	// support this strategy before any state is touched.
	ValidateEnvironment() hunk.Result
	// ApplyCommits applies the plan. A partial result carries the
	// conflicts that prevented full application.
	ApplyCommits(groups []hunk.CommitGroup) hunk.Result
}

// Pick selects the strategy to run. An explicit "legacy" preference wins;
// otherwise the native strategy is used when its environment validates,
// with the legacy strategy as fallback.
func Pick(preferred string, native, legacy Strategy, logger logging.Logger) Strategy {
	if logger == nil {
		logger = logging.NewNilLogger()
	}
	if preferred == legacy.Name() {
		return legacy
	}
	if check := native.ValidateEnvironment(); !check.IsSuccess() {
		logger.Log("Falling back to %s strategy: %s", legacy.Name(), check.Message)
		return legacy
	}
	return native
}
