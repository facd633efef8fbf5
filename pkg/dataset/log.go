package dataset

import (
	"log/slog"
)

// Logger receives the package's diagnostics. When nil, slog.Default is used.
var Logger *slog.Logger

func logger() *slog.Logger {
	if Logger != nil {
		return Logger
	}
	return slog.Default()
}
