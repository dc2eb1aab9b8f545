package logging

import (
	"log/slog"
	"os"
)

// Setup installs a JSON stdout logger as the default. main replaces it with a
// MultiHandler once the database is up.
func Setup() {
	slog.SetDefault(slog.New(NewStdoutHandler()))
}

func NewStdoutHandler() slog.Handler {
	return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
}
