// Package tasks implements the bot's scheduled tasks: task definitions,
// dependencies, and registration.
package tasks

import (
	"log/slog"

	"github.com/kamjony/skittobot/internal/config"
	"github.com/kamjony/skittobot/internal/database"
)

// TaskDeps contains the dependencies available to scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
}
