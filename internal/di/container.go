// Package di provides dependency injection for service construction and lifecycle.
package di

import (
	"context"
	"database/sql"

	"speakapp/internal/config"
	"speakapp/internal/database"
	"speakapp/internal/observability"
	"speakapp/internal/services"
	contextutils "speakapp/internal/utils"
)

// ServiceContainer wires the database, stores, and services together and owns
// their shutdown order.
type ServiceContainer struct {
	cfg    *config.Config
	logger *observability.Logger

	db              *sql.DB
	questionStore   *services.QuestionStore
	userService     *services.UserService
	rotationService *services.RotationService
	seeder          *services.Seeder
}

// NewServiceContainer creates an empty container; call Initialize before use.
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{cfg: cfg, logger: logger}
}

// Initialize opens the database, runs migrations, and constructs all services.
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	dbManager := database.NewManager(sc.logger)
	db, err := dbManager.InitDBWithConfig(sc.cfg.Database)
	if err != nil {
		return contextutils.WrapError(err, "failed to initialize database")
	}
	sc.db = db

	sc.questionStore = services.NewQuestionStore(db, sc.logger)
	sc.userService = services.NewUserService(db, sc.logger)
	sc.rotationService = services.NewRotationService(sc.questionStore, sc.cfg.Rotation, sc.logger, nil)
	sc.seeder = services.NewSeeder(sc.questionStore, sc.logger)

	sc.logger.Info(ctx, "Service container initialized", nil)
	return nil
}

// EnsureSeeded loads the default question catalog on first run.
func (sc *ServiceContainer) EnsureSeeded(ctx context.Context) error {
	return sc.seeder.EnsureSeeded(ctx)
}

// DB returns the underlying database handle.
func (sc *ServiceContainer) DB() *sql.DB {
	return sc.db
}

// QuestionStore returns the question store.
func (sc *ServiceContainer) QuestionStore() *services.QuestionStore {
	return sc.questionStore
}

// UserService returns the user service.
func (sc *ServiceContainer) UserService() *services.UserService {
	return sc.userService
}

// RotationService returns the rotation service.
func (sc *ServiceContainer) RotationService() *services.RotationService {
	return sc.rotationService
}

// Shutdown releases container resources.
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	if sc.db != nil {
		if err := sc.db.Close(); err != nil {
			return contextutils.WrapError(err, "failed to close database")
		}
	}
	sc.logger.Info(ctx, "Service container shut down", nil)
	return nil
}
