// Command migrate applies the SQL migrations for the submissions schema.
package main

import (
	"errors"
	"flag"
	"os"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/osd-exam/backend-registration/internal/config"
	"github.com/osd-exam/backend-registration/internal/obs"
)

func main() {
	var (
		dir  = flag.String("dir", "migrations", "directory containing migration files")
		down = flag.Bool("down", false, "roll back one migration instead of migrating up")
	)
	flag.Parse()

	logger := obs.NewLogger(os.Getenv("OBS_LOG_FORMAT"), os.Getenv("OBS_LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	m, err := migrate.New("file://"+*dir, pgxURL(cfg.DatabaseURL))
	if err != nil {
		logger.Fatal().Err(err).Msg("open migrations")
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Error().Err(srcErr).Msg("close migration source")
		}
		if dbErr != nil {
			logger.Error().Err(dbErr).Msg("close migration database")
		}
	}()

	if *down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal().Err(err).Msg("run migrations")
	}
	logger.Info().Msg("migrations applied")
}

// pgxURL rewrites a postgres connection URL to select the pgx/v5 migrate
// driver.
func pgxURL(databaseURL string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}
