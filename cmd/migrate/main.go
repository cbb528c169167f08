// Command migrate applies or rolls back the booking schema outside the
// service process.
//
//	migrate up          apply every migration, seed data included
//	migrate schema      apply schema migrations only
//	migrate down        roll everything back
//	migrate to N        move to version N
//	migrate version     print the applied version
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"ms-booking/internal/config"
	"ms-booking/internal/database"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/logger"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(logger.Options{
		Service: "booking-migrate",
		Level:   logger.ParseLevel(cfg.Log.Level),
		NoColor: cfg.Log.NoColor,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	if len(os.Args) < 2 {
		log.Fatal("MIGRATE", "usage: migrate up|schema|down|to N|version")
	}

	bunDB, err := database.Connect(context.Background(), cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{MigrationsDir: cfg.Migrations.Dir}, log)
	defer runner.Close()

	switch cmd := os.Args[1]; cmd {
	case "up":
		err = runner.MigrateUp()
	case "schema":
		err = runner.MigrateTo(migrations.SchemaVersion)
	case "down":
		err = runner.MigrateDown()
	case "to":
		if len(os.Args) < 3 {
			log.Fatal("MIGRATE", "usage: migrate to N")
		}
		var version uint64
		version, err = strconv.ParseUint(os.Args[2], 10, 32)
		if err == nil {
			err = runner.MigrateTo(uint(version))
		}
	case "version":
	default:
		log.Fatal("MIGRATE", fmt.Sprintf("unknown command %q", cmd))
	}
	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}

	version, dirty, err := runner.Version()
	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	log.Info("MIGRATE", fmt.Sprintf("Current schema version: %d (dirty: %t)", version, dirty))
}
