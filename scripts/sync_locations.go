package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"parkspot/internal/database"
	"parkspot/internal/domain"
	"parkspot/internal/models"
)

type LocationsConfig struct {
	Locations []models.ParkingLocation `yaml:"locations"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run upserts the locations file into the database, matching by name.
// Existing locations keep their id, so bookings stay attached.
func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		locationsPath = flag.String("locations", "configs/locations.yaml", "path to locations.yaml")
		dbPath        = flag.String("db", "./data/parkspot.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*locationsPath)
	if err != nil {
		return fmt.Errorf("read locations: %w", err)
	}
	var cfg LocationsConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse locations: %w", err)
	}
	if len(cfg.Locations) == 0 {
		return fmt.Errorf("no locations in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created := 0
	updated := 0
	for i := range cfg.Locations {
		loc := &cfg.Locations[i]
		if loc.Name == "" {
			continue
		}
		loc.Normalize()

		existing, err := db.GetLocationByName(ctx, loc.Name)
		if err == nil {
			loc.ID = existing.ID
			if err = db.UpdateLocation(ctx, loc); err != nil {
				return fmt.Errorf("update %s: %w", loc.Name, err)
			}
			updated++
			continue
		}
		if !errors.Is(err, domain.ErrLocationNotFound) {
			return fmt.Errorf("get %s: %w", loc.Name, err)
		}
		if err = db.CreateLocation(ctx, loc); err != nil {
			return fmt.Errorf("create %s: %w", loc.Name, err)
		}
		created++
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}
