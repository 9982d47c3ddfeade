package main

import (
	"log/slog"
	"os"
)

const (
	defaultDataFile = "library_data.json"
	defaultName     = "City Central Library"
)

type config struct {
	dataPath string
	name     string
	verbose  bool
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func (c config) newLogger() *slog.Logger {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
