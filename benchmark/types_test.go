package benchmark

import (
	"context"
	"fmt"
	"time"
)

type Config struct {
	Host string
	Port int
}

type Logger struct {
	Level string
}

type Database struct {
	Config *Config
	Logger *Logger
}

type Cache struct {
	Logger *Logger
}

type Repository struct {
	DB    *Database
	Cache *Cache
}

type Service struct {
	Repo   *Repository
	Logger *Logger
}

// Plain constructors, shared by every contender. dig and fx take them as is.

func newConfig() *Config {
	return &Config{Host: "localhost", Port: 8080}
}

func newLogger() *Logger {
	return &Logger{Level: "info"}
}

func newDatabase(cfg *Config, log *Logger) *Database {
	return &Database{Config: cfg, Logger: log}
}

func newCache(log *Logger) *Cache {
	return &Cache{Logger: log}
}

func newRepository(db *Database, cache *Cache) *Repository {
	return &Repository{DB: db, Cache: cache}
}

func newService(repo *Repository, log *Logger) *Service {
	return &Service{Repo: repo, Logger: log}
}

func serviceName(i int) string {
	return fmt.Sprintf("svc_%d", i)
}

func sleep(d time.Duration) func(context.Context) error {
	return func(context.Context) error {
		time.Sleep(d)
		return nil
	}
}
