package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// All variables
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// Redis Configuration
	REDIS_URL string
	// Scheduler Configuration
	SCHEDULER_TICK_INTERVAL time.Duration
	SCHEDULER_WORKERS       int
	// Pipeline Configuration
	PIPELINE_BATCH_SIZE        int
	PIPELINE_QUALITY_THRESHOLD int
	PIPELINE_AUTO_PUBLISH      bool
	PIPELINE_TARGET_CATEGORY   string
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	// Database defaults
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	// Scheduler defaults: one evaluation tick per minute, small worker pool
	tickInterval := 60 * time.Second
	if raw := os.Getenv("SCHEDULER_TICK_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			tickInterval = time.Duration(secs) * time.Second
		}
	}

	workers, err := strconv.Atoi(os.Getenv("SCHEDULER_WORKERS"))
	if err != nil || workers <= 0 {
		workers = 4
	}

	batchSize, err := strconv.Atoi(os.Getenv("PIPELINE_BATCH_SIZE"))
	if err != nil || batchSize <= 0 {
		batchSize = 5
	}

	threshold, err := strconv.Atoi(os.Getenv("PIPELINE_QUALITY_THRESHOLD"))
	if err != nil || threshold < 0 || threshold > 100 {
		threshold = 70
	}

	targetCategory := os.Getenv("PIPELINE_TARGET_CATEGORY")
	if targetCategory == "" {
		targetCategory = "garten"
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  os.Getenv("DB_SSL_MODE"),
		PORT:         port,
		// Redis
		REDIS_URL: os.Getenv("REDIS_URL"),
		// Scheduler
		SCHEDULER_TICK_INTERVAL: tickInterval,
		SCHEDULER_WORKERS:       workers,
		// Pipeline
		PIPELINE_BATCH_SIZE:        batchSize,
		PIPELINE_QUALITY_THRESHOLD: threshold,
		PIPELINE_AUTO_PUBLISH:      os.Getenv("PIPELINE_AUTO_PUBLISH") == "true",
		PIPELINE_TARGET_CATEGORY:   targetCategory,
	}

	return envVariables, nil
}
