// Package config loads typed configuration structs from environment
// variables using caarlos0/env struct tags, with optional .env file support
// via godotenv.
//
// Load caches the parsed value per type, so packages can call it freely:
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
// Parse skips the cache and accepts an explicit variable map, which is
// handy in tests:
//
//	cfg, err := config.Parse[session.Config](map[string]string{
//		"SESSION_IDLE_TIMEOUT": "5m",
//	}, "")
package config
