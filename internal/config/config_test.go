package config

import "testing"

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := Config{
		App:        AppConfig{Env: "production", Port: 8080},
		DB:         DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "navigation", SSLMode: ""},
		Redis:      RedisConfig{Host: "localhost", Port: 6379},
		Auth:       AuthConfig{JWTSecret: "secret"},
		Directions: DirectionsConfig{BaseURL: "https://api.example.com", AccessToken: "tok"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := Config{
		App:        AppConfig{Env: "local", Port: 8080},
		DB:         DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "navigation", SSLMode: ""},
		Redis:      RedisConfig{Host: "localhost", Port: 6379},
		Auth:       AuthConfig{JWTSecret: "secret"},
		Directions: DirectionsConfig{BaseURL: "https://api.example.com"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Reroute.AvoidManeuverSeconds != 8.0 {
		t.Fatalf("expected default avoid-maneuver radius 8.0, got %v", c.Reroute.AvoidManeuverSeconds)
	}
}

func TestValidate_RequiresDirectionsBaseURL(t *testing.T) {
	c := Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "navigation"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing DIRECTIONS_BASE_URL")
	}
}
