package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config carries every environment-driven setting consumed at bootstrap.
type Config struct {
	DatabaseURL   string
	Port          string
	JWTSecret     string
	RedisURL      string
	CloudinaryURL string
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPassword  string
	EmailFrom     string
	Debug         bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present, matching local development setups.
func Load() Config {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	smtpPort, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		smtpPort = 587
	}

	return Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Port:          port,
		JWTSecret:     os.Getenv("JWT_SECRET"),
		RedisURL:      os.Getenv("REDIS_URL"),
		CloudinaryURL: os.Getenv("CLOUDINARY_URL"),
		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPPort:      smtpPort,
		SMTPUser:      os.Getenv("SMTP_USER"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		EmailFrom:     os.Getenv("EMAIL_FROM"),
		Debug:         os.Getenv("DEBUG") == "true",
	}
}
