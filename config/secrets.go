package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Secrets holds credentials read from the environment
type Secrets struct {
	OpenAIKey           string
	PexelsKey           string
	YouTubeClientID     string
	YouTubeClientSecret string
	YouTubeRefreshToken string
	InstagramUserID     string
	InstagramToken      string
}

// LoadSecrets loads an optional .env file then reads credentials from the
// environment. Variables already set in the environment win.
func LoadSecrets(envFile string) (Secrets, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Secrets{}, err
		}
	}
	return Secrets{
		OpenAIKey:           env("OPENAI_API_KEY"),
		PexelsKey:           env("PEXELS_API_KEY"),
		YouTubeClientID:     env("YOUTUBE_CLIENT_ID"),
		YouTubeClientSecret: env("YOUTUBE_CLIENT_SECRET"),
		YouTubeRefreshToken: env("YOUTUBE_REFRESH_TOKEN"),
		InstagramUserID:     env("INSTAGRAM_USER_ID"),
		InstagramToken:      env("INSTAGRAM_ACCESS_TOKEN"),
	}, nil
}

// HasYouTube reports whether the YouTube refresh-token flow can run
func (s Secrets) HasYouTube() bool {
	return s.YouTubeClientID != "" && s.YouTubeClientSecret != "" && s.YouTubeRefreshToken != ""
}

// HasInstagram reports whether Instagram publishing can run
func (s Secrets) HasInstagram() bool {
	return s.InstagramUserID != "" && s.InstagramToken != ""
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
