package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
)

type Settings struct {
	Port               string
	DatabaseDSN        string
	StoreDriver        string
	MongoURI           string
	MongoDatabase      string
	CookieDomain       string
	AllowedOrigins     []string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	GeminiModel        string
	PropagationAtomic  bool
}

// Load reads .env (when present) and the process environment.
func Load() Settings {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8080")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("MONGO_DATABASE", "chronos")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	v.SetDefault("PROPAGATION_ATOMIC", true)

	return Settings{
		Port:               v.GetString("PORT"),
		DatabaseDSN:        v.GetString("DATABASE_DSN"),
		StoreDriver:        strings.ToLower(v.GetString("STORE_DRIVER")),
		MongoURI:           v.GetString("MONGO_URI"),
		MongoDatabase:      v.GetString("MONGO_DATABASE"),
		CookieDomain:       v.GetString("COOKIE_DOMAIN"),
		AllowedOrigins:     splitList(v.GetString("ALLOWED_ORIGINS")),
		GoogleClientID:     v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  v.GetString("GOOGLE_REDIRECT_URL"),
		GeminiModel:        v.GetString("GEMINI_MODEL"),
		PropagationAtomic:  v.GetBool("PROPAGATION_ATOMIC"),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
