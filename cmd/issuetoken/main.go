// Command issuetoken はAPIクライアント用のJWTを発行します。
//
//	JWT_SECRET=... go run ./cmd/issuetoken -sub ops-dashboard -scope scan,catalog:write -ttl 720h
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	jwtmw "exposure_backend/internal/platform/jwt"
)

func main() {
	sub := flag.String("sub", "", "subject (API client name)")
	scope := flag.String("scope", jwtmw.ScopeScan, "comma separated scopes")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if err := godotenv.Load(".env"); err != nil {
		slog.Info(".env not found; using system environment variables")
	}
	secret := os.Getenv(jwtmw.EnvKeyJWTSecret)
	if secret == "" {
		slog.Error("JWT_SECRET is not set")
		os.Exit(1)
	}

	token, err := jwtmw.NewGenerator(secret, *ttl).GenerateToken(*sub, splitScopes(*scope))
	if err != nil {
		slog.Error("failed to generate token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func splitScopes(s string) []string {
	var scopes []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			scopes = append(scopes, p)
		}
	}
	return scopes
}
