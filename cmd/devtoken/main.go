// Command devtoken mints an access token signed with JWT_ACCESS_SECRET, for
// exercising an authenticated relay without the platform's auth service.
package main

import (
	"flag"
	"fmt"
	"time"

	"foodmed/config"
	"foodmed/internal/auth"
	"foodmed/internal/logger"

	"go.uber.org/zap"
)

func main() {
	user := flag.String("user", "", "user id the token speaks for")
	role := flag.String("role", "donor", "role claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}
	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	defer log.Sync()

	if *user == "" {
		log.Fatal("-user is required")
	}
	if cfg.JWT.AccessSecret == "" {
		log.Fatal("JWT_ACCESS_SECRET is not set")
	}
	token, err := auth.GenerateAccessToken(&cfg.JWT, *user, *role, *ttl)
	if err != nil {
		log.Fatal("sign token", zap.Error(err))
	}
	fmt.Println(token)
}
