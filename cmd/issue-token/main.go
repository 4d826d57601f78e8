package main

import (
	"flag"
	"fmt"

	"github.com/stemsi/classcard/internal/config"
	"github.com/stemsi/classcard/internal/logger"
	"github.com/stemsi/classcard/internal/service"
)

// issue-token prints an admin JWT signed with JWT_SECRET, for operators and
// scripts calling the admin API.
func main() {
	name := flag.String("name", "operator", "Name recorded in the token")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	token, err := service.NewAuthService(cfg).GenerateAdminToken(*name)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}

	log.Info().Str("name", *name).Dur("expires_in", cfg.JWTExpiry).Msg("Admin token issued")
	fmt.Println(token)
}
