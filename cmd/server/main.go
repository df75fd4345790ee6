// @title           VOTY Account API
// @version         1.0
// @description     Sign-up with phone verification, login and password reset.
// @BasePath        /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"flag"
	"log"

	"github.com/joho/godotenv"

	"voty/internal/app"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default $VOTY_CONFIG or config/config.yaml)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	if err := app.Run(*configPath); err != nil {
		log.Fatalf("voty: %v", err)
	}
}
