package main

import (
	"fmt"
	"os"

	"github.com/kindnest/kindnest-api/pkg/auth"
	"github.com/kindnest/kindnest-api/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: keygen <service-name>")
		os.Exit(1)
	}

	cfg, err := config.Load("")
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	if cfg.Auth.ServiceSecret == "" {
		fmt.Println("Error: API_MASTER_SECRET not set")
		os.Exit(1)
	}

	a := auth.New(cfg.Auth.JWTSecret, cfg.Auth.ServiceSecret, cfg.Auth.TokenTTL)
	key, err := a.GenerateServiceKey(os.Args[1])
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	fmt.Printf("Generated key for %s:\n%s\n", os.Args[1], key)
}
