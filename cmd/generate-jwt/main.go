package main

import (
	"flag"
	"fmt"
	"log"

	"tip-ledger/internal/config"
	"tip-ledger/internal/dto"
	"tip-ledger/internal/handlers"
)

func main() {
	configPath := flag.String("config", "", "config file (defaults to config.yaml)")
	account := flag.String("account", "", "ledger principal, e.g. relayer.near")
	role := flag.String("role", dto.RoleRelayer, "user | relayer | owner")
	flag.Parse()

	if *account == "" {
		log.Fatalf("-account is required")
	}

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	issuer, err := handlers.NewTokenIssuer(config.AppConfig.Auth)
	if err != nil {
		log.Fatalf("Failed to create issuer: %v", err)
	}

	tokenString, err := issuer.Issue(*account, *role)
	if err != nil {
		log.Fatalf("Error generating token: %v", err)
	}
	if _, err := issuer.Validate(tokenString); err != nil {
		log.Fatalf("Generated token does not validate: %v", err)
	}

	fmt.Println("============================================================")
	fmt.Println("JWT Token Generated")
	fmt.Println("============================================================")
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(tokenString)
	fmt.Println()
	fmt.Println("Claims:")
	fmt.Printf("  Account: %s\n", *account)
	fmt.Printf("  Role: %s\n", *role)
	fmt.Printf("  TTL: %dh\n", config.AppConfig.Auth.TokenTTL)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  curl -H 'Authorization: Bearer %s' ...\n", tokenString)
}
