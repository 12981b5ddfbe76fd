// Package main is a development utility that generates the two secrets
// BotVault needs at startup: the envelope encryption master key and the JWT
// signing secret. It prints ready-to-export environment variable assignments.
// Generate production secrets with your secret management tooling instead of
// this script so they never touch a developer terminal.
package main

import (
	"encoding/base64"
	"fmt"
	"log"

	"github.com/botvault/botvault/internal/crypto"
)

func main() {
	master, err := crypto.GenerateMasterSecret()
	if err != nil {
		log.Fatal(err)
	}
	jwtSecret, err := crypto.GenerateMasterSecret()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("# Add these to your environment:")
	fmt.Printf("export BOTVAULT_MASTER_KEY=%s\n", base64.RawURLEncoding.EncodeToString(master))
	fmt.Printf("export BOTVAULT_JWT_SECRET=%s\n", base64.RawURLEncoding.EncodeToString(jwtSecret))
}
