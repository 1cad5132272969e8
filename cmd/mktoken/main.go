/*
main.go - Development token minter

USAGE:
  go run ./cmd/mktoken -id op-1 -nome "Maria" -funcoes corte,costura -secret dev-secret

Mints an HS256 token with the claim shape the API expects. For local
development only; production tokens come from the identity provider.
*/
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/joho/godotenv"
)

func main() {
	godotenv.Load()

	id := flag.String("id", "", "operator id (required)")
	nome := flag.String("nome", "", "operator display name")
	funcoes := flag.String("funcoes", "", "comma-separated roles, e.g. corte,costura or admin")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "HS256 signing secret")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *id == "" {
		log.Fatal("-id is required")
	}
	if *secret == "" {
		log.Fatal("-secret (or JWT_SECRET) is required")
	}

	var roles []string
	for _, f := range strings.Split(*funcoes, ",") {
		if f = strings.TrimSpace(f); f != "" {
			roles = append(roles, f)
		}
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":      *id,
		"nome":    *nome,
		"funcoes": roles,
		"iat":     now.Unix(),
		"exp":     now.Add(*ttl).Unix(),
	})

	signed, err := token.SignedString([]byte(*secret))
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}
	fmt.Println(signed)
}
