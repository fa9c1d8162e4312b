package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/prepwise/partner-server-go/internal/auth"
	"github.com/prepwise/partner-server-go/internal/model"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: go run scripts/issue-token.go <user-id> <partner|candidate|admin> [email] [ttl]\n")
		os.Exit(1)
	}

	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintf(os.Stderr, "Error: JWT_SECRET is not set\n")
		os.Exit(1)
	}
	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "prepwise"
	}

	accountType := model.AccountType(os.Args[2])
	switch accountType {
	case model.AccountTypePartner, model.AccountTypeCandidate, model.AccountTypeAdmin:
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown account type %q\n", os.Args[2])
		os.Exit(1)
	}

	var email string
	if len(os.Args) > 3 {
		email = os.Args[3]
	}

	ttl := 24 * time.Hour
	if len(os.Args) > 4 {
		parsed, err := time.ParseDuration(os.Args[4])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid ttl: %v\n", err)
			os.Exit(1)
		}
		ttl = parsed
	}

	token, err := auth.NewTokenService(secret, issuer).Issue(os.Args[1], accountType, email, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
