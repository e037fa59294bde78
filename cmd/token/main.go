package main

import (
	"chat-live/auth"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	JwtSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
}

// Prints a bearer token for the given user, signed with the server secret.
func main() {
	userID := flag.String("user", "", "User id carried by the token")
	roles := flag.String("roles", "user", "Comma separated roles")
	flag.Parse()

	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(2)
	}
	if *userID == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(2)
	}

	token, err := auth.NewTokenManager(config.JwtSecret, config.AuthTokenDuration).
		GenerateToken(*userID, strings.Split(*roles, ","))
	if err != nil {
		fmt.Fprintf(os.Stderr, "token generation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
