// Command token mints an access/refresh pair for operators, e.g. an admin
// token for the balance credit endpoint. It reads the same JWT_* settings as
// the API.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"calltrack/internal/auth"
	"calltrack/internal/config"
	"calltrack/internal/rbac"

	"github.com/joho/godotenv"
)

func main() {
	userID := flag.String("user", "", "user id the token acts for")
	role := flag.String("role", rbac.RoleUser, "role: user or admin")
	flag.Parse()

	_ = godotenv.Load()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "token: -user is required")
		os.Exit(2)
	}
	if *role != rbac.RoleUser && *role != rbac.RoleAdmin {
		fmt.Fprintf(os.Stderr, "token: unknown role %q\n", *role)
		os.Exit(2)
	}

	cfg, err := config.LoadAuth()
	if err != nil {
		fmt.Fprintln(os.Stderr, "token:", err)
		os.Exit(1)
	}
	m, err := auth.NewManager(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "token:", err)
		os.Exit(1)
	}
	pair, err := m.IssuePair(time.Now(), *userID, *role)
	if err != nil {
		fmt.Fprintln(os.Stderr, "token:", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(pair)
}
