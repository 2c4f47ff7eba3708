package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/florence-gateway/backend/internal/auth"
	"github.com/florence-gateway/backend/internal/config"
)

// admintoken prints a bearer token for the admin API and the /ws feed.
func main() {
	subject := flag.String("subject", "", "operator name recorded in audit logs")
	role := flag.String("role", auth.RoleViewer, "admin or viewer")
	ttl := flag.Duration("ttl", 0, "token lifetime (default ADMIN_JWT_TTL_HOURS)")
	flag.Parse()

	cfg := config.Load()
	if cfg.AdminJWTSecret == "" {
		fmt.Fprintln(os.Stderr, "ADMIN_JWT_SECRET is not set")
		os.Exit(1)
	}
	if *subject == "" {
		fmt.Fprintln(os.Stderr, "-subject is required")
		os.Exit(2)
	}
	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = cfg.AdminJWTTTL
	}

	token, err := auth.GenerateJWT(cfg.AdminJWTSecret, *subject, *role, lifetime)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", time.Now().Add(lifetime).Format(time.RFC3339))
}
