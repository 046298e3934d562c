// Command authorize grants a user access to the journaling agent by
// writing their token straight to the store, bypassing the state machine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/ellielabs/ellie/backend/internal/config"
	"github.com/ellielabs/ellie/backend/internal/store"
)

func main() {
	userID := flag.Int64("user", 0, "user identity to authorize (defaults to ADMIN_USER_ID)")
	token := flag.String("token", "", "access token to assign")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if *userID == 0 {
		*userID = cfg.Admin.UserID
	}
	if *userID == 0 || *token == "" {
		fmt.Fprintln(os.Stderr, "usage: authorize -user <id> -token <token>")
		os.Exit(2)
	}

	st, err := store.OpenSQLite(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.PutAuthorization(context.Background(), *userID, *token, nil, nil); err != nil {
		fmt.Fprintf(os.Stderr, "authorize: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("User %d has been authorized.\n", *userID)
}
