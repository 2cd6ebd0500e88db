package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"claimflow/auth"
	"claimflow/claim"
	"claimflow/db"
	"claimflow/order"
)

func main() {
	ctx := context.Background()

	connString := os.Getenv("DATABASE_URL")
	pool, err := db.NewPool(ctx, connString)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	server := &Server{
		authService:  auth.NewService(auth.NewRepository(pool), jwtSecret),
		claimService: claim.NewService(claim.NewPGStore(pool)),
		orderService: order.NewService(order.NewRepository(pool)),
	}

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	log.Printf("claim console API listening on %s", addr)
	if err := http.ListenAndServe(addr, server.Handler()); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
