// Command server runs the INDIEC marketplace API.
package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/indiec/internal/server"
	"github.com/dmitrijs2005/indiec/internal/server/config"
)

func main() {
	cfg := config.LoadConfig()

	ctx := context.Background()
	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("indiec: %v", err)
	}

	app.Run(ctx)
}
