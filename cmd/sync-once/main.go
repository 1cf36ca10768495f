package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/materialsync_backend/config"
	"bitbucket.org/mmdatafocus/materialsync_backend/materialsync"
	"bitbucket.org/mmdatafocus/materialsync_backend/models"
	"bitbucket.org/mmdatafocus/materialsync_backend/shopify"
)

// One-shot reconciliation pass. Useful after editing relations by hand or
// for cron-style deployments without the long-running server.
func main() {
	logger := config.GetLogger()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	tokens := models.ShopTokenSource{Shop: strings.TrimSpace(os.Getenv("SHOP"))}
	client, err := shopify.NewClient(tokens, logger)
	if err != nil {
		logger.Fatalf("shopify client: %v", err)
	}

	engine := materialsync.NewEngine(client, logger)
	results := engine.SyncMaterials(context.Background())

	failed := 0
	for _, res := range results {
		switch res.Outcome {
		case materialsync.OutcomeSynced:
			fmt.Printf("%s: synced (%d adjustments)\n", res.Material, res.Adjusted)
		case materialsync.OutcomeSkipped:
			fmt.Printf("%s: skipped (%s)\n", res.Material, res.Reason)
		case materialsync.OutcomeFailed:
			failed++
			fmt.Printf("%s: FAILED: %v\n", res.Material, res.Err)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}
