package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/frh3ddy/farmacia-ops-sub000/config"
	"github.com/frh3ddy/farmacia-ops-sub000/models"
	"github.com/frh3ddy/farmacia-ops-sub000/utils"
	"github.com/frh3ddy/farmacia-ops-sub000/workflow"
)

// Ops tool: inspect a cutover's progress and lock state, optionally reset a
// failed one so it can be continued.
func main() {
	businessId := flag.String("business-id", "", "Business ID (required)")
	cutoverId := flag.String("cutover-id", "", "Cutover ID (optional; default = list all)")
	reset := flag.Bool("reset", false, "Reset a FAILED cutover so it can be continued")
	flag.Parse()

	if strings.TrimSpace(*businessId) == "" {
		panic("business-id is required")
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		panic("database not initialized")
	}

	ctx := utils.SetBusinessIdInContext(context.Background(), *businessId)

	if strings.TrimSpace(*cutoverId) == "" {
		var cutovers []models.Cutover
		if err := db.Where("business_id = ?", *businessId).Order("created_at").Find(&cutovers).Error; err != nil {
			panic(err)
		}
		for _, c := range cutovers {
			fmt.Printf("%s  %-12s  batch %d/%d  items %d/%d  %s\n",
				c.ID, c.Status, c.CurrentBatch, c.TotalBatches, c.ProcessedItems, c.TotalItems, c.LastError)
		}
		return
	}

	if *reset {
		result, err := workflow.ResetCutover(ctx, *cutoverId)
		if err != nil {
			panic(err)
		}
		fmt.Printf("reset: %s is now %s (batch %d/%d)\n", result.CutoverId, result.Status, result.CurrentBatch, result.TotalBatches)
		return
	}

	result, err := workflow.GetCutoverStatus(ctx, *cutoverId)
	if err != nil {
		panic(err)
	}
	fmt.Printf("cutover %s\n  status:  %s\n  batch:   %d/%d (size %d)\n  items:   %d/%d\n  done:    %v  continue: %v\n",
		result.CutoverId, result.Status, result.CurrentBatch, result.TotalBatches, result.BatchSize,
		result.ProcessedItems, result.TotalItems, result.IsComplete, result.CanContinue)

	locks, err := models.GetCutoverLocks(db, *businessId, nil)
	if err != nil {
		panic(err)
	}
	for _, lock := range locks {
		fmt.Printf("  lock: location %d frozen at %s\n", lock.LocationId, lock.CutoverDate.Format("2006-01-02"))
	}
}
