// fiberdb-demo walks through the engine's surface end to end: entity CRUD,
// edges and path search, enabling columnar storage with a backfill, and a
// hybrid query that touches both stores. Grounded on the teacher's
// examples/basic_crud/main.go narration style (section headers printed with
// fmt.Println, errors checked inline and reported with fmt.Printf).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bobboyms/fiberdb"
	"github.com/bobboyms/fiberdb/internal/config"
	"github.com/bobboyms/fiberdb/internal/entity"
	"github.com/bobboyms/fiberdb/pkg/queryspec"
)

func main() {
	dataDir := "fiberdb-demo-data"
	os.RemoveAll(dataDir)
	defer os.RemoveAll(dataDir)

	ctx := context.Background()

	// ========================================
	// 1. INITIALIZATION
	// ========================================
	fmt.Println("=== Initialize ===")

	cfg := config.Default(dataDir)
	engine, err := fiberdb.Initialize(cfg)
	if err != nil {
		fmt.Printf("failed to initialize engine: %v\n", err)
		return
	}
	defer engine.Close()

	// ========================================
	// 2. ENTITY CRUD
	// ========================================
	fmt.Println("\n=== saveEntity ===")

	products := []*entity.Entity{
		{Type: "product", ID: "p1", Attributes: map[string]entity.Value{
			"name":     entity.String("Wireless Mouse"),
			"category": entity.String("electronics"),
			"price":    entity.Number(29.99),
			"status":   entity.String("active"),
		}},
		{Type: "product", ID: "p2", Attributes: map[string]entity.Value{
			"name":     entity.String("Mechanical Keyboard"),
			"category": entity.String("electronics"),
			"price":    entity.Number(89.00),
			"status":   entity.String("active"),
		}},
		{Type: "product", ID: "p3", Attributes: map[string]entity.Value{
			"name":     entity.String("Standing Desk"),
			"category": entity.String("furniture"),
			"price":    entity.Number(399.50),
			"status":   entity.String("discontinued"),
		}},
	}

	for _, p := range products {
		saved, err := engine.SaveEntity(ctx, p)
		if err != nil {
			fmt.Printf("failed to save %s: %v\n", p.ID, err)
			return
		}
		fmt.Printf("saved %s (version %d)\n", saved.CompositeKey(), saved.Metadata.Version)
	}

	warehouse := &entity.Entity{Type: "warehouse", ID: "w1", Attributes: map[string]entity.Value{
		"name": entity.String("Main Distribution Center"),
	}}
	if _, err := engine.SaveEntity(ctx, warehouse); err != nil {
		fmt.Printf("failed to save warehouse: %v\n", err)
		return
	}

	// ========================================
	// 3. EDGES AND PATH SEARCH
	// ========================================
	fmt.Println("\n=== addEdge / findPaths ===")

	for _, p := range products {
		err := engine.AddEdge(ctx, "warehouse", "w1", entity.Edge{
			Type:   "stocks",
			Target: p.CompositeKey(),
		})
		if err != nil {
			fmt.Printf("failed to add edge to %s: %v\n", p.ID, err)
			return
		}
	}

	paths := engine.FindPaths("warehouse:w1", "product:p2", 2)
	fmt.Printf("found %d path(s) from warehouse:w1 to product:p2\n", len(paths))

	// ========================================
	// 4. COLUMNAR STORAGE: ENABLE + BACKFILL
	// ========================================
	fmt.Println("\n=== enableColumnarStorage (with backfill) ===")

	err = engine.ConfigureColumnarStorage("product", fiberdb.ColumnarEntityConfig{
		Columns:  []string{"category", "price", "status"},
		Indexed:  []string{"category", "status"},
		SyncMode: fiberdb.SyncImmediate,
	})
	if err != nil {
		fmt.Printf("failed to configure columnar storage: %v\n", err)
		return
	}

	metrics := engine.GetColumnarMetrics()
	fmt.Printf("product columnar state: %s, %d column(s)\n", metrics["product"].State, len(metrics["product"].Columns))

	// ========================================
	// 5. QUERIES: ENTITY-ONLY, COLUMNAR-ONLY, HYBRID
	// ========================================
	fmt.Println("\n=== queryWithStrategy ===")

	analytical, err := engine.EnhancedQuery(ctx, queryspec.Params{
		Type:      "product",
		Aggregate: &queryspec.Aggregate{Column: "price", Op: queryspec.AggAvg},
	})
	if err != nil {
		fmt.Printf("analytical query failed: %v\n", err)
		return
	}
	fmt.Printf("average price: %.2f (strategy=%s, %s)\n",
		analytical.Aggregate, analytical.Metrics.Plan.Strategy, analytical.Metrics.Explanation)

	hybrid, err := engine.EnhancedQuery(ctx, queryspec.Params{
		Type: "product",
		Where: &queryspec.Where{Attributes: map[string]queryspec.Predicate{
			"category": queryspec.Bare(entity.String("electronics").Native()),
			"status":   queryspec.Bare(entity.String("active").Native()),
		}},
		Include: []string{"*"},
	})
	if err != nil {
		fmt.Printf("hybrid query failed: %v\n", err)
		return
	}
	fmt.Printf("active electronics: %d result(s) (strategy=%s)\n",
		len(hybrid.Entities), hybrid.Metrics.Plan.Strategy)

	// ========================================
	// 6. ADMIN
	// ========================================
	fmt.Println("\n=== checkConsistency / getStats ===")

	report := engine.CheckConsistency()
	fmt.Printf("consistency: %s\n", report.Status)

	stats := engine.GetStats()
	fmt.Printf("total entities: %d across %d type(s), %d columnar-active\n",
		stats.TotalEntities, len(stats.EntityTypeCounts), stats.ActiveTypes)
}
