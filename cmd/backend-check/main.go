// Command backend-check verifies connectivity to the collection backend:
// it lists the reachable brands and fetches a small post sample for each.
// Useful when standing up a new environment.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/brandlens/brandlens/internal/backend"
	"github.com/brandlens/brandlens/internal/config"
	"github.com/brandlens/brandlens/internal/mentions"
)

func main() {
	fmt.Println("Brand mentions backend connectivity check")
	fmt.Println("=========================================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := backend.NewClient(cfg.BackendURL, cfg.BackendToken, cfg.BackendRPS, cfg.BackendBurst)

	fmt.Printf("\nBackend: %s\n", cfg.BackendURL)

	brands, err := client.AllBrands(ctx)
	if err != nil {
		log.Fatalf("FAIL brand listing: %v", err)
	}
	fmt.Printf("OK   brand listing: %d brands\n", len(brands))

	for _, brand := range brands {
		keywords, err := client.Keywords(ctx, brand.BrandName)
		if err != nil {
			fmt.Printf("FAIL %s keywords: %v\n", brand.BrandName, err)
			continue
		}

		raws, err := client.Posts(ctx, backend.PostQuery{BrandName: brand.BrandName, Limit: 5, Sort: "desc"})
		if err != nil {
			fmt.Printf("FAIL %s posts: %v\n", brand.BrandName, err)
			continue
		}

		posts := mentions.NormalizePosts(raws, brand.BrandName)
		newest := "none"
		if len(posts) > 0 {
			if ts := posts[0].Timestamp(); ts != nil {
				newest = ts.Format(time.RFC3339)
			}
		}
		fmt.Printf("OK   %s: %d keywords, %d recent posts (newest: %s)\n",
			brand.BrandName, len(keywords), len(posts), newest)
	}

	fmt.Println("\nDone.")
}
