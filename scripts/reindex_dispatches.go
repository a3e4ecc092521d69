package main

import (
	"context"
	"log"
	"os"
	"strings"

	"alfredoptarigan/job-orchestrator/internal/config"
	"alfredoptarigan/job-orchestrator/internal/models"
	"alfredoptarigan/job-orchestrator/internal/repositories"
	"alfredoptarigan/job-orchestrator/internal/services"
)

const pageSize = 100

// Rebuilds the dispatch index from the ledger, e.g. after the Qdrant
// collection was dropped or the embedding model changed.
func main() {
	log.Println("🚀 Starting dispatch reindex...")

	cfg := config.Load()
	if cfg.Qdrant.URL == "" || cfg.Gemini.APIKey == "" {
		log.Fatal("❌ QDRANT_URL and GEMINI_API_KEY are both required to reindex")
	}

	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}
	dispatchRepo := repositories.NewDispatchRepository(db)
	appRepo := repositories.NewApplicationRepository(db)

	geminiService, err := services.NewGeminiService(cfg.Gemini, cfg.Completion)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini: %v", err)
	}

	index, err := services.NewDispatchIndex(cfg.Qdrant, geminiService)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Qdrant: %v", err)
	}

	ctx := context.Background()
	if err := index.InitCollection(ctx); err != nil {
		log.Fatalf("❌ Failed to initialize collection: %v", err)
	}

	successCount := 0
	failCount := 0

	for offset := 0; ; offset += pageSize {
		entries, err := dispatchRepo.ListSent(ctx, pageSize, offset)
		if err != nil {
			log.Fatalf("❌ Failed to list dispatches: %v", err)
		}
		if len(entries) == 0 {
			break
		}

		for i := range entries {
			entry := &entries[i]
			body := dispatchBody(ctx, appRepo, entry)

			if err := index.IndexDispatch(ctx, entry, body); err != nil {
				log.Printf("   ❌ Failed to index dispatch %s: %v", entry.ID, err)
				failCount++
				continue
			}
			successCount++
		}

		log.Printf("   📊 Progress: %d dispatches indexed", successCount)
	}

	log.Println("\n" + strings.Repeat("=", 60))
	log.Printf("📊 Reindex Summary:")
	log.Printf("   ✅ Indexed: %d dispatches", successCount)
	log.Printf("   ❌ Failed: %d dispatches", failCount)
	log.Println(strings.Repeat("=", 60))

	if failCount > 0 {
		log.Println("⚠️  Some dispatches failed to index. Please check the logs above.")
		os.Exit(1)
	}

	log.Println("✅ All dispatches indexed successfully!")
}

// dispatchBody recovers the sent body from the application when the dispatch
// was an outreach email. Replies and confirmations index by subject only.
func dispatchBody(ctx context.Context, appRepo repositories.ApplicationRepository, entry *models.DispatchLog) string {
	if entry.ApplicationID == nil {
		return ""
	}
	app, err := appRepo.FindByID(ctx, *entry.ApplicationID)
	if err != nil {
		log.Printf("   ⚠️  Application %s not found, indexing subject only", *entry.ApplicationID)
		return ""
	}
	return app.EmailBody
}
