package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"torno/internal/config"
	"torno/internal/logging"
	"torno/internal/repository"
	"torno/internal/services"
	"torno/pkg/models"
)

func main() {
	ctx := context.Background()
	logger := logging.NewLogger()

	// Load config
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to DB
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	repo := repository.NewPostgresRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	service := services.NewEnrichmentService(repo, nil, logger)

	// Check for existing enrichments to prevent duplicates
	existing, err := service.ListEnrichments(ctx)
	if err != nil {
		log.Fatalf("Failed to list existing enrichments: %v", err)
	}
	existingMap := make(map[string]bool)
	for _, def := range existing {
		existingMap[def.Name] = true
	}

	// Seed enrichments with one initial version each
	seeds := []struct {
		Name        string
		Description string
		Config      models.VersionConfig
	}{
		{
			Name:        "summarizer",
			Description: "Summarizes long text into concise notes.",
			Config: models.VersionConfig{
				Prompt: "Summarize the following text in two sentences:\n{text}",
				Model:  "gpt-4",
				Params: map[string]any{"temperature": 0.2},
				InputSchema: models.MustSchema(
					map[string]models.FieldType{"text": models.FieldText},
					[]string{"text"}, nil),
				OutputSchema: models.MustSchema(
					map[string]models.FieldType{"summary": models.FieldText},
					[]string{"summary"}, nil),
			},
		},
		{
			Name:        "sentiment",
			Description: "Classifies the sentiment of a text.",
			Config: models.VersionConfig{
				Prompt: "Classify the sentiment of this text as positive, neutral or negative:\n{text}",
				Model:  "gpt-4",
				Params: map[string]any{"temperature": 0.0},
				InputSchema: models.MustSchema(
					map[string]models.FieldType{"text": models.FieldText},
					[]string{"text"}, nil),
				OutputSchema: models.MustSchema(
					map[string]models.FieldType{
						"label": models.FieldText,
						"score": models.FieldFloat,
					},
					[]string{"label"}, nil),
			},
		},
		{
			Name:        "keyword-extractor",
			Description: "Extracts the key terms from a document.",
			Config: models.VersionConfig{
				Prompt: "List the ten most important keywords in this document:\n{text}",
				Model:  "gpt-3.5-turbo",
				InputSchema: models.MustSchema(
					map[string]models.FieldType{"text": models.FieldText},
					[]string{"text"}, nil),
				OutputSchema: models.MustSchema(
					map[string]models.FieldType{"keywords": models.FieldSequence},
					[]string{"keywords"}, nil),
			},
		},
	}

	for _, seed := range seeds {
		if existingMap[seed.Name] {
			logger.Info("Skipping existing enrichment", "name", seed.Name)
			continue
		}

		if _, err := service.Register(ctx, seed.Name, seed.Description, map[string]any{"created_by": "seed-script"}); err != nil {
			log.Printf("Failed to register enrichment %s: %v", seed.Name, err)
			continue
		}

		version, err := service.CreateVersion(ctx, seed.Name, seed.Config)
		if err != nil {
			log.Printf("Failed to create version for %s: %v", seed.Name, err)
			continue
		}
		logger.Info("Seeded enrichment", "name", seed.Name, "version_id", version.VersionID)
	}
	logger.Info("Seeding complete!")
}
