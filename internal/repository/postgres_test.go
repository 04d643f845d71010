package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"torno/pkg/models"
)

func TestPostgresRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("torno-test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	repo := NewPostgresRepository(pool)
	require.NoError(t, repo.Migrate(ctx))

	t.Run("enrichment round trip", func(t *testing.T) {
		def := models.NewEnrichment("summarize", "summarizes text", map[string]any{"team": "data"})
		v, err := models.NewVersion(models.VersionConfig{
			Prompt: "Summarize: {{text}}",
			Model:  "test-model",
			Params: map[string]any{"temperature": 0.2},
			InputSchema: models.MustSchema(
				map[string]models.FieldType{"text": models.FieldText}, []string{"text"}, nil),
			OutputSchema: models.MustSchema(
				map[string]models.FieldType{"summary": models.FieldText}, []string{"summary"}, nil),
		})
		require.NoError(t, err)
		def.AddVersion(v)

		require.NoError(t, repo.CreateEnrichment(ctx, def))

		got, err := repo.GetEnrichment(ctx, "summarize")
		require.NoError(t, err)
		assert.Equal(t, def.Name, got.Name)
		assert.Equal(t, def.Description, got.Description)
		require.Len(t, got.Versions, 1)
		assert.Equal(t, v.VersionID, got.Versions[0].VersionID)
		assert.Equal(t, v.InputSchema.Fields, got.Versions[0].InputSchema.Fields)
	})

	t.Run("duplicate registration conflicts", func(t *testing.T) {
		err := repo.CreateEnrichment(ctx, models.NewEnrichment("summarize", "again", nil))
		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("update appends version atomically", func(t *testing.T) {
		v2, err := models.NewVersion(models.VersionConfig{
			Prompt: "Summarize briefly: {{text}}",
			Model:  "test-model",
			InputSchema: models.MustSchema(
				map[string]models.FieldType{"text": models.FieldText}, []string{"text"}, nil),
			OutputSchema: models.MustSchema(
				map[string]models.FieldType{"summary": models.FieldText}, nil, nil),
		})
		require.NoError(t, err)

		updated, err := repo.UpdateEnrichment(ctx, "summarize", func(def *models.EnrichmentDefinition) error {
			def.AddVersion(v2)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, v2.VersionID, updated.LatestVersion().VersionID)

		got, err := repo.GetEnrichment(ctx, "summarize")
		require.NoError(t, err)
		assert.Len(t, got.Versions, 2)
	})

	t.Run("job round trip and update", func(t *testing.T) {
		job := models.NewJob("ds-1", "summarize", "abc123def456", map[string]any{"text": "hello"})
		require.NoError(t, repo.CreateJob(ctx, job))

		got, err := repo.GetJob(ctx, job.JobID)
		require.NoError(t, err)
		assert.Equal(t, models.JobPending, got.Status)
		assert.Equal(t, "hello", got.InputData["text"])

		updated, err := repo.UpdateJob(ctx, job.JobID, func(j *models.EnrichmentJob) error {
			if err := j.Transition(models.JobRunning); err != nil {
				return err
			}
			return j.Transition(models.JobCompleted)
		})
		require.NoError(t, err)
		assert.NotNil(t, updated.StartedAt)
		assert.NotNil(t, updated.CompletedAt)

		got, err = repo.GetJob(ctx, job.JobID)
		require.NoError(t, err)
		assert.Equal(t, models.JobCompleted, got.Status)
	})

	t.Run("missing job", func(t *testing.T) {
		_, err := repo.GetJob(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("features upsert", func(t *testing.T) {
		_, err := repo.PutFeatures(ctx, "ds-1", "summarize", map[string]any{"summary": "v1"})
		require.NoError(t, err)
		_, err = repo.PutFeatures(ctx, "ds-1", "summarize", map[string]any{"summary": "v2"})
		require.NoError(t, err)

		set, err := repo.GetFeatureSet(ctx, "ds-1")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"summary": "v2"}, set.FeaturesFor("summarize"))
	})
}
