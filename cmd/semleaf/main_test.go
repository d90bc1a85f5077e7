package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furon-kuina/semleaf"
	"github.com/furon-kuina/semleaf/application/service"
	"github.com/furon-kuina/semleaf/domain/search"
	"github.com/furon-kuina/semleaf/infrastructure/provider"
	"github.com/furon-kuina/semleaf/internal/config"
)

// isolateEnv points the CLI at a fresh SQLite database with no provider configured.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "semleaf.db")
	t.Setenv("DATA_DIR", dir)
	t.Setenv("DB_URL", "sqlite:///"+dbPath)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("EMBEDDING_ENDPOINT_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("LOG_LEVEL", "ERROR")
	return dbPath
}

func seed(t *testing.T, dbPath string) {
	t.Helper()
	client, err := semleaf.New(
		semleaf.WithSQLite(dbPath),
		semleaf.WithEmbedder(provider.NewStaticEmbedderWithVector([]float64{1, 0, 0})),
		semleaf.WithDimension(3),
	)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	_, err = client.Phrases.Create(context.Background(), service.CreateParams{
		Phrase:   "break the ice",
		Meanings: []string{"start a conversation", "ease tension"},
		Tags:     []string{"idiom"},
	})
	require.NoError(t, err)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")

	require.NoError(t, err)
	assert.Contains(t, out, "semleaf version dev")
	assert.Contains(t, out, "commit: unknown")
}

func TestExportCommand_JSONToStdout(t *testing.T) {
	seed(t, isolateEnv(t))

	out, err := execute(t, "export")
	require.NoError(t, err)

	var phrases []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &phrases))
	require.Len(t, phrases, 1)
	assert.Equal(t, "break the ice", phrases[0]["phrase"])
	assert.NotContains(t, out, "embedding")
}

func TestExportCommand_CSVToFile(t *testing.T) {
	seed(t, isolateEnv(t))
	target := filepath.Join(t.TempDir(), "out.csv")

	_, err := execute(t, "export", "--format", "csv", "--output", target)
	require.NoError(t, err)

	f, err := os.Open(target)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "start a conversation | ease tension", records[1][2])
}

func TestServeCommand_RequiresEmbeddingKey(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "serve", "--port", "0")

	assert.ErrorIs(t, err, errEmbeddingNotConfigured)
}

func TestClientOptions(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewAppConfigWithOptions(config.WithDataDir(dir))

	_, err := clientOptions(cfg, nil, true)
	assert.ErrorIs(t, err, errEmbeddingNotConfigured)

	opts, err := clientOptions(cfg, nil, false)
	require.NoError(t, err)
	client, err := semleaf.New(opts...)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	_, err = client.Search.Semantic(context.Background(), "anything", 5)
	assert.ErrorIs(t, err, search.ErrEmbedding, "read-only client refuses to embed")

	cfg = cfg.Apply(config.WithEmbeddingEndpoint(config.NewEndpointWithOptions(config.WithAPIKey("sk-test"))))
	opts, err = clientOptions(cfg, nil, true)
	require.NoError(t, err)
	assert.NotEmpty(t, opts)
}

func TestOpenAIConfig(t *testing.T) {
	cfg := config.NewAppConfigWithOptions(
		config.WithHTTPCacheDir("/tmp/cache"),
		config.WithEmbeddingEndpoint(config.NewEndpointWithOptions(
			config.WithAPIKey("sk-test"),
			config.WithBaseURL("http://localhost:11434/v1"),
			config.WithModel("nomic-embed-text"),
			config.WithDimension(768),
			config.WithMaxRetries(3),
		)),
	)

	got := openAIConfig(cfg)

	assert.Equal(t, "sk-test", got.APIKey)
	assert.Equal(t, "http://localhost:11434/v1", got.BaseURL)
	assert.Equal(t, "nomic-embed-text", got.Model)
	assert.Equal(t, 768, got.Dimension)
	assert.Equal(t, 3, got.MaxRetries)
	assert.Equal(t, "/tmp/cache", got.CacheDir)
}

func TestApplyServeOverrides(t *testing.T) {
	cfg := config.NewAppConfig()

	assert.Equal(t, cfg.Addr(), applyServeOverrides(cfg, "", 0).Addr())
	assert.Equal(t, "127.0.0.1:9000", applyServeOverrides(cfg, "127.0.0.1", 9000).Addr())
}
