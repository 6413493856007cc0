package fiberdb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bobboyms/fiberdb/internal/config"
	"github.com/bobboyms/fiberdb/internal/entity"
	"github.com/bobboyms/fiberdb/pkg/queryspec"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Initialize(config.Default(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestInitializeRejectsEmptyDataDir(t *testing.T) {
	_, err := Initialize(config.Config{})
	require.Error(t, err)
}

func TestSaveGetDeleteEntityRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	saved, err := e.SaveEntity(ctx, &entity.Entity{Type: "product", ID: "p1", Attributes: map[string]entity.Value{
		"name": entity.String("widget"),
	}})
	require.NoError(t, err)
	require.Equal(t, int64(1), saved.Metadata.Version)

	got, found, err := e.GetEntity(ctx, "product", "p1")
	require.NoError(t, err)
	require.True(t, found)
	name, _ := got.Attributes["name"].AsString()
	require.Equal(t, "widget", name)

	removed, err := e.DeleteEntity(ctx, "product", "p1")
	require.NoError(t, err)
	require.True(t, removed)

	_, found, err = e.GetEntity(ctx, "product", "p1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestConfigureColumnarStorageBackfillsExistingEntitiesAndActivates(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := e.SaveEntity(ctx, &entity.Entity{Type: "product", ID: fmt.Sprintf("p%d", i), Attributes: map[string]entity.Value{
			"category": entity.String("electronics"),
			"price":    entity.Number(float64(10 * (i + 1))),
		}})
		require.NoError(t, err)
	}

	err := e.ConfigureColumnarStorage("product", ColumnarEntityConfig{
		Columns:  []string{"category", "price"},
		Indexed:  []string{"category"},
		SyncMode: SyncImmediate,
	})
	require.NoError(t, err)

	metrics := e.GetColumnarMetrics()
	require.Equal(t, StateActive, metrics["product"].State)
	require.Equal(t, 3, metrics["product"].RecordCount)

	result, err := e.EnhancedQuery(ctx, queryspec.Params{
		Type:      "product",
		Aggregate: &queryspec.Aggregate{Column: "price", Op: queryspec.AggSum},
	})
	require.NoError(t, err)
	require.Equal(t, 60.0, result.Aggregate)
	require.Equal(t, []string{"column_store"}, result.Metrics.StoragesUsed)
}

func TestNewEntitiesAfterActivationProjectImmediately(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.ConfigureColumnarStorage("product", ColumnarEntityConfig{
		Columns:  []string{"category"},
		SyncMode: SyncImmediate,
	}))

	_, err := e.SaveEntity(ctx, &entity.Entity{Type: "product", ID: "p1", Attributes: map[string]entity.Value{
		"category": entity.String("furniture"),
	}})
	require.NoError(t, err)

	metrics := e.GetColumnarMetrics()
	require.Equal(t, 1, metrics["product"].RecordCount)
}

func TestDisableThenReconfigureResumesFromBackfillingWithoutLosingData(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, err := e.SaveEntity(ctx, &entity.Entity{Type: "product", ID: "p1", Attributes: map[string]entity.Value{
		"category": entity.String("electronics"),
	}})
	require.NoError(t, err)

	require.NoError(t, e.ConfigureColumnarStorage("product", ColumnarEntityConfig{Columns: []string{"category"}}))
	require.NoError(t, e.DisableColumnarStorage("product"))
	require.Equal(t, StateDisabled, e.GetColumnarMetrics()["product"].State)

	require.NoError(t, e.ConfigureColumnarStorage("product", ColumnarEntityConfig{Columns: []string{"category"}}))
	require.Equal(t, StateActive, e.GetColumnarMetrics()["product"].State)
	require.Equal(t, 1, e.GetColumnarMetrics()["product"].RecordCount)
}

func TestSyncBatchModeDrainsPromptly(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.ConfigureColumnarStorage("product", ColumnarEntityConfig{
		Columns:  []string{"category"},
		SyncMode: SyncBatch,
	}))

	_, err := e.SaveEntity(ctx, &entity.Entity{Type: "product", ID: "p1", Attributes: map[string]entity.Value{
		"category": entity.String("electronics"),
	}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return e.GetColumnarMetrics()["product"].RecordCount == 1
	}, time.Second, 5*time.Millisecond, "expected batch-mode worker pool to drain the projection promptly")
}

func TestSyncScheduledModeDoesNotProjectBeforeTickerFires(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.ConfigureColumnarStorage("product", ColumnarEntityConfig{
		Columns:  []string{"category"},
		SyncMode: SyncScheduled,
	}))

	_, err := e.SaveEntity(ctx, &entity.Entity{Type: "product", ID: "p1", Attributes: map[string]entity.Value{
		"category": entity.String("electronics"),
	}})
	require.NoError(t, err)

	// The scheduled flush interval is 500ms; immediately after the write the
	// entity must still be sitting in the pending set, not yet projected.
	require.Equal(t, 0, e.GetColumnarMetrics()["product"].RecordCount)

	require.Eventually(t, func() bool {
		return e.GetColumnarMetrics()["product"].RecordCount == 1
	}, 2*time.Second, 20*time.Millisecond, "expected scheduled flush to eventually project the pending entity")
}

func TestCheckConsistencyReportsConsistentWhenInSync(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, err := e.SaveEntity(ctx, &entity.Entity{Type: "product", ID: "p1", Attributes: map[string]entity.Value{
		"category": entity.String("electronics"),
	}})
	require.NoError(t, err)
	require.NoError(t, e.ConfigureColumnarStorage("product", ColumnarEntityConfig{Columns: []string{"category"}}))

	report := e.CheckConsistency()
	require.Equal(t, StatusConsistent, report.Status)
	require.Empty(t, report.Issues)
}

func TestCheckConsistencyFlagsDriftAfterRemovingColumns(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, err := e.SaveEntity(ctx, &entity.Entity{Type: "product", ID: "p1", Attributes: map[string]entity.Value{
		"category": entity.String("electronics"),
		"price":    entity.Number(10),
	}})
	require.NoError(t, err)
	require.NoError(t, e.ConfigureColumnarStorage("product", ColumnarEntityConfig{Columns: []string{"category", "price"}}))
	require.NoError(t, e.RemoveColumnarColumns("product", []string{"price"}))

	report := e.CheckConsistency()
	require.NotEqual(t, StatusConsistent, report.Status)
	require.NotEmpty(t, report.Issues["product"])
}

func TestGetStatsCountsEntitiesAcrossTypesAndConfiguration(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, err := e.SaveEntity(ctx, &entity.Entity{Type: "product", ID: "p1"})
	require.NoError(t, err)
	_, err = e.SaveEntity(ctx, &entity.Entity{Type: "warehouse", ID: "w1"})
	require.NoError(t, err)
	require.NoError(t, e.ConfigureColumnarStorage("product", ColumnarEntityConfig{Columns: []string{"name"}}))

	stats := e.GetStats()
	require.Equal(t, 2, stats.TotalEntities)
	require.Equal(t, 1, stats.EntityTypeCounts["product"])
	require.Equal(t, 1, stats.EntityTypeCounts["warehouse"])
	require.Equal(t, 1, stats.ConfiguredTypes)
	require.Equal(t, 1, stats.ActiveTypes)
}

type upperCaseCipher struct{}

func (upperCaseCipher) Encrypt(plaintext string, key []byte) (string, error) {
	return fmt.Sprintf("%s:%s", string(key), plaintext), nil
}

func (upperCaseCipher) Decrypt(ciphertext string, key []byte) (string, error) {
	prefix := string(key) + ":"
	if len(ciphertext) <= len(prefix) || ciphertext[:len(prefix)] != prefix {
		return "", fmt.Errorf("secure: ciphertext missing expected key prefix")
	}
	return ciphertext[len(prefix):], nil
}

func TestEncryptThenDecryptSecureFieldsRoundTrips(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Encryptor = upperCaseCipher{}
	cfg.Decryptor = upperCaseCipher{}
	e, err := Initialize(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	key := []byte("k1")
	ent := &entity.Entity{Type: "account", ID: "a1", Attributes: map[string]entity.Value{
		"ssn":      entity.String("123-45-6789"),
		"__secure": entity.Array(entity.String("ssn")),
	}}

	require.NoError(t, e.EncryptSecureFields(ent, key))
	cipher, _ := ent.Attributes["ssn"].AsString()
	require.NotEqual(t, "123-45-6789", cipher)

	require.NoError(t, e.DecryptSecureFields(ent, key))
	plain, _ := ent.Attributes["ssn"].AsString()
	require.Equal(t, "123-45-6789", plain)
}

func TestDecryptSecureFieldsIsNoOpWithoutDecryptorConfigured(t *testing.T) {
	e := newTestEngine(t)
	ent := &entity.Entity{Type: "account", ID: "a1", Attributes: map[string]entity.Value{
		"ssn":      entity.String("123-45-6789"),
		"__secure": entity.Array(entity.String("ssn")),
	}}
	require.NoError(t, e.DecryptSecureFields(ent, []byte("k1")))
	plain, _ := ent.Attributes["ssn"].AsString()
	require.Equal(t, "123-45-6789", plain)
}
