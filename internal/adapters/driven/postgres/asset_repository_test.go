package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driven"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("opening stub database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &DB{DB: db}, mock
}

func assetRow(id, name string, createdAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "type", "mime_type", "size", "content_hash",
		"embedding", "tags", "metadata", "is_processed", "processing_status",
		"created_at", "updated_at", "created_by",
	}).AddRow(
		id, name, "file", "text/plain", int64(42), "abc123",
		[]byte(`[0.1,0.2]`), "{alpha,beta}", []byte(`{"description":"Team handbook"}`),
		false, "pending", createdAt, createdAt, nil,
	)
}

func TestAssetRepositoryCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAssetRepository(db)

	now := time.Now().UTC()
	asset := &domain.Asset{
		ID:               "a1",
		Name:             "handbook.txt",
		Type:             domain.AssetTypeFile,
		MimeType:         "text/plain",
		Size:             42,
		ContentHash:      "abc123",
		Embedding:        []float32{0.1, 0.2},
		Tags:             []string{"alpha"},
		ProcessingStatus: domain.ProcessingPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assets")).
		WithArgs("a1", "handbook.txt", "file", "text/plain", int64(42), "abc123",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			false, "pending", now, now, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), asset); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestAssetRepositoryGet(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAssetRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM assets WHERE id = $1")).
		WithArgs("a1").
		WillReturnRows(assetRow("a1", "handbook.txt", now))

	asset, err := repo.Get(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if asset.Name != "handbook.txt" {
		t.Errorf("name = %q", asset.Name)
	}
	if asset.Type != domain.AssetTypeFile {
		t.Errorf("type = %q", asset.Type)
	}
	if len(asset.Embedding) != 2 || asset.Embedding[1] != 0.2 {
		t.Errorf("embedding = %v", asset.Embedding)
	}
	if len(asset.Tags) != 2 || asset.Tags[0] != "alpha" {
		t.Errorf("tags = %v", asset.Tags)
	}
	if asset.Metadata.Description() != "Team handbook" {
		t.Errorf("description = %q", asset.Metadata.Description())
	}
	// NULL created_by reads back as the zero value
	if asset.CreatedBy != "" {
		t.Errorf("created_by = %q", asset.CreatedBy)
	}
}

func TestAssetRepositoryGetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAssetRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM assets WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrAssetNotFound) {
		t.Fatalf("want ErrAssetNotFound, got %v", err)
	}
}

func TestAssetRepositoryListFiltered(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAssetRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM assets WHERE type = $1 AND (name ILIKE $2 OR COALESCE(metadata->>'description', '') ILIKE $2)`)).
		WithArgs("file", "%hand%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY name ASC LIMIT $3 OFFSET $4")).
		WithArgs("file", "%hand%", 20, 0).
		WillReturnRows(assetRow("a1", "handbook.txt", now))

	assets, total, err := repo.List(context.Background(), driven.AssetListOptions{
		Filter:  domain.AssetFilter{Type: domain.AssetTypeFile, Search: "hand"},
		Sort:    "name",
		Order:   domain.SortAsc,
		Page:    1,
		PerPage: 20,
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(assets) != 1 {
		t.Fatalf("total = %d, len = %d", total, len(assets))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestAssetRepositoryListUnlimited(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAssetRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM assets`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	// No LIMIT clause when PerPage is zero
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WillReturnRows(assetRow("a1", "one.txt", now).
			AddRow("a2", "two.txt", "file", "text/plain", int64(7), "def456",
				nil, "{}", []byte(`{}`), false, "pending", now, now, "bob"))

	assets, total, err := repo.List(context.Background(), driven.AssetListOptions{Page: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(assets) != 2 {
		t.Fatalf("total = %d, len = %d", total, len(assets))
	}
	if assets[1].Embedding != nil {
		t.Errorf("expected nil embedding, got %v", assets[1].Embedding)
	}
	if assets[1].CreatedBy != "bob" {
		t.Errorf("created_by = %q", assets[1].CreatedBy)
	}
}

func TestAssetRepositoryUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAssetRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM assets WHERE id = $1")).
		WithArgs("a1").
		WillReturnRows(assetRow("a1", "old.txt", now))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE assets")).
		WithArgs("a1", "new.txt", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	name := "new.txt"
	asset, err := repo.Update(context.Background(), "a1", domain.AssetUpdate{Name: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if asset.Name != "new.txt" {
		t.Errorf("name = %q", asset.Name)
	}
	if asset.ContentHash != "abc123" {
		t.Errorf("content hash changed: %q", asset.ContentHash)
	}
}

func TestAssetRepositoryDeleteNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAssetRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assets WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	if !errors.Is(err, domain.ErrAssetNotFound) {
		t.Fatalf("want ErrAssetNotFound, got %v", err)
	}
}

func TestAssetRepositorySetProcessingState(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAssetRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("SET is_processed = $2, processing_status = $3")).
		WithArgs("a1", true, "completed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetProcessingState(context.Background(), "a1", true, domain.ProcessingCompleted)
	if err != nil {
		t.Fatalf("SetProcessingState: %v", err)
	}
}

func TestAssetRepositorySaveRelationship(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAssetRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (parent_id, transform_name, transform_digest) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "p1", "c1", "transformed", "text_chunker", "deadbeef", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rel := &domain.AssetRelationship{
		ParentID:        "p1",
		ChildID:         "c1",
		Type:            domain.RelationshipTransformed,
		TransformName:   "text_chunker",
		TransformDigest: "deadbeef",
	}
	if err := repo.SaveRelationship(context.Background(), rel); err != nil {
		t.Fatalf("SaveRelationship: %v", err)
	}
	if rel.ID == "" {
		t.Error("expected generated relationship ID")
	}
}

func TestAssetRepositorySaveRelationshipSelfLoop(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAssetRepository(db)

	// Rejected before any SQL is issued
	err := repo.SaveRelationship(context.Background(), &domain.AssetRelationship{
		ParentID:        "asset-1",
		ChildID:         "asset-1",
		Type:            domain.RelationshipTransformed,
		TransformName:   "text_chunker",
		TransformDigest: "abc",
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database activity: %v", err)
	}
}

func TestAssetRepositoryListNamesContaining(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAssetRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM assets")).
		WithArgs(`%50\%\_off%`, 10).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("50%_off.txt"))

	names, err := repo.ListNamesContaining(context.Background(), "50%_off", 10)
	if err != nil {
		t.Fatalf("ListNamesContaining: %v", err)
	}
	if len(names) != 1 || names[0] != "50%_off.txt" {
		t.Errorf("names = %v", names)
	}
}
