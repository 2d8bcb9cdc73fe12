package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nhle/lifeplan/internal/model"
)

// UpsertExternalCollection records the mirror identity and schema of a collection.
func (s *SQLiteStore) UpsertExternalCollection(ctx context.Context, c model.ExternalCollection) error {
	schema := string(c.Schema)
	if schema == "" {
		schema = "{}"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO external_collection (collection_key, external_id, entity_type, schema, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_key) DO UPDATE SET
			external_id = excluded.external_id,
			entity_type = excluded.entity_type,
			schema = excluded.schema,
			updated_at = excluded.updated_at`,
		c.Key, c.ExternalID, string(c.EntityType), schema, c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting external collection %s: %w", c.Key, err)
	}
	return nil
}

// GetExternalCollection loads the mirror identity of a collection.
func (s *SQLiteStore) GetExternalCollection(ctx context.Context, key string) (model.ExternalCollection, error) {
	var (
		c      model.ExternalCollection
		schema string
	)
	err := s.db.QueryRowxContext(ctx, `
		SELECT collection_key, external_id, entity_type, schema, created_at, updated_at
		FROM external_collection WHERE collection_key = ?`, key,
	).Scan(
		&c.Key, &c.ExternalID, &c.EntityType, &schema, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ExternalCollection{}, fmt.Errorf("external collection %s: %w", key, ErrNotFound)
		}
		return model.ExternalCollection{}, fmt.Errorf("getting external collection %s: %w", key, err)
	}
	c.Schema = []byte(schema)
	c.CreatedAt, c.UpdatedAt = c.CreatedAt.UTC(), c.UpdatedAt.UTC()
	return c, nil
}

// DeleteExternalCollection removes a collection and, by cascade, its links.
func (s *SQLiteStore) DeleteExternalCollection(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM external_collection WHERE collection_key = ?", key); err != nil {
		return fmt.Errorf("deleting external collection %s: %w", key, err)
	}
	return nil
}

// UpsertExternalLink records or replaces the mirror row of a local entity.
func (s *SQLiteStore) UpsertExternalLink(ctx context.Context, link model.ExternalLink) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO external_link (collection_key, entity_type, ref_id, external_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_key, ref_id) DO UPDATE SET
			external_id = excluded.external_id,
			updated_at = excluded.updated_at`,
		link.CollectionKey, string(link.EntityType), link.RefID, link.ExternalID,
		link.CreatedAt.UTC(), link.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting external link %s/%s: %w",
			link.CollectionKey, link.RefID, mapConstraintError(err))
	}
	return nil
}

// GetExternalLinks retrieves every link of a collection.
func (s *SQLiteStore) GetExternalLinks(ctx context.Context, collectionKey string) ([]model.ExternalLink, error) {
	var links []model.ExternalLink
	err := s.db.SelectContext(ctx, &links, `
		SELECT collection_key, entity_type, ref_id, external_id, created_at, updated_at
		FROM external_link WHERE collection_key = ?
		ORDER BY created_at, ref_id`, collectionKey)
	if err != nil {
		return nil, fmt.Errorf("querying external links for %s: %w", collectionKey, err)
	}
	return links, nil
}

// DeleteExternalLink removes the link of one entity in one collection.
func (s *SQLiteStore) DeleteExternalLink(ctx context.Context, collectionKey, refID string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM external_link WHERE collection_key = ? AND ref_id = ?",
		collectionKey, refID); err != nil {
		return fmt.Errorf("deleting external link %s/%s: %w", collectionKey, refID, err)
	}
	return nil
}

// DeleteExternalLinksByRefID removes the links of an entity in every collection.
func (s *SQLiteStore) DeleteExternalLinksByRefID(ctx context.Context, refID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM external_link WHERE ref_id = ?", refID); err != nil {
		return fmt.Errorf("deleting external links of %s: %w", refID, err)
	}
	return nil
}
