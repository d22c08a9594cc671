// Package mirror maintains an optional Neo4j read model of a tenant's
// knowledge graph. SQLite stays the source of truth; the mirror is rebuilt
// wholesale per tenant so graph tooling (Bloom, Cypher shells) can browse
// what the agent remembers.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/irislabs/iris-memory/internal/models"
)

// Config holds the Neo4j connection settings. Database may be empty to use
// the server default.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Mirror pushes knowledge-graph snapshots into Neo4j.
type Mirror struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// New connects to Neo4j and verifies connectivity before returning.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Mirror, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("mirror: creating driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("mirror: verifying connectivity to %s: %w", cfg.URI, err)
	}
	logger.Info("connected to neo4j mirror", "uri", cfg.URI)
	return &Mirror{driver: driver, database: cfg.Database, logger: logger}, nil
}

// Close releases the driver connection.
func (m *Mirror) Close(ctx context.Context) error {
	return m.driver.Close(ctx)
}

// Sync replaces the tenant's subgraph with the given snapshot. Entities are
// keyed by tenant plus lower-cased name so the mirror follows the same
// case-insensitive identity as the store.
func (m *Mirror) Sync(ctx context.Context, userID string, kg *models.KnowledgeGraph) error {
	session := m.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: m.database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx,
			`MATCH (e:Entity {user_id: $userID}) DETACH DELETE e`,
			map[string]any{"userID": userID},
		); err != nil {
			return nil, fmt.Errorf("clearing tenant subgraph: %w", err)
		}

		if len(kg.Entities) > 0 {
			entityRows := make([]map[string]any, 0, len(kg.Entities))
			for _, e := range kg.Entities {
				entityRows = append(entityRows, map[string]any{
					"name":         e.Name,
					"name_lc":      strings.ToLower(e.Name),
					"entity_type":  e.EntityType,
					"observations": e.Observations,
				})
			}
			if _, err := tx.Run(ctx,
				`UNWIND $rows AS row
				 MERGE (e:Entity {user_id: $userID, name_lc: row.name_lc})
				 SET e.name = row.name,
				     e.entity_type = row.entity_type,
				     e.observations = row.observations`,
				map[string]any{"userID": userID, "rows": entityRows},
			); err != nil {
				return nil, fmt.Errorf("merging entities: %w", err)
			}
		}

		if len(kg.Relations) > 0 {
			relationRows := make([]map[string]any, 0, len(kg.Relations))
			for _, r := range kg.Relations {
				relationRows = append(relationRows, map[string]any{
					"from_lc":       strings.ToLower(r.From),
					"to_lc":         strings.ToLower(r.To),
					"relation_type": r.RelationType,
				})
			}
			if _, err := tx.Run(ctx,
				`UNWIND $rows AS row
				 MATCH (f:Entity {user_id: $userID, name_lc: row.from_lc})
				 MATCH (t:Entity {user_id: $userID, name_lc: row.to_lc})
				 MERGE (f)-[rel:RELATES {relation_type: row.relation_type}]->(t)`,
				map[string]any{"userID": userID, "rows": relationRows},
			); err != nil {
				return nil, fmt.Errorf("merging relations: %w", err)
			}
		}

		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("mirror: syncing tenant %s: %w", userID, err)
	}

	m.logger.Info("mirrored knowledge graph",
		"user_id", userID,
		"entities", len(kg.Entities),
		"relations", len(kg.Relations))
	return nil
}
