package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/irislabs/iris-memory/internal/models"
	"github.com/irislabs/iris-memory/internal/store"
)

// ReadGraph returns the tenant's entire knowledge graph: every entity with
// its full observation list, and every relation. No filtering, no limit.
func (m *Manager) ReadGraph(ctx context.Context) (*models.KnowledgeGraph, error) {
	graph := &models.KnowledgeGraph{
		Entities:  []models.Entity{},
		Relations: []models.Relation{},
	}

	err := m.store.WithTx(ctx, func(tx *sql.Tx) error {
		entities, err := m.loadEntities(tx)
		if err != nil {
			return err
		}
		graph.Entities = entities

		rows, err := tx.Query(
			`SELECT from_entity_id, to_entity_id, relation_type FROM memory_relations WHERE user_id = ?`,
			m.userID,
		)
		if err != nil {
			return fmt.Errorf("graph: querying relations: %w", err)
		}
		defer rows.Close()

		relations, err := scanRelations(rows)
		if err != nil {
			return err
		}
		graph.Relations = relations
		return nil
	})
	if err != nil {
		return nil, err
	}

	return graph, nil
}

// OpenNodes returns the entities matching the given names (case-insensitive)
// with their observations, plus every relation where either endpoint's
// stored name matches any requested name. An empty name list short-circuits:
// no entities, no relation scan.
func (m *Manager) OpenNodes(ctx context.Context, names []string) (*models.KnowledgeGraph, error) {
	graph := &models.KnowledgeGraph{
		Entities:  []models.Entity{},
		Relations: []models.Relation{},
	}
	if len(names) == 0 {
		return graph, nil
	}

	err := m.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, name := range names {
			entityID, storedName, err := m.findEntity(tx, name)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			var entityType string
			if err := tx.QueryRow(
				`SELECT entity_type FROM memory_entities WHERE id = ?`, entityID,
			).Scan(&entityType); err != nil {
				return fmt.Errorf("graph: loading entity %q: %w", name, err)
			}

			observations, err := m.entityObservations(tx, entityID)
			if err != nil {
				return err
			}

			graph.Entities = append(graph.Entities, models.Entity{
				Name:         storedName,
				EntityType:   entityType,
				Observations: observations,
			})
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
		args := make([]any, 0, 2*len(names)+1)
		args = append(args, m.userID)
		for _, name := range names {
			args = append(args, strings.ToLower(name))
		}
		for _, name := range names {
			args = append(args, strings.ToLower(name))
		}

		rows, err := tx.Query(
			fmt.Sprintf(
				`SELECT from_entity_id, to_entity_id, relation_type FROM memory_relations
				 WHERE user_id = ? AND (LOWER(from_entity_id) IN (%s) OR LOWER(to_entity_id) IN (%s))`,
				placeholders, placeholders,
			),
			args...,
		)
		if err != nil {
			return fmt.Errorf("graph: querying relations: %w", err)
		}
		defer rows.Close()

		relations, err := scanRelations(rows)
		if err != nil {
			return err
		}
		graph.Relations = relations
		return nil
	})
	if err != nil {
		return nil, err
	}

	return graph, nil
}

// loadEntities reads every entity of the tenant with its observations.
func (m *Manager) loadEntities(tx *sql.Tx) ([]models.Entity, error) {
	rows, err := tx.Query(
		`SELECT id, name, entity_type FROM memory_entities WHERE user_id = ?`,
		m.userID,
	)
	if err != nil {
		return nil, fmt.Errorf("graph: querying entities: %w", err)
	}
	defer rows.Close()

	type entityRow struct {
		id     string
		entity models.Entity
	}
	var entityRows []entityRow
	for rows.Next() {
		var er entityRow
		if err := rows.Scan(&er.id, &er.entity.Name, &er.entity.EntityType); err != nil {
			return nil, fmt.Errorf("graph: scanning entity: %w", err)
		}
		entityRows = append(entityRows, er)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("graph: iterating entities: %w", err)
	}

	entities := make([]models.Entity, 0, len(entityRows))
	for _, er := range entityRows {
		observations, err := m.entityObservations(tx, er.id)
		if err != nil {
			return nil, err
		}
		er.entity.Observations = observations
		entities = append(entities, er.entity)
	}
	return entities, nil
}

// entityObservations returns an entity's observation texts in row order.
func (m *Manager) entityObservations(tx *sql.Tx, entityID string) ([]string, error) {
	rows, err := tx.Query(
		`SELECT observation FROM memory_observations WHERE entity_id = ?`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("graph: querying observations: %w", err)
	}
	defer rows.Close()

	observations := []string{}
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("graph: scanning observation: %w", err)
		}
		observations = append(observations, text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("graph: iterating observations: %w", err)
	}
	return observations, nil
}

// scanRelations drains a (from, to, relation_type) result set.
func scanRelations(rows *sql.Rows) ([]models.Relation, error) {
	relations := []models.Relation{}
	for rows.Next() {
		var rel models.Relation
		if err := rows.Scan(&rel.From, &rel.To, &rel.RelationType); err != nil {
			return nil, fmt.Errorf("graph: scanning relation: %w", err)
		}
		relations = append(relations, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("graph: iterating relations: %w", err)
	}
	return relations, nil
}
