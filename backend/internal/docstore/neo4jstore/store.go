// Package neo4jstore implements docstore.Store on Neo4j. Every document is a
// :Doc node keyed by (collection, id). Scalars and lists of scalars, which
// covers every edge set, are stored as native properties; nested values are
// stored as JSON strings and listed in the node's _json property.
package neo4jstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"lookbook/backend/internal/docstore"
	apperrors "lookbook/backend/pkg/errors"
	"lookbook/backend/pkg/logger"
)

const (
	collectionProp = "collection"
	jsonProp       = "_json"
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

var _ docstore.Store = (*Store)(nil)

// Store is a docstore.Store backed by a Neo4j database.
type Store struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// Connect creates a driver for uri and verifies connectivity.
func Connect(ctx context.Context, uri, user, password string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, apperrors.NewStoreConnectionFailed("neo4j", uri, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, apperrors.NewStoreConnectionFailed("neo4j", uri, err)
	}
	return New(driver), nil
}

// New wraps an existing driver.
func New(driver neo4j.DriverWithContext) *Store {
	return &Store{
		driver: driver,
		logger: logger.Named("neo4jstore"),
	}
}

// Close closes the Neo4j driver connection
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// EnsureSchema creates the lookup index on (collection, id) plus indexes on
// the fields the engine filters by.
func (s *Store) EnsureSchema(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	statements := []string{
		"CREATE INDEX doc_key IF NOT EXISTS FOR (n:Doc) ON (n.collection, n.id)",
		"CREATE INDEX doc_user IF NOT EXISTS FOR (n:Doc) ON (n.collection, n.userId)",
		"CREATE INDEX doc_recipient IF NOT EXISTS FOR (n:Doc) ON (n.collection, n.recipientId)",
		"CREATE INDEX doc_created IF NOT EXISTS FOR (n:Doc) ON (n.createdAt)",
	}
	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	s.logger.Info("Document indexes ensured", zap.Int("count", len(statements)))
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (n:Doc {collection: $collection, id: $id})
		RETURN properties(n) AS props
	`
	result, err := session.Run(ctx, query, map[string]any{
		"collection": collection,
		"id":         id,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("failed to fetch record: %w", err)
		}
		return nil, docstore.ErrNotFound
	}
	return decodeProps(getMapFromRecord(result.Record(), "props")), nil
}

func (s *Store) Update(ctx context.Context, collection, id string, ops ...docstore.FieldOp) error {
	query, params, err := buildUpdate(ops)
	if err != nil {
		return err
	}
	params["collection"] = collection
	params["id"] = id

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return fmt.Errorf("failed to update document: %w", err)
		}
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, data docstore.Doc) (string, error) {
	id := uuid.New().String()
	if err := s.Put(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Put(ctx context.Context, collection, id string, data docstore.Doc) error {
	props, err := encodeProps(data)
	if err != nil {
		return err
	}
	props[collectionProp] = collection
	props[docstore.IDField] = id

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MERGE (n:Doc {collection: $collection, id: $id})
		SET n = $props
		RETURN n.id AS id
	`
	result, err := session.Run(ctx, query, map[string]any{
		"collection": collection,
		"id":         id,
		"props":      props,
	})
	if err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	if _, err := result.Single(ctx); err != nil {
		return fmt.Errorf("failed to verify document write: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.Run(ctx, "MATCH (n:Doc {collection: $collection, id: $id}) DETACH DELETE n", map[string]any{
		"collection": collection,
		"id":         id,
	})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Doc, error) {
	query, params, err := buildQuery(q)
	if err != nil {
		return nil, err
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	var docs []docstore.Doc
	for result.Next(ctx) {
		docs = append(docs, decodeProps(getMapFromRecord(result.Record(), "props")))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	return docs, nil
}

func checkField(field string) error {
	if field == collectionProp || !fieldPattern.MatchString(field) {
		return fmt.Errorf("invalid document field %q", field)
	}
	return nil
}

func buildUpdate(ops []docstore.FieldOp) (string, map[string]any, error) {
	params := map[string]any{}
	var sets []string
	jsonAdd := []string{}
	jsonDrop := []string{}

	for i, op := range ops {
		if err := checkField(op.Field); err != nil || op.Field == docstore.IDField {
			return "", nil, fmt.Errorf("cannot update field %q", op.Field)
		}
		p := fmt.Sprintf("p%d", i)
		f := "n.`" + op.Field + "`"

		switch op.Kind {
		case docstore.OpSet:
			v, isJSON, err := encodeValue(op.Value)
			if err != nil {
				return "", nil, err
			}
			params[p] = v
			sets = append(sets, fmt.Sprintf("%s = $%s", f, p))
			jsonDrop = append(jsonDrop, op.Field)
			if isJSON {
				jsonAdd = append(jsonAdd, op.Field)
			}
		case docstore.OpArrayUnion:
			params[p] = distinct(op.Values)
			sets = append(sets, fmt.Sprintf("%s = coalesce(%s, []) + [v IN $%s WHERE NOT v IN coalesce(%s, [])]", f, f, p, f))
		case docstore.OpArrayRemove:
			params[p] = op.Values
			sets = append(sets, fmt.Sprintf("%s = [v IN coalesce(%s, []) WHERE NOT v IN $%s]", f, f, p))
		case docstore.OpIncrement:
			params[p] = op.Delta
			sets = append(sets, fmt.Sprintf("%s = coalesce(%s, 0) + $%s", f, f, p))
		default:
			return "", nil, fmt.Errorf("unsupported field op %q", op.Kind)
		}
	}
	if len(jsonDrop) > 0 {
		params["jsonAdd"] = jsonAdd
		params["jsonDrop"] = jsonDrop
		sets = append(sets, "n._json = [x IN coalesce(n._json, []) WHERE NOT x IN $jsonDrop] + $jsonAdd")
	}

	var b strings.Builder
	b.WriteString("MATCH (n:Doc {collection: $collection, id: $id})\n")
	if len(sets) > 0 {
		b.WriteString("SET " + strings.Join(sets, ",\n    ") + "\n")
	}
	b.WriteString("RETURN n.id AS id")
	return b.String(), params, nil
}

func distinct(values []any) []any {
	out := make([]any, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		key := fmt.Sprintf("%T:%v", v, v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

func buildQuery(q docstore.Query) (string, map[string]any, error) {
	params := map[string]any{"collection": q.Collection}
	var where []string
	for i, f := range q.Filters {
		if err := checkField(f.Field); err != nil {
			return "", nil, err
		}
		p := fmt.Sprintf("f%d", i)
		field := "n.`" + f.Field + "`"
		params[p] = f.Value
		switch f.Op {
		case docstore.OpEqual:
			where = append(where, fmt.Sprintf("%s = $%s", field, p))
		case docstore.OpArrayContains:
			where = append(where, fmt.Sprintf("$%s IN %s", p, field))
		case docstore.OpIn:
			where = append(where, fmt.Sprintf("%s IN $%s", field, p))
		default:
			return "", nil, fmt.Errorf("unsupported filter op %q", f.Op)
		}
	}

	var b strings.Builder
	b.WriteString("MATCH (n:Doc {collection: $collection})\n")
	if len(where) > 0 {
		b.WriteString("WHERE " + strings.Join(where, " AND ") + "\n")
	}
	b.WriteString("RETURN properties(n) AS props\n")
	if q.OrderBy != nil {
		if err := checkField(q.OrderBy.Field); err != nil {
			return "", nil, err
		}
		dir := "ASC"
		if q.OrderBy.Desc {
			dir = "DESC"
		}
		b.WriteString(fmt.Sprintf("ORDER BY n.`%s` %s, n.id ASC\n", q.OrderBy.Field, dir))
	} else {
		b.WriteString("ORDER BY n.id ASC\n")
	}
	if q.Limit > 0 {
		params["limit"] = int64(q.Limit)
		b.WriteString("LIMIT $limit\n")
	}
	return b.String(), params, nil
}

func encodeProps(d docstore.Doc) (map[string]any, error) {
	props := make(map[string]any, len(d)+2)
	jsonFields := []string{}
	for k, v := range d {
		if k == docstore.IDField || v == nil {
			continue
		}
		if err := checkField(k); err != nil {
			return nil, err
		}
		ev, isJSON, err := encodeValue(v)
		if err != nil {
			return nil, err
		}
		props[k] = ev
		if isJSON {
			jsonFields = append(jsonFields, k)
		}
	}
	props[jsonProp] = jsonFields
	return props, nil
}

// encodeValue maps v onto a Neo4j property value. Values a property cannot
// hold (maps, lists of maps, mixed lists) are returned as a JSON string.
func encodeValue(v any) (any, bool, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false, fmt.Errorf("encode property: %w", err)
	}
	var plain any
	if err := json.Unmarshal(raw, &plain); err != nil {
		return nil, false, fmt.Errorf("encode property: %w", err)
	}
	if storable(plain) {
		return plain, false, nil
	}
	return string(raw), true, nil
}

func storable(v any) bool {
	switch t := v.(type) {
	case nil, string, bool, float64:
		return true
	case []any:
		kind := ""
		for _, item := range t {
			var k string
			switch item.(type) {
			case string:
				k = "string"
			case bool:
				k = "bool"
			case float64:
				k = "number"
			default:
				return false
			}
			if kind != "" && k != kind {
				return false
			}
			kind = k
		}
		return true
	}
	return false
}

func decodeProps(props map[string]any) docstore.Doc {
	jsonFields := getStringSliceFromMap(props, jsonProp)
	isJSON := make(map[string]bool, len(jsonFields))
	for _, f := range jsonFields {
		isJSON[f] = true
	}

	doc := make(docstore.Doc, len(props))
	for k, v := range props {
		switch k {
		case collectionProp, jsonProp:
			continue
		}
		if s, ok := v.(string); ok && isJSON[k] {
			var decoded any
			if err := json.Unmarshal([]byte(s), &decoded); err == nil {
				doc[k] = decoded
				continue
			}
		}
		doc[k] = plainValue(v)
	}
	return doc
}

func plainValue(v any) any {
	switch t := v.(type) {
	case int64:
		return float64(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plainValue(item)
		}
		return out
	}
	return v
}
