// Package mongostore implements docstore.Store on MongoDB. Each collection maps
// to a Mongo collection and the document id is stored as the string _id.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"lookbook/backend/internal/docstore"
	apperrors "lookbook/backend/pkg/errors"
	"lookbook/backend/pkg/logger"
)

const mongoID = "_id"

var _ docstore.Store = (*Store)(nil)

// Store is a docstore.Store backed by one Mongo database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// Connect dials uri and pings the server before returning.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, apperrors.NewStoreConnectionFailed("mongo", uri, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, apperrors.NewStoreConnectionFailed("mongo", uri, err)
	}

	log := logger.Named("mongostore")
	log.Info("Connected to MongoDB", zap.String("database", database))
	return New(client, database, log), nil
}

// New wraps an already connected client.
func New(client *mongo.Client, database string, log *zap.Logger) *Store {
	return &Store{
		client: client,
		db:     client.Database(database),
		logger: logger.OrDefault(log, "mongostore"),
	}
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{mongoID: id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s/%s: %w", collection, id, err)
	}
	return fromBSON(raw), nil
}

func (s *Store) Update(ctx context.Context, collection, id string, ops ...docstore.FieldOp) error {
	update, err := buildUpdate(ops)
	if err != nil {
		return err
	}
	if len(update) == 0 {
		_, err := s.Get(ctx, collection, id)
		return err
	}

	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{mongoID: id}, update)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, data docstore.Doc) (string, error) {
	id := uuid.New().String()
	body := toBSON(data)
	body[mongoID] = id
	if _, err := s.db.Collection(collection).InsertOne(ctx, body); err != nil {
		return "", fmt.Errorf("insert %s: %w", collection, err)
	}
	return id, nil
}

func (s *Store) Put(ctx context.Context, collection, id string, data docstore.Doc) error {
	body := toBSON(data)
	body[mongoID] = id
	_, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{mongoID: id}, body, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{mongoID: id}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Doc, error) {
	filter, err := buildFilter(q.Filters)
	if err != nil {
		return nil, err
	}

	opts := options.Find()
	if q.OrderBy != nil {
		dir := 1
		if q.OrderBy.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: fieldName(q.OrderBy.Field), Value: dir}, {Key: mongoID, Value: 1}})
	} else {
		opts.SetSort(bson.D{{Key: mongoID, Value: 1}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.db.Collection(q.Collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", q.Collection, err)
	}
	defer cursor.Close(ctx)

	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, fmt.Errorf("read %s: %w", q.Collection, err)
	}

	docs := make([]docstore.Doc, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, fromBSON(raw))
	}
	return docs, nil
}

func fieldName(field string) string {
	if field == docstore.IDField {
		return mongoID
	}
	return field
}

func buildUpdate(ops []docstore.FieldOp) (bson.M, error) {
	update := bson.M{}
	section := func(name string) bson.M {
		m, ok := update[name].(bson.M)
		if !ok {
			m = bson.M{}
			update[name] = m
		}
		return m
	}

	for _, op := range ops {
		if op.Field == "" || op.Field == docstore.IDField {
			return nil, fmt.Errorf("cannot update field %q", op.Field)
		}
		switch op.Kind {
		case docstore.OpSet:
			section("$set")[op.Field] = op.Value
		case docstore.OpArrayUnion:
			section("$addToSet")[op.Field] = bson.M{"$each": op.Values}
		case docstore.OpArrayRemove:
			section("$pull")[op.Field] = bson.M{"$in": op.Values}
		case docstore.OpIncrement:
			section("$inc")[op.Field] = op.Delta
		default:
			return nil, fmt.Errorf("unsupported field op %q", op.Kind)
		}
	}
	return update, nil
}

func buildFilter(filters []docstore.Filter) (bson.M, error) {
	filter := bson.M{}
	var and []bson.M
	for _, f := range filters {
		var cond any
		switch f.Op {
		case docstore.OpEqual, docstore.OpArrayContains:
			// Mongo matches a scalar against array elements on plain equality.
			cond = f.Value
		case docstore.OpIn:
			cond = bson.M{"$in": f.Value}
		default:
			return nil, fmt.Errorf("unsupported filter op %q", f.Op)
		}
		and = append(and, bson.M{fieldName(f.Field): cond})
	}
	switch len(and) {
	case 0:
	case 1:
		filter = and[0]
	default:
		filter["$and"] = and
	}
	return filter, nil
}

func toBSON(d docstore.Doc) bson.M {
	out := make(bson.M, len(d))
	for k, v := range d {
		if k == docstore.IDField {
			continue
		}
		out[k] = v
	}
	return out
}

func fromBSON(raw bson.M) docstore.Doc {
	doc := make(docstore.Doc, len(raw))
	for k, v := range raw {
		if k == mongoID {
			doc[docstore.IDField] = fmt.Sprint(v)
			continue
		}
		doc[k] = plain(v)
	}
	return doc
}

// plain converts decoded BSON values into the JSON value space the engine
// decodes records from.
func plain(v any) any {
	switch t := v.(type) {
	case primitive.M:
		m := make(map[string]any, len(t))
		for k, item := range t {
			m[k] = plain(item)
		}
		return m
	case primitive.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = plain(e.Value)
		}
		return m
	case primitive.A:
		list := make([]any, len(t))
		for i, item := range t {
			list[i] = plain(item)
		}
		return list
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case primitive.DateTime:
		return float64(t)
	case primitive.ObjectID:
		return t.Hex()
	}
	return v
}
