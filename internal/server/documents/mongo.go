package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore is the MongoDB-backed Store.
type MongoStore struct {
	client   *mongo.Client
	db       *mongo.Database
	auditTTL time.Duration
}

// NewMongoStore connects to uri and uses the named database. The connection
// is verified with a ping.
func NewMongoStore(ctx context.Context, uri, database string, auditTTL time.Duration) (*MongoStore, error) {
	if auditTTL <= 0 {
		auditTTL = DefaultAuditTTL
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("document store connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("document store ping: %w", err)
	}

	return &MongoStore{client: client, db: client.Database(database), auditTTL: auditTTL}, nil
}

func (s *MongoStore) UpsertByForeignID(ctx context.Context, coll string, foreignID int64, patch Fields) (Fields, error) {
	key, err := ForeignKey(coll)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	set := bson.M{FieldUpdatedAt: now}
	for k, v := range contentPatch(patch, key) {
		set[k] = v
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{FieldCreatedAt: now},
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out bson.M
	err = s.db.Collection(coll).FindOneAndUpdate(ctx, bson.M{key: foreignID}, update, opts).Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("document store error: %w", err)
	}
	return fromBSON(out), nil
}

func (s *MongoStore) FindByForeignID(ctx context.Context, coll string, foreignID int64) (Fields, error) {
	key, err := ForeignKey(coll)
	if err != nil {
		return nil, err
	}

	var out bson.M
	err = s.db.Collection(coll).FindOne(ctx, bson.M{key: foreignID}).Decode(&out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Fields{}, nil
		}
		return nil, fmt.Errorf("document store error: %w", err)
	}
	return fromBSON(out), nil
}

func (s *MongoStore) DeleteByForeignID(ctx context.Context, coll string, foreignID int64) (bool, error) {
	key, err := ForeignKey(coll)
	if err != nil {
		return false, err
	}

	res, err := s.db.Collection(coll).DeleteOne(ctx, bson.M{key: foreignID})
	if err != nil {
		return false, fmt.Errorf("document store error: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoStore) Append(ctx context.Context, coll string, doc Fields) error {
	d := bson.M{}
	for k, v := range doc {
		if k == FieldID || k == "_id" {
			continue
		}
		d[k] = v
	}
	d[FieldCreatedAt] = time.Now().UTC()

	if _, err := s.db.Collection(coll).InsertOne(ctx, d); err != nil {
		return fmt.Errorf("document store error: %w", err)
	}
	return nil
}

func (s *MongoStore) Find(ctx context.Context, coll string, q Query) ([]Fields, int64, error) {
	filter := buildFilter(q)
	c := s.db.Collection(coll)

	total, err := c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("document store error: %w", err)
	}

	opts := options.Find().SetSort(sortSpec(q))
	if q.Skip > 0 {
		opts.SetSkip(int64(q.Skip))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := c.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("document store error: %w", err)
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, 0, fmt.Errorf("document store error: %w", err)
	}

	out := make([]Fields, 0, len(raw))
	for _, d := range raw {
		out = append(out, fromBSON(d))
	}
	return out, total, nil
}

func buildFilter(q Query) bson.M {
	filter := bson.M{}
	for k, v := range q.Equals {
		filter[k] = v
	}
	if q.From != nil || q.To != nil {
		rng := bson.M{}
		if q.From != nil {
			rng["$gte"] = *q.From
		}
		if q.To != nil {
			rng["$lt"] = *q.To
		}
		filter[FieldCreatedAt] = rng
	}
	return filter
}

func sortSpec(q Query) bson.D {
	dir := 1
	if q.Newest {
		dir = -1
	}
	return bson.D{{Key: FieldCreatedAt, Value: dir}, {Key: "_id", Value: dir}}
}

func (s *MongoStore) DeleteOlderThan(ctx context.Context, coll string, cutoff time.Time) (int64, error) {
	res, err := s.db.Collection(coll).DeleteMany(ctx, bson.M{FieldCreatedAt: bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("document store error: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) IncrementCounters(ctx context.Context, coll string, key Fields, counters map[string]float64) error {
	now := time.Now().UTC()
	update := bson.M{
		"$inc":         counters,
		"$set":         bson.M{FieldUpdatedAt: now},
		"$setOnInsert": bson.M{FieldCreatedAt: now},
	}
	_, err := s.db.Collection(coll).UpdateOne(ctx, bson.M(key), update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("document store error: %w", err)
	}
	return nil
}

// indexModels lists the indexes EnsureIndexes creates per collection.
func (s *MongoStore) indexModels() map[string][]mongo.IndexModel {
	models := map[string][]mongo.IndexModel{
		SecurityAudit: {
			{
				Keys:    bson.D{{Key: FieldCreatedAt, Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(int32(s.auditTTL.Seconds())),
			},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: FieldCreatedAt, Value: -1}}},
			{Keys: bson.D{{Key: "action", Value: 1}, {Key: FieldCreatedAt, Value: -1}}},
		},
		Analytics: {
			{Keys: bson.D{{Key: "entity_type", Value: 1}, {Key: "entity_id", Value: 1}, {Key: FieldCreatedAt, Value: -1}}},
		},
		RealtimeStats: {
			{
				Keys:    bson.D{{Key: "entity_type", Value: 1}, {Key: "entity_id", Value: 1}, {Key: "day", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
	for coll, key := range foreignKeys {
		models[coll] = []mongo.IndexModel{{
			Keys:    bson.D{{Key: key, Value: 1}},
			Options: options.Index().SetUnique(true),
		}}
	}
	return models
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	for coll, idx := range s.indexModels() {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", coll, err)
		}
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// fromBSON converts a decoded document into plain Go values. The native _id
// becomes the string field "id".
func fromBSON(m bson.M) Fields {
	out := make(Fields, len(m))
	for k, v := range m {
		if k == "_id" {
			out[FieldID] = normalize(v)
			continue
		}
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	case int32:
		return int64(t)
	case primitive.Decimal128:
		return t.String()
	}
	return v
}
