package repository

import (
	"context"

	"foodmed/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const messagesCollection = "messages"

// MongoMessageRepository stores chat messages in the "messages" collection.
type MongoMessageRepository struct {
	coll  *mongo.Collection
	clock *Clock
}

func NewMongoMessageRepository(db *mongo.Database, clock *Clock) *MongoMessageRepository {
	return &MongoMessageRepository{coll: db.Collection(messagesCollection), clock: clock}
}

// EnsureIndexes creates the pair/time index used by conversation queries.
func (r *MongoMessageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "receiver", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: 1}}},
	})
	if err != nil {
		return persistenceError(err, "create message indexes")
	}
	return nil
}

func (r *MongoMessageRepository) Save(ctx context.Context, sender, recipient, text string) (*models.Message, error) {
	m := newMessage(r.clock, sender, recipient, text)
	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		return nil, persistenceError(err, "insert chat message")
	}
	return m, nil
}

func (r *MongoMessageRepository) Query(ctx context.Context, q HistoryQuery) ([]models.Message, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	cur, err := r.coll.Find(ctx, conversationFilter(q), findOptions(q))
	if err != nil {
		return nil, persistenceError(err, "query chat messages")
	}
	defer cur.Close(ctx)
	list := make([]models.Message, 0)
	if err := cur.All(ctx, &list); err != nil {
		return nil, persistenceError(err, "decode chat messages")
	}
	return list, nil
}

func conversationFilter(q HistoryQuery) bson.M {
	if q.UserA == "" {
		return bson.M{}
	}
	return bson.M{"$or": bson.A{
		bson.M{"sender": q.UserA, "receiver": q.UserB},
		bson.M{"sender": q.UserB, "receiver": q.UserA},
	}}
}

func findOptions(q HistoryQuery) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}
	return opts
}
