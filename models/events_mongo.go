package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoTimeout = 5 * time.Second

// eventDoc is the stored shape; dates are YYYY-MM-DD strings so range
// filters compare lexically.
type eventDoc struct {
	ID   int64  `bson:"id"`
	Name string `bson:"event"`
	Date string `bson:"date"`
}

type counterDoc struct {
	Seq int64 `bson:"seq"`
}

type mongoEventRepo struct {
	col      *mongo.Collection
	counters *mongo.Collection
}

// NewMongoEventRepository stores events in col and draws ids from a
// "counters" collection in the same database.
func NewMongoEventRepository(col *mongo.Collection) EventRepository {
	return &mongoEventRepo{col: col, counters: col.Database().Collection("counters")}
}

// EnsureMongoIndexes creates the unique id index and the date index on col.
// Safe to call repeatedly.
func EnsureMongoIndexes(ctx context.Context, col *mongo.Collection) error {
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "date", Value: 1}}},
	})
	return err
}

func (r *mongoEventRepo) GetAll() ([]Event, error) {
	return r.find(bson.M{})
}

func (r *mongoEventRepo) GetByDateRange(start, end time.Time) ([]Event, error) {
	return r.find(bson.M{"date": bson.M{"$gte": FormatDate(start), "$lte": FormatDate(end)}})
}

func (r *mongoEventRepo) GetByID(id int64) (Event, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	var d eventDoc
	if err := r.col.FindOne(ctx, bson.M{"id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Event{}, ErrNotFound
		}
		return Event{}, fmt.Errorf("get event %d: %w", id, err)
	}
	return d.event()
}

func (r *mongoEventRepo) Create(e *Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	id, err := r.nextID(ctx)
	if err != nil {
		return err
	}
	d := eventDoc{ID: id, Name: e.Name, Date: FormatDate(e.Date)}
	if _, err := r.col.InsertOne(ctx, d); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	e.ID = id
	e.Date = DateOf(e.Date)
	return nil
}

func (r *mongoEventRepo) Delete(id int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoEventRepo) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	return r.col.Database().Client().Ping(ctx, nil)
}

// nextID bumps the events counter atomically; ids are never handed out twice
// even after the event is deleted.
func (r *mongoEventRepo) nextID(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var c counterDoc
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": r.col.Name()},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("next event id: %w", err)
	}
	return c.Seq, nil
}

func (r *mongoEventRepo) find(filter bson.M) ([]Event, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	defer cur.Close(ctx)

	out := []Event{}
	for cur.Next(ctx) {
		var d eventDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		e, err := d.event()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, cur.Err()
}

func (d eventDoc) event() (Event, error) {
	date, err := ParseDate(d.Date)
	if err != nil {
		return Event{}, err
	}
	return Event{ID: d.ID, Name: d.Name, Date: date}, nil
}
