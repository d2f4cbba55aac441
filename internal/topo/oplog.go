package topo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// OplogPositioner reads the newest oplog position of one member. Dump
// jobs call it immediately before and after a dump to bracket it.
type OplogPositioner interface {
	LatestOplogPosition(ctx context.Context, host string, port int) (bson.Timestamp, error)
}

// OplogReader implements OplogPositioner with a short-lived direct
// connection per query. Two queries per dump keeps that cheap.
type OplogReader struct {
	Creds Credentials
}

type oplogEntry struct {
	TS bson.Timestamp `bson:"ts"`
}

// LatestOplogPosition returns ts of the newest local.oplog.rs entry.
func (r *OplogReader) LatestOplogPosition(ctx context.Context, host string, port int) (bson.Timestamp, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(r.Creds.URI(host, port)).
		SetServerSelectionTimeout(10 * time.Second))
	if err != nil {
		return bson.Timestamp{}, fmt.Errorf("connect to %s:%d: %w", host, port, err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	opts := options.FindOne().SetSort(bson.D{{Key: "$natural", Value: -1}})
	var entry oplogEntry
	err = client.Database("local").Collection("oplog.rs").FindOne(ctx, bson.D{}, opts).Decode(&entry)
	if err != nil {
		return bson.Timestamp{}, fmt.Errorf("read oplog tail of %s:%d: %w", host, port, err)
	}
	return entry.TS, nil
}
