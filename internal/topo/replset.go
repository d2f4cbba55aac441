package topo

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Replica set member states from replSetGetStatus.
const (
	statePrimary   = 1
	stateSecondary = 2
)

// Replset answers FindSecondary for one shard's replica set by asking
// any member for replSetGetStatus and scoring the healthy secondaries.
type Replset struct {
	Name   string
	Logger *log.Logger

	client *mongo.Client
}

// NewReplset connects to a shard's replica set via the given seed URI.
func NewReplset(name, uri string, logger *log.Logger) (*Replset, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetServerSelectionTimeout(10 * time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect to replset %s: %w", name, err)
	}
	return &Replset{Name: name, Logger: logger, client: client}, nil
}

// Close disconnects the underlying client.
func (r *Replset) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

type replsetStatus struct {
	Set     string         `bson:"set"`
	Members []memberStatus `bson:"members"`
}

type memberStatus struct {
	Name       string    `bson:"name"`
	Health     int       `bson:"health"`
	State      int       `bson:"state"`
	StateStr   string    `bson:"stateStr"`
	Optime     time.Time `bson:"optimeDate"`
	Uptime     int64     `bson:"uptime"`
	PingMillis int64     `bson:"pingMs"`
}

// FindSecondary returns the best backup-eligible secondary, or
// ErrNoSecondary if the set has none.
func (r *Replset) FindSecondary(ctx context.Context) (*Member, error) {
	res := r.client.Database("admin").RunCommand(ctx, bson.D{{Key: "replSetGetStatus", Value: 1}})
	if res.Err() != nil {
		return nil, fmt.Errorf("replSetGetStatus on %s: %w", r.Name, res.Err())
	}
	var status replsetStatus
	if err := res.Decode(&status); err != nil {
		return nil, fmt.Errorf("decode replSetGetStatus from %s: %w", r.Name, err)
	}
	member, err := chooseSecondary(status)
	if err != nil {
		return nil, err
	}
	if r.Logger != nil {
		r.Logger.Printf("replset %s: chose backup source %s", status.Set, member.Address())
	}
	return member, nil
}

// chooseSecondary picks the healthy secondary with the freshest optime,
// which minimizes the oplog the downstream consistency stage must replay.
func chooseSecondary(status replsetStatus) (*Member, error) {
	var best *memberStatus
	for i := range status.Members {
		m := &status.Members[i]
		if m.State != stateSecondary || m.Health != 1 {
			continue
		}
		if best == nil || m.Optime.After(best.Optime) {
			best = m
		}
	}
	if best == nil {
		return nil, ErrNoSecondary
	}
	host, port := splitAddress(best.Name)
	return &Member{Replset: status.Set, Host: host, Port: port}, nil
}
