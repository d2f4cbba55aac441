package topo

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Mongos inspects sharding metadata through a mongos router.
type Mongos struct {
	Logger *log.Logger

	client *mongo.Client
}

// NewMongos connects to a mongos router.
func NewMongos(uri string, logger *log.Logger) (*Mongos, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetServerSelectionTimeout(10 * time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect to mongos: %w", err)
	}
	return &Mongos{Logger: logger, client: client}, nil
}

// Close disconnects the underlying client.
func (m *Mongos) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

type shardMap struct {
	Map map[string]string `bson:"map"`
}

// GetConfigServer returns the cluster's standalone config server, or nil
// when the config servers run as a replica set (and get dumped like any
// other shard would).
func (m *Mongos) GetConfigServer(ctx context.Context) (*ConfigServer, error) {
	res := m.client.Database("admin").RunCommand(ctx, bson.D{{Key: "getShardMap", Value: 1}})
	if res.Err() != nil {
		return nil, fmt.Errorf("getShardMap: %w", res.Err())
	}
	var sm shardMap
	if err := res.Decode(&sm); err != nil {
		return nil, fmt.Errorf("decode getShardMap: %w", err)
	}
	return standaloneConfigServer(sm.Map["config"]), nil
}

// standaloneConfigServer parses the "config" entry of getShardMap. A
// replset config server looks like "csrs/host1:27019,host2:27019" and
// yields nil; a legacy standalone entry is a bare host list.
func standaloneConfigServer(entry string) *ConfigServer {
	if entry == "" || strings.Contains(entry, "/") {
		return nil
	}
	first := entry
	if i := strings.Index(entry, ","); i >= 0 {
		first = entry[:i]
	}
	host, _ := splitAddress(first)
	if host == "" {
		return nil
	}
	return &ConfigServer{Host: host}
}
