// Package topo answers the topology questions a cluster backup needs:
// which member of each shard to dump from, whether a legacy standalone
// config server exists, and where a member's oplog currently ends.
package topo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrNoSecondary is returned when a replica set has no member eligible
// to serve as a backup source.
var ErrNoSecondary = errors.New("no backup-eligible secondary found")

// Member identifies one replica set member.
type Member struct {
	Replset string
	Host    string
	Port    int
}

func (m Member) Address() string {
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}

// ConfigServer identifies a legacy standalone (non-replset) config server.
type ConfigServer struct {
	Host string
}

// Replication locates a backup-eligible secondary for one shard.
type Replication interface {
	FindSecondary(ctx context.Context) (*Member, error)
}

// Sharding reports whether the cluster has a standalone config server.
// A nil ConfigServer with a nil error means the config servers are
// replicated and need no separate backup pass.
type Sharding interface {
	GetConfigServer(ctx context.Context) (*ConfigServer, error)
}

// Credentials carry opaque auth material for target connections. They
// are never interpreted here, only passed through.
type Credentials struct {
	User     string
	Password string
	AuthDB   string
}

// Set reports whether any auth material was supplied.
func (c Credentials) Set() bool {
	return c.User != ""
}

// URI builds a direct-connection mongodb:// URI for one member.
func (c Credentials) URI(host string, port int) string {
	var userinfo string
	if c.Set() {
		userinfo = url.QueryEscape(c.User) + ":" + url.QueryEscape(c.Password) + "@"
	}
	uri := fmt.Sprintf("mongodb://%s%s:%d/?directConnection=true", userinfo, host, port)
	if c.Set() {
		authdb := c.AuthDB
		if authdb == "" {
			authdb = "admin"
		}
		uri += "&authSource=" + url.QueryEscape(authdb)
	}
	return uri
}

// splitAddress parses a "host:port" pair as reported by server status
// documents. A missing port falls back to the default mongod port.
func splitAddress(addr string) (string, int) {
	host := addr
	port := 27017
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		host = addr[:i]
		if p, err := strconv.Atoi(addr[i+1:]); err == nil {
			port = p
		}
	}
	return host, port
}
