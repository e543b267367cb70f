// Package kademlia implements the iterative FIND_NODE/FIND_VALUE/STORE
// lookups over an abstract transport: a Send function provided by the
// caller, and an inbound dispatcher the caller invokes as messages arrive.
package kademlia

import (
	"time"

	"github.com/nzcore-project/nzcore/internal/nodeid"
	"github.com/nzcore-project/nzcore/internal/routingtable"
)

// RPCMethod enumerates the Kademlia wire methods.
type RPCMethod string

const (
	MethodPing      RPCMethod = "PING"
	MethodPong      RPCMethod = "PONG"
	MethodFindNode  RPCMethod = "FIND_NODE"
	MethodFindValue RPCMethod = "FIND_VALUE"
	MethodStore     RPCMethod = "STORE"
)

// Tunable lookup and maintenance parameters.
const (
	K                 = routingtable.K
	Alpha             = 3
	Replication       = 20
	RPCTimeout        = 5 * time.Second
	RefreshInterval   = time.Hour
	RepublishInterval = 24 * time.Hour
)

// Message is one Kademlia RPC envelope, request or response.
type Message struct {
	RPCID   string
	Method  RPCMethod
	Sender  nodeid.ID
	Target  nodeid.ID     // FIND_NODE / FIND_VALUE lookup target
	Key     string        // FIND_VALUE / STORE key
	Value   []byte        // STORE value / FIND_VALUE response value
	Nodes   []routingtable.Contact // FIND_NODE / FIND_VALUE response
	Found   bool          // FIND_VALUE: whether Value is populated
	Ack     bool          // STORE response
}

// Address identifies where to send a message.
type Address struct {
	Host string
	Port int
}

// Sender delivers message to address; the transport is abstract so
// callers can plug in UDP, a connection pool, or an in-memory test double.
type Sender func(addr Address, msg Message) error

// StoredEntry is a STORE'd value with provenance.
type StoredEntry struct {
	Value    []byte
	StoredAt time.Time
	StoredBy nodeid.ID
}
