// Package appctx builds the core's single construction graph: one
// AppContext assembled at startup and threaded through, in a "one big
// literal, no process-wide singletons" style.
package appctx

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"

	"github.com/nzcore-project/nzcore/internal/connection"
	"github.com/nzcore-project/nzcore/internal/identitystore"
	"github.com/nzcore-project/nzcore/internal/kademlia"
	"github.com/nzcore-project/nzcore/internal/keymaterial"
	"github.com/nzcore-project/nzcore/internal/nodeconfig"
	"github.com/nzcore-project/nzcore/internal/nodeid"
	"github.com/nzcore-project/nzcore/internal/platform/privacylog"
	"github.com/nzcore-project/nzcore/internal/platform/ratelimiter"
	"github.com/nzcore-project/nzcore/internal/routingtable"
	"github.com/nzcore-project/nzcore/internal/stunturn"
)

// AppContext is the core's entire live state, built once in New and passed
// to every component that needs it. Nothing outside this struct is
// process-wide state.
type AppContext struct {
	Config nodeconfig.Config
	Logger *slog.Logger

	EnvDir string

	Identity  *identitystore.IdentityKeyPair
	NodeID    nodeid.ID
	MasterKey []byte

	RoutingTable *routingtable.Table
	Kademlia     *kademlia.Node
	Pool         *connection.Pool

	InboundRPCLimiter *ratelimiter.MapLimiter
	FrameLimiter      *ratelimiter.MapLimiter

	stunClients []*stunturn.STUNClient
	turnClients []*stunturn.TURNClient
}

// Options carries the inputs New needs beyond what nodeconfig.Config
// already supplies: the on-disk env/ directory and the password used to
// derive/unlock the master key, both supplied by the caller rather than
// read from the environment directly.
type Options struct {
	EnvDir   string
	Password []byte
	Cfg      nodeconfig.Config
	Logger   *slog.Logger
	Send     kademlia.Sender
}

// New builds the full construction graph: loads or initializes the master
// key and identity, then wires the routing table, Kademlia node, and
// connection pool on top of it. It resolves options, constructs leaf
// components first, then builds the components that depend on them.
func New(opts Options) (*AppContext, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	logger = slog.New(privacylog.WrapHandler(logger.Handler()))

	nodeEnv := "development"
	if opts.Cfg.API.Production {
		nodeEnv = "production"
	}

	var overrideKey []byte
	if opts.Cfg.MasterKeyOverride != "" {
		decoded, err := hex.DecodeString(opts.Cfg.MasterKeyOverride)
		if err != nil {
			return nil, fmt.Errorf("appctx: invalid NZCORE_MASTER_KEY: %w", err)
		}
		overrideKey = decoded
	}

	masterKey, _, err := identitystore.InitMasterKey(opts.EnvDir, nodeEnv, overrideKey, opts.Password)
	if err != nil {
		return nil, fmt.Errorf("appctx: init master key: %w", err)
	}

	identity, err := identitystore.LoadIdentity(opts.EnvDir, masterKey)
	if errors.Is(err, fs.ErrNotExist) {
		// First run: no seed on disk yet, so generate and persist one.
		mnemonic, _, genErr := keymaterial.NewMnemonic(256)
		if genErr != nil {
			return nil, fmt.Errorf("appctx: generate seed: %w", genErr)
		}
		if saveErr := identitystore.SaveSeed(opts.EnvDir, masterKey, []byte(mnemonic)); saveErr != nil {
			return nil, fmt.Errorf("appctx: save seed: %w", saveErr)
		}
		identity, err = identitystore.LoadIdentity(opts.EnvDir, masterKey)
	}
	if err != nil {
		return nil, fmt.Errorf("appctx: load identity: %w", err)
	}

	self := nodeid.FromPublicKey(identity.Identity.Public)

	table := routingtable.New(self, opts.Cfg.Kademlia.RefreshInterval)

	inboundLimiter := ratelimiter.New(opts.Cfg.Kademlia.InboundRPSPerPeer, opts.Cfg.Kademlia.InboundBurst, opts.Cfg.Kademlia.RefreshInterval)
	frameLimiter := ratelimiter.New(opts.Cfg.Pool.FrameRPSPerPeer, opts.Cfg.Pool.FrameBurst, opts.Cfg.Pool.IdleTimeout)

	send := opts.Send
	if send == nil {
		send = func(kademlia.Address, kademlia.Message) error { return nil }
	}
	node := kademlia.New(self, table, send)
	node.SetInboundLimiter(inboundLimiter)

	pool := connection.NewPool(connection.PoolConfig{
		MaxSize:       opts.Cfg.Pool.MaxSize,
		MinSize:       opts.Cfg.Pool.MinSize,
		IdleTimeout:   opts.Cfg.Pool.IdleTimeout,
		CheckInterval: opts.Cfg.Pool.CheckInterval,
		FrameLimiter:  frameLimiter,
	})

	ac := &AppContext{
		Config:            opts.Cfg,
		Logger:            logger,
		EnvDir:            opts.EnvDir,
		Identity:          identity,
		NodeID:            self,
		MasterKey:         masterKey,
		RoutingTable:      table,
		Kademlia:          node,
		Pool:              pool,
		InboundRPCLimiter: inboundLimiter,
		FrameLimiter:      frameLimiter,
	}

	logger.Info("appctx.built",
		"node_id", self.String(),
		"production", opts.Cfg.API.Production,
		"pool_max_size", opts.Cfg.Pool.MaxSize,
	)

	return ac, nil
}

// STUNServers lazily constructs one STUNClient per configured server over a
// shared UDP socket, caching them for the AppContext's lifetime.
func (ac *AppContext) STUNServers() ([]*stunturn.STUNClient, error) {
	if ac.stunClients != nil {
		return ac.stunClients, nil
	}
	if len(ac.Config.STUN.Servers) == 0 {
		return nil, nil
	}
	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return nil, fmt.Errorf("appctx: open stun socket: %w", err)
	}
	for range ac.Config.STUN.Servers {
		ac.stunClients = append(ac.stunClients, stunturn.NewSTUNClient(conn))
	}
	return ac.stunClients, nil
}

// Close tears down background goroutines owned by the AppContext (pool
// sweeping, TURN refresh loops).
func (ac *AppContext) Close() {
	if ac.Pool != nil {
		ac.Pool.Stop()
	}
	for _, t := range ac.turnClients {
		_ = t.Close()
	}
}
