// Package netadapter supplies the syncer.PeerSet and syncer.BlockFetcher
// collaborators over libp2p streams. It only talks to peers the host is
// already connected to: peer discovery, handshake, and banning are the
// peer network layer's job and live elsewhere.
package netadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Klingon-tech/klingnet-chain/internal/log"
	syncer "github.com/Klingon-tech/klingnet-chain/internal/sync"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"golang.org/x/sync/errgroup"
)

const (
	// FindBlocksProtocol is the stream protocol for locator-based tip
	// discovery.
	FindBlocksProtocol = protocol.ID("/klingnet/findblocks/1.0.0")

	// BlocksByHashProtocol is the stream protocol for downloading one
	// block by its hash.
	BlocksByHashProtocol = protocol.ID("/klingnet/blocksbyhash/1.0.0")

	streamReadTimeout = 30 * time.Second
	maxResponseBytes  = 10 * 1024 * 1024
)

type findBlocksRequest struct {
	Known []types.Hash `json:"known"`
	Stop  *types.Hash  `json:"stop,omitempty"`
}

type findBlocksResponse struct {
	Hashes []types.Hash `json:"hashes"`
}

type blockByHashRequest struct {
	Hash types.Hash `json:"hash"`
}

type blockByHashResponse struct {
	Block *block.Block `json:"block"`
}

// Adapter is the concrete PeerSet/BlockFetcher pair. Zero value is not
// usable; construct with New.
type Adapter struct {
	host    host.Host
	retries int
	timeout time.Duration
}

// New builds an Adapter bound to h. retries and timeout are the
// BLOCK_DOWNLOAD_RETRIES and BLOCK_TIMEOUT tunables.
func New(h host.Host, retries int, timeout time.Duration) *Adapter {
	return &Adapter{host: h, retries: retries, timeout: timeout}
}

// RegisterFindBlocksHandler installs the server side of FindBlocks,
// answering every request from provider.
func (a *Adapter) RegisterFindBlocksHandler(provider func(known []types.Hash, stop *types.Hash) []types.Hash) {
	a.host.SetStreamHandler(FindBlocksProtocol, func(stream network.Stream) {
		defer stream.Close()

		var req findBlocksRequest
		if err := json.NewDecoder(io.LimitReader(stream, maxResponseBytes)).Decode(&req); err != nil {
			return
		}
		resp := findBlocksResponse{Hashes: provider(req.Known, req.Stop)}
		_ = json.NewEncoder(stream).Encode(&resp)
	})
}

// RegisterBlocksByHashHandler installs the server side of BlocksByHash.
func (a *Adapter) RegisterBlocksByHashHandler(provider func(types.Hash) (*block.Block, bool)) {
	a.host.SetStreamHandler(BlocksByHashProtocol, func(stream network.Stream) {
		defer stream.Close()

		var req blockByHashRequest
		if err := json.NewDecoder(io.LimitReader(stream, maxResponseBytes)).Decode(&req); err != nil {
			return
		}
		blk, _ := provider(req.Hash)
		_ = json.NewEncoder(stream).Encode(&blockByHashResponse{Block: blk})
	})
}

// FindBlocks implements syncer.PeerSet: it queries up to fanout of the
// host's currently connected peers concurrently, bounded by an errgroup
// limit so a slow peer never blocks the others, and reports every peer's
// outcome individually rather than failing the whole round.
func (a *Adapter) FindBlocks(ctx context.Context, known []types.Hash, stop *types.Hash, fanout int) []syncer.FindBlocksResult {
	peers := a.host.Network().Peers()
	if len(peers) > fanout {
		peers = peers[:fanout]
	}

	results := make([]syncer.FindBlocksResult, len(peers))
	var g errgroup.Group
	g.SetLimit(fanout)
	for i, p := range peers {
		i, p := i, p
		g.Go(func() error {
			hashes, err := a.requestFindBlocks(ctx, p, known, stop)
			results[i] = syncer.FindBlocksResult{Hashes: hashes, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (a *Adapter) requestFindBlocks(ctx context.Context, p peer.ID, known []types.Hash, stop *types.Hash) ([]types.Hash, error) {
	stream, err := a.host.NewStream(ctx, p, FindBlocksProtocol)
	if err != nil {
		return nil, fmt.Errorf("open find_blocks stream to %s: %w", p, err)
	}
	defer stream.Close()

	if err := json.NewEncoder(stream).Encode(&findBlocksRequest{Known: known, Stop: stop}); err != nil {
		return nil, fmt.Errorf("send find_blocks request to %s: %w", p, err)
	}
	_ = stream.CloseWrite()

	_ = stream.SetReadDeadline(time.Now().Add(streamReadTimeout))
	var resp findBlocksResponse
	if err := json.NewDecoder(io.LimitReader(stream, maxResponseBytes)).Decode(&resp); err != nil {
		return nil, fmt.Errorf("read find_blocks response from %s: %w", p, err)
	}
	return resp.Hashes, nil
}

// BlockByHash implements syncer.BlockFetcher: it tries up to retries
// connected peers in turn, each bounded by the adapter's timeout, and
// returns the first block any of them produces.
func (a *Adapter) BlockByHash(ctx context.Context, hash types.Hash) (*block.Block, error) {
	peers := a.host.Network().Peers()
	if len(peers) == 0 {
		return nil, fmt.Errorf("netadapter: block %s: no connected peers", hash)
	}

	var lastErr error
	for attempt := 0; attempt < a.retries; attempt++ {
		p := peers[attempt%len(peers)]
		blk, err := a.requestBlockByHash(ctx, p, hash)
		if err == nil {
			return blk, nil
		}
		lastErr = err
		log.Sync.Warn().Err(err).Str("peer", p.String()).Str("hash", hash.String()).Msg("block_by_hash attempt failed")
	}
	return nil, fmt.Errorf("netadapter: block %s: exhausted %d attempts: %w", hash, a.retries, lastErr)
}

func (a *Adapter) requestBlockByHash(ctx context.Context, p peer.ID, hash types.Hash) (*block.Block, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	stream, err := a.host.NewStream(ctx, p, BlocksByHashProtocol)
	if err != nil {
		return nil, fmt.Errorf("open blocks_by_hash stream to %s: %w", p, err)
	}
	defer stream.Close()

	if err := json.NewEncoder(stream).Encode(&blockByHashRequest{Hash: hash}); err != nil {
		return nil, fmt.Errorf("send blocks_by_hash request to %s: %w", p, err)
	}
	_ = stream.CloseWrite()

	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetReadDeadline(deadline)
	}
	var resp blockByHashResponse
	if err := json.NewDecoder(io.LimitReader(stream, maxResponseBytes)).Decode(&resp); err != nil {
		return nil, fmt.Errorf("read blocks_by_hash response from %s: %w", p, err)
	}
	if resp.Block == nil {
		return nil, fmt.Errorf("peer %s does not have block %s", p, hash)
	}
	return resp.Block, nil
}
