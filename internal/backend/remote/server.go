package remote

import (
	"context"
	"crypto/tls"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"
	"github.com/rs/zerolog"

	"github.com/asuran-archive/asuran/internal/backend"
)

// Server exposes an underlying backend.Backend over QUIC.
type Server struct {
	underlying backend.Backend
	log        zerolog.Logger

	mu    sync.Mutex
	locks map[string]backend.Lock
}

func NewServer(underlying backend.Backend, log zerolog.Logger) *Server {
	return &Server{underlying: underlying, log: log, locks: make(map[string]backend.Lock)}
}

// Serve accepts connections on addr until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string, tlsConf *tls.Config) error {
	ln, err := quic.ListenAddr(addr, tlsConf, &quic.Config{
		KeepAlivePeriod: quicKeepAlive,
		MaxIdleTimeout:  quicMaxIdle,
	})
	if err != nil {
		return fmt.Errorf("remote: listen %s: %w", addr, err)
	}
	defer ln.Close()

	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn().Err(err).Msg("remote backend: accept failed")
			continue
		}
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn *quic.Conn) {
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		go s.serveStream(ctx, stream)
	}
}

func (s *Server) serveStream(ctx context.Context, stream *quic.Stream) {
	defer stream.Close()

	var req request
	if err := gob.NewDecoder(stream).Decode(&req); err != nil {
		s.log.Warn().Err(err).Msg("remote backend: decode request failed")
		return
	}

	resp := s.handle(ctx, req)
	if err := gob.NewEncoder(stream).Encode(resp); err != nil {
		s.log.Warn().Err(err).Msg("remote backend: encode response failed")
	}
}

func (s *Server) handle(ctx context.Context, req request) response {
	switch req.Op {
	case opReadChunk:
		envelope, err := s.underlying.ReadChunk(ctx, req.ChunkID)
		if err != nil {
			return errResponse(err)
		}
		return response{OK: true, Envelope: envelope}

	case opWriteChunk:
		entry, err := s.underlying.WriteChunk(ctx, req.ChunkID, req.Envelope)
		if err != nil {
			return errResponse(err)
		}
		return response{OK: true, Entry: entry}

	case opLookupIndex:
		entry, err := s.underlying.LookupIndex(ctx, req.ChunkID)
		if err != nil {
			return errResponse(err)
		}
		return response{OK: true, Entry: entry}

	case opCommitIndex:
		if err := s.underlying.CommitIndex(ctx, backend.IndexBatch{Entries: req.Batch}); err != nil {
			return errResponse(err)
		}
		return response{OK: true}

	case opReadManifest:
		archives, err := s.underlying.ReadManifest(ctx)
		if err != nil {
			return errResponse(err)
		}
		return response{OK: true, Archives: archives}

	case opAppendManifest:
		if err := s.underlying.AppendManifest(ctx, req.Archive); err != nil {
			return errResponse(err)
		}
		return response{OK: true}

	case opAcquireLock:
		var lock backend.Lock
		var err error
		if req.LockKind == lockKindWrite {
			lock, err = s.underlying.TakeWriteLock(ctx)
		} else {
			lock, err = s.underlying.TakeReadLock(ctx)
		}
		if err != nil {
			return errResponse(err)
		}
		token := uuid.NewString()
		s.mu.Lock()
		s.locks[token] = lock
		s.mu.Unlock()
		return response{OK: true, LockToken: token}

	case opReleaseLock:
		s.mu.Lock()
		lock, ok := s.locks[req.LockToken]
		delete(s.locks, req.LockToken)
		s.mu.Unlock()
		if !ok {
			return errResponse(fmt.Errorf("remote: unknown lock token"))
		}
		if err := lock.Release(); err != nil {
			return errResponse(err)
		}
		return response{OK: true}

	default:
		return errResponse(fmt.Errorf("remote: unknown op %q", req.Op))
	}
}

func errResponse(err error) response {
	return response{OK: false, Err: err.Error()}
}
