package nboard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

type PoolConfig struct {
	BinaryPath string
	Args       []string
	// PerDepthCapacity bounds the processes kept for one depth setting.
	PerDepthCapacity int
	Logger           *zap.Logger
}

// Pool keeps engine processes per depth setting. A session released with an
// error is killed instead of being reused, which is also how an abandoned
// search is cancelled.
type Pool struct {
	binaryPath string
	args       []string
	capacity   int
	logger     *zap.Logger

	mu       sync.Mutex
	buckets  map[string]*sessionBucket
	sessions map[*Session]*sessionBucket
}

func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("binary path required")
	}
	if _, err := os.Stat(cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("engine binary check: %w", err)
	}
	capacity := cfg.PerDepthCapacity
	if capacity <= 0 {
		capacity = defaultCapacity()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		binaryPath: cfg.BinaryPath,
		args:       append([]string(nil), cfg.Args...),
		capacity:   capacity,
		logger:     logger,
		buckets:    make(map[string]*sessionBucket),
		sessions:   make(map[*Session]*sessionBucket),
	}, nil
}

func (p *Pool) Acquire(ctx context.Context, opt Options) (*Session, error) {
	bucket := p.getBucket(opt)

	for {
		select {
		case session := <-bucket.idle:
			if s, ok := p.reuse(ctx, session, bucket); ok {
				return s, nil
			}
			continue
		default:
		}

		session, err := bucket.create(ctx, p.binaryPath, p.args)
		if err == nil {
			p.track(session, bucket)
			return session, nil
		}
		if !errors.Is(err, errBucketAtCapacity) {
			return nil, err
		}

		select {
		case session := <-bucket.idle:
			if s, ok := p.reuse(ctx, session, bucket); ok {
				return s, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (p *Pool) reuse(ctx context.Context, session *Session, bucket *sessionBucket) (*Session, bool) {
	if session == nil {
		return nil, false
	}
	if err := session.EnsureReady(ctx); err != nil {
		p.logger.Warn("nboard_session_stale", zap.String("options", bucket.opt.key()), zap.Error(err))
		bucket.discard(session)
		return nil, false
	}
	p.track(session, bucket)
	return session, true
}

func (p *Pool) Release(session *Session, err error) {
	if session == nil {
		return
	}

	p.mu.Lock()
	bucket, ok := p.sessions[session]
	if !ok {
		p.mu.Unlock()
		_ = session.Close()
		return
	}
	delete(p.sessions, session)
	p.mu.Unlock()

	if err != nil || !bucket.put(session) {
		bucket.discard(session)
	}
}

func (p *Pool) Close() error {
	p.mu.Lock()
	buckets := make([]*sessionBucket, 0, len(p.buckets))
	for _, b := range p.buckets {
		buckets = append(buckets, b)
	}
	p.sessions = make(map[*Session]*sessionBucket)
	p.mu.Unlock()

	var errs []error
	for _, bucket := range buckets {
		errs = append(errs, bucket.drain()...)
	}
	return errors.Join(errs...)
}

func (p *Pool) track(session *Session, bucket *sessionBucket) {
	p.mu.Lock()
	p.sessions[session] = bucket
	p.mu.Unlock()
}

func (p *Pool) getBucket(opt Options) *sessionBucket {
	key := opt.key()
	p.mu.Lock()
	defer p.mu.Unlock()
	bucket, ok := p.buckets[key]
	if !ok {
		bucket = newSessionBucket(opt, p.capacity)
		p.buckets[key] = bucket
	}
	return bucket
}

type sessionBucket struct {
	opt      Options
	capacity int

	mu    sync.Mutex
	total int
	idle  chan *Session
}

var errBucketAtCapacity = errors.New("session bucket at capacity")

func newSessionBucket(opt Options, capacity int) *sessionBucket {
	return &sessionBucket{
		opt:      opt,
		capacity: max(1, capacity),
		idle:     make(chan *Session, max(1, capacity)),
	}
}

func (b *sessionBucket) create(ctx context.Context, binaryPath string, args []string) (*Session, error) {
	b.mu.Lock()
	if b.total >= b.capacity {
		b.mu.Unlock()
		return nil, errBucketAtCapacity
	}
	b.total++
	b.mu.Unlock()

	session, err := NewSession(ctx, binaryPath, args, b.opt)
	if err != nil {
		b.decrement()
		return nil, err
	}
	return session, nil
}

func (b *sessionBucket) put(session *Session) bool {
	select {
	case b.idle <- session:
		return true
	default:
		return false
	}
}

func (b *sessionBucket) discard(session *Session) {
	if session != nil {
		_ = session.Close()
	}
	b.decrement()
}

func (b *sessionBucket) drain() []error {
	var errs []error
	for {
		select {
		case session := <-b.idle:
			if session == nil {
				continue
			}
			if err := session.Close(); err != nil {
				errs = append(errs, err)
			}
			b.decrement()
		default:
			return errs
		}
	}
}

func (b *sessionBucket) decrement() {
	b.mu.Lock()
	if b.total > 0 {
		b.total--
	}
	b.mu.Unlock()
}

func defaultCapacity() int {
	return min(4, max(2, runtime.NumCPU()))
}
