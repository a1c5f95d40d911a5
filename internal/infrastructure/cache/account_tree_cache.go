package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	appaccounting "github.com/erp/setoff/internal/application/accounting"
	appsettlement "github.com/erp/setoff/internal/application/settlement"
	"github.com/erp/setoff/internal/domain/accounting"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultTreeTTL    = 5 * time.Minute
	defaultTreePrefix = "setoff:accounts:"
	defaultTreeChan   = "setoff:accounts:invalidate"
)

// AccountTreeCache implements a two-tier cache over the chart of accounts
// L1: Local in-memory posting services (fast, but local to instance)
// L2: Redis holding the serialized account list (shared across instances)
// Chart changes publish the tenant ID on a Pub/Sub channel so every
// instance drops its L1 entry.
type AccountTreeCache struct {
	accounts accounting.AccountItemRepository
	client   *redis.Client // nil disables the L2 tier
	mapping  accounting.AccountMapping

	ttl       time.Duration
	keyPrefix string
	channel   string
	logger    *zap.Logger

	mu sync.RWMutex
	l1 map[uuid.UUID]l1Entry

	cancelFn context.CancelFunc
	doneCh   chan struct{}
	doneOnce sync.Once
}

type l1Entry struct {
	service   *accounting.PostingService
	expiresAt time.Time
}

// cachedAccount is the Redis representation of one chart node
type cachedAccount struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	Direction  string    `json:"direction"`
	Status     string    `json:"status"`
	ParentCode string    `json:"parent_code"`
}

// AccountTreeCacheOption is a functional option for configuring the cache
type AccountTreeCacheOption func(*AccountTreeCache)

// WithTreeTTL sets how long a cached tree stays valid without invalidation
func WithTreeTTL(ttl time.Duration) AccountTreeCacheOption {
	return func(c *AccountTreeCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithTreeLogger sets the logger for the cache
func WithTreeLogger(logger *zap.Logger) AccountTreeCacheOption {
	return func(c *AccountTreeCache) {
		c.logger = logger
	}
}

// WithTreeKeyPrefix sets the Redis key prefix
func WithTreeKeyPrefix(prefix string) AccountTreeCacheOption {
	return func(c *AccountTreeCache) {
		c.keyPrefix = prefix
	}
}

// NewAccountTreeCache creates a new account tree cache. The caller
// retains ownership of the Redis client; a nil client runs the cache
// in single-instance mode with only the in-memory tier.
func NewAccountTreeCache(
	accounts accounting.AccountItemRepository,
	client *redis.Client,
	mapping accounting.AccountMapping,
	opts ...AccountTreeCacheOption,
) *AccountTreeCache {
	cache := &AccountTreeCache{
		accounts:  accounts,
		client:    client,
		mapping:   mapping,
		ttl:       defaultTreeTTL,
		keyPrefix: defaultTreePrefix,
		channel:   defaultTreeChan,
		logger:    zap.NewNop(),
		l1:        make(map[uuid.UUID]l1Entry),
		doneCh:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache
}

// PostingService returns a posting service over the tenant's current
// chart of accounts (L1 -> L2 -> database)
func (c *AccountTreeCache) PostingService(ctx context.Context, tenantID uuid.UUID) (*accounting.PostingService, error) {
	c.mu.RLock()
	entry, ok := c.l1[tenantID]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.service, nil
	}

	accounts, err := c.loadAccounts(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	tree, err := accounting.BuildAccountTree(accounts)
	if err != nil {
		return nil, err
	}
	service, err := accounting.NewPostingService(c.mapping, tree)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.l1[tenantID] = l1Entry{service: service, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return service, nil
}

// loadAccounts reads the chart from L2, falling back to the database
// and populating L2 on a miss
func (c *AccountTreeCache) loadAccounts(ctx context.Context, tenantID uuid.UUID) ([]*accounting.AccountItem, error) {
	if c.client != nil {
		accounts, err := c.getL2(ctx, tenantID)
		if err != nil {
			c.logger.Warn("account tree L2 read failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err))
		}
		if accounts != nil {
			return accounts, nil
		}
	}

	accounts, err := c.accounts.FindAll(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load chart of accounts: %w", err)
	}

	if c.client != nil {
		if err := c.setL2(ctx, tenantID, accounts); err != nil {
			c.logger.Warn("account tree L2 write failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err))
		}
	}
	return accounts, nil
}

func (c *AccountTreeCache) getL2(ctx context.Context, tenantID uuid.UUID) ([]*accounting.AccountItem, error) {
	payload, err := c.client.Get(ctx, c.keyPrefix+tenantID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cached []cachedAccount
	if err := json.Unmarshal(payload, &cached); err != nil {
		return nil, fmt.Errorf("unmarshal cached accounts: %w", err)
	}

	accounts := make([]*accounting.AccountItem, len(cached))
	for i, a := range cached {
		item := &accounting.AccountItem{
			Code:       a.Code,
			Name:       a.Name,
			Kind:       accounting.AccountKind(a.Kind),
			Direction:  accounting.AccountDirection(a.Direction),
			Status:     accounting.AccountStatus(a.Status),
			ParentCode: a.ParentCode,
		}
		item.ID = a.ID
		item.TenantID = a.TenantID
		accounts[i] = item
	}
	return accounts, nil
}

func (c *AccountTreeCache) setL2(ctx context.Context, tenantID uuid.UUID, accounts []*accounting.AccountItem) error {
	cached := make([]cachedAccount, len(accounts))
	for i, a := range accounts {
		cached[i] = cachedAccount{
			ID:         a.ID,
			TenantID:   a.TenantID,
			Code:       a.Code,
			Name:       a.Name,
			Kind:       string(a.Kind),
			Direction:  string(a.Direction),
			Status:     string(a.Status),
			ParentCode: a.ParentCode,
		}
	}

	payload, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("marshal cached accounts: %w", err)
	}
	return c.client.Set(ctx, c.keyPrefix+tenantID.String(), payload, c.ttl).Err()
}

// Invalidate drops the tenant's cached tree from both tiers and tells
// other instances to drop theirs
func (c *AccountTreeCache) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	c.dropL1(tenantID)

	if c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, c.keyPrefix+tenantID.String()).Err(); err != nil {
		return fmt.Errorf("delete cached account tree: %w", err)
	}
	if err := c.client.Publish(ctx, c.channel, tenantID.String()).Err(); err != nil {
		c.logger.Warn("failed to publish account tree invalidation",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
	}
	return nil
}

func (c *AccountTreeCache) dropL1(tenantID uuid.UUID) {
	c.mu.Lock()
	delete(c.l1, tenantID)
	c.mu.Unlock()
}

// StartInvalidationSubscription listens for invalidation messages from
// other instances. It blocks until the context is cancelled, so call it
// in a goroutine.
func (c *AccountTreeCache) StartInvalidationSubscription(ctx context.Context) error {
	if c.client == nil {
		return nil
	}

	subCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFn = cancel
	c.mu.Unlock()

	pubsub := c.client.Subscribe(subCtx, c.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		c.markDone()
		return fmt.Errorf("subscribe to invalidation channel: %w", err)
	}

	c.logger.Info("subscribed to account tree invalidation channel",
		zap.String("channel", c.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			c.markDone()
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				c.markDone()
				return nil
			}
			tenantID, err := uuid.Parse(msg.Payload)
			if err != nil {
				c.logger.Error("invalid tenant id in invalidation message",
					zap.String("payload", msg.Payload),
					zap.Error(err))
				continue
			}
			c.dropL1(tenantID)
			c.logger.Debug("dropped cached account tree",
				zap.String("tenant_id", tenantID.String()))
		}
	}
}

func (c *AccountTreeCache) markDone() {
	c.doneOnce.Do(func() {
		close(c.doneCh)
	})
}

// Close stops the invalidation subscription. The Redis client is owned
// by the caller and stays open.
func (c *AccountTreeCache) Close() error {
	c.mu.Lock()
	cancelFn := c.cancelFn
	c.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
		select {
		case <-c.doneCh:
		case <-time.After(5 * time.Second):
			c.logger.Warn("timeout waiting for invalidation subscription to stop")
		}
	}
	return nil
}

// Ensure AccountTreeCache serves both the settlement and accounting sides
var _ appsettlement.PostingProvider = (*AccountTreeCache)(nil)
var _ appaccounting.TreeInvalidator = (*AccountTreeCache)(nil)
