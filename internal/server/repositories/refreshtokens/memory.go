package refreshtokens

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/minitwit/internal/common"
	"github.com/dmitrijs2005/minitwit/internal/server/models"
)

// MemoryRepository keeps records in a map guarded by a mutex. Every
// operation runs under the lock, which makes MarkUsed's check-and-set atomic.
type MemoryRepository struct {
	mu     sync.Mutex
	tokens map[string]models.RefreshToken
	users  UserLookup
	now    func() time.Time
}

func NewMemoryRepository(users UserLookup, opts ...Option) *MemoryRepository {
	o := applyOptions(opts)
	return &MemoryRepository{
		tokens: make(map[string]models.RefreshToken),
		users:  users,
		now:    o.now,
	}
}

func (r *MemoryRepository) Create(ctx context.Context, tokenID, userID, value string, expiresAt time.Time) error {
	if _, err := r.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorInvalidUserID
		}
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[value] = models.RefreshToken{
		Value:     value,
		TokenID:   tokenID,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}
	return nil
}

func (r *MemoryRepository) FetchByValue(ctx context.Context, value string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[value]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r *MemoryRepository) MarkUsed(ctx context.Context, value string, used bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[value]
	if !ok {
		return common.ErrorNotFound
	}
	if used && t.Used {
		return common.ErrAlreadyRedeemed
	}
	t.Used = used
	r.tokens[value] = t
	return nil
}

func (r *MemoryRepository) DeleteAllExpired(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for k, t := range r.tokens {
		if t.Expired(now) {
			delete(r.tokens, k)
		}
	}
	return nil
}

// Invalidate flags a record as revoked. No authentication flow calls it;
// it exists so tests can exercise the invalidated check.
func (r *MemoryRepository) Invalidate(value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[value]
	if !ok {
		return common.ErrorNotFound
	}
	t.Invalidated = true
	r.tokens[value] = t
	return nil
}

// Len returns the number of stored records.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}
