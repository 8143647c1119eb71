// internal/repository/memory/store.go
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"instantransfer/internal/domain"
	"instantransfer/internal/repository"
	"instantransfer/internal/util"
)

// userLedger is one user's wallet and history. Its mutex is the only lock a
// commit takes, so users never block each other.
type userLedger struct {
	mu           sync.Mutex
	wallet       *domain.Wallet
	transactions []domain.Transaction
	byKey        map[string]int
}

// Store is an in-process implementation of the ledger interfaces.
type Store struct {
	mu     sync.Mutex
	users  map[int64]*userLedger
	nextID int64

	currencyMu sync.RWMutex
	currencies map[string]domain.Currency
}

var (
	_ repository.LedgerStore     = (*Store)(nil)
	_ repository.LedgerReader    = (*Store)(nil)
	_ repository.CurrencyCatalog = (*Store)(nil)
)

// NewStore returns an empty store seeded with the given currencies.
func NewStore(currencies ...domain.Currency) *Store {
	s := &Store{
		users:      make(map[int64]*userLedger),
		currencies: make(map[string]domain.Currency),
	}
	for _, c := range currencies {
		s.currencies[strings.ToUpper(c.Code)] = c
	}
	return s
}

func (s *Store) ledger(userID int64) *userLedger {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.users[userID]
	if !ok {
		l = &userLedger{byKey: make(map[string]int)}
		s.users[userID] = l
	}
	return l
}

func (s *Store) LoadWallet(ctx context.Context, userID int64) (*domain.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := s.ledger(userID)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.wallet == nil {
		return nil, util.ErrWalletNotFound
	}
	w := *l.wallet
	return &w, nil
}

func (s *Store) CommitWalletAndTransaction(ctx context.Context, wallet *domain.Wallet, expectedVersion int64, tx *domain.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := s.ledger(wallet.UserID)
	l.mu.Lock()
	defer l.mu.Unlock()

	var current int64
	if l.wallet != nil {
		current = l.wallet.Version
	}
	if current != expectedVersion {
		return util.ErrConflict
	}
	if _, dup := l.byKey[tx.IdempotencyKey]; dup {
		return util.ErrDuplicateIdempotencyKey
	}

	staged := *wallet
	staged.Version = expectedVersion + 1
	staged.UpdatedAt = time.Now().UTC()
	if l.wallet == nil {
		s.mu.Lock()
		s.nextID++
		staged.ID = s.nextID
		s.mu.Unlock()
	} else {
		staged.ID = l.wallet.ID
		staged.CreatedAt = l.wallet.CreatedAt
	}

	l.wallet = &staged
	l.transactions = append(l.transactions, *tx)
	l.byKey[tx.IdempotencyKey] = len(l.transactions) - 1

	*wallet = staged
	return nil
}

func (s *Store) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := s.ledger(tx.UserID)
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.wallet != nil {
		return util.ErrConflict
	}
	if _, dup := l.byKey[tx.IdempotencyKey]; dup {
		return util.ErrDuplicateIdempotencyKey
	}
	l.transactions = append(l.transactions, *tx)
	l.byKey[tx.IdempotencyKey] = len(l.transactions) - 1
	return nil
}

func (s *Store) FindTransactionByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := s.ledger(userID)
	l.mu.Lock()
	defer l.mu.Unlock()
	idx, ok := l.byKey[key]
	if !ok {
		return nil, util.ErrNotFound
	}
	tx := l.transactions[idx]
	return &tx, nil
}

func (s *Store) GetWalletByUserID(ctx context.Context, userID int64) (*domain.Wallet, error) {
	return s.LoadWallet(ctx, userID)
}

func (s *Store) ListTransactionsByUserID(ctx context.Context, userID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	l := s.ledger(userID)
	l.mu.Lock()
	defer l.mu.Unlock()

	total := len(l.transactions)
	page := []domain.Transaction{}
	// Stored oldest first; pages are newest first.
	for i := total - 1 - offset; i >= 0 && len(page) < limit; i-- {
		page = append(page, l.transactions[i])
	}
	return page, int64(total), nil
}

func (s *Store) GetCurrency(ctx context.Context, code string) (*domain.Currency, error) {
	s.currencyMu.RLock()
	defer s.currencyMu.RUnlock()
	c, ok := s.currencies[strings.ToUpper(code)]
	if !ok {
		return nil, util.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListCurrencies(ctx context.Context) ([]domain.Currency, error) {
	s.currencyMu.RLock()
	defer s.currencyMu.RUnlock()
	out := make([]domain.Currency, 0, len(s.currencies))
	for _, c := range s.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) UpsertRates(ctx context.Context, base string, rates map[string]decimal.Decimal) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.currencyMu.Lock()
	defer s.currencyMu.Unlock()

	now := time.Now().UTC()
	set := func(code string, rate decimal.Decimal) {
		c, ok := s.currencies[code]
		if !ok {
			c = domain.Currency{Code: code, Name: code, Decimals: domain.DefaultCurrencyDecimals}
		}
		c.ExchangeRate = rate
		c.UpdatedAt = now
		s.currencies[code] = c
	}

	normalized := make(map[string]decimal.Decimal, len(rates))
	for code, rate := range rates {
		normalized[strings.ToUpper(code)] = rate
	}
	base = strings.ToUpper(base)
	normalized[base] = decimal.NewFromInt(1)
	for code, rate := range normalized {
		set(code, rate)
	}
	return len(normalized), nil
}
