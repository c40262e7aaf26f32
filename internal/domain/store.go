package domain

import "context"

// Store is the unit of work shared by the account store and the
// transaction log. Repositories obtained from the Store passed to fn
// commit or roll back together.
type Store interface {
	Account() AccountRepository
	Transaction() TransactionRepository
	WithTransaction(ctx context.Context, fn func(Store) error) error
}
