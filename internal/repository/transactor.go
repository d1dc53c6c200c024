package repository

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
)

// Transactor runs fn so that all store writes it performs commit together or not at all.
// Stores must be called with the ctx handed to fn.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type MongoTransactor struct {
	client *mongo.Client
}

func NewMongoTransactor(client *mongo.Client) *MongoTransactor {
	return &MongoTransactor{client: client}
}

func (t *MongoTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := t.client.StartSession()
	if err != nil {
		return classify(err, "start session")
	}
	defer session.EndSession(ctx)

	callback := func(sessionContext mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessionContext)
	}
	// write conflicts carry the TransientTransactionError label and are retried by the driver
	_, err = session.WithTransaction(ctx, callback)
	return err
}

// MemoryTransactor serializes transactions over the in-memory stores. Writes made
// through the transaction context are journaled and undone if fn fails.
type MemoryTransactor struct {
	mu sync.Mutex
}

func NewMemoryTransactor() *MemoryTransactor {
	return &MemoryTransactor{}
}

func (t *MemoryTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := checkContext(ctx, "begin transaction"); err != nil {
		return err
	}
	journal := &undoJournal{}
	if err := fn(context.WithValue(ctx, undoJournalKey{}, journal)); err != nil {
		journal.rollback()
		return err
	}
	return nil
}

type undoJournalKey struct{}

type undoJournal struct {
	steps []func()
}

// rollback undoes journaled writes newest first.
func (j *undoJournal) rollback() {
	for i := len(j.steps) - 1; i >= 0; i-- {
		j.steps[i]()
	}
	j.steps = nil
}

// onRollback records undo for a write made inside a memory transaction.
// Outside a transaction it does nothing. undo must take the store lock itself.
func onRollback(ctx context.Context, undo func()) {
	if journal, ok := ctx.Value(undoJournalKey{}).(*undoJournal); ok {
		journal.steps = append(journal.steps, undo)
	}
}
