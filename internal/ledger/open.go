package ledger

import (
	"context"

	"github.com/BrandonDHaskell/shiftledger/internal/db"
	sqlitestore "github.com/BrandonDHaskell/shiftledger/internal/ledger/store/sqlite"
)

// Open opens the SQLite database described by cfg and returns an initialised
// Ledger over it.  The returned func stops the writer and closes the
// database.
func Open(ctx context.Context, cfg db.Config, opts Options) (*Ledger, func(), error) {
	conn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	w := db.NewWorker(conn)
	closeFn := func() {
		w.Close()
		_ = conn.Close()
	}

	l := New(sqlitestore.NewKVStore(conn, w), opts)
	if err := l.Init(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}
	return l, closeFn, nil
}
