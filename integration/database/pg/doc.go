// Package pg provides PostgreSQL connection pooling, goose migrations and
// error classification on top of pgx.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	//go:embed migrations/*.sql
//	var migrations embed.FS
//
//	sub, _ := fs.Sub(migrations, "migrations")
//	if err := pg.Migrate(ctx, pool, sub, cfg, log); err != nil {
//		return err
//	}
//
// Migrate bridges the pool to database/sql through pgx's stdlib adapter, since
// goose only speaks database/sql.
//
// WithTx and TxFromContext carry a pgx.Tx through a context so repositories
// can join a caller's transaction. The Is*Error helpers classify driver
// errors; IsRetryableError covers serialization failures, deadlocks and
// connection errors that are safe to retry.
package pg
