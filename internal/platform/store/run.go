package store

import "context"

// repoLockSQL serializes writers per repository for the length of the
// transaction. hashtext folds the repository name into the advisory key space
const repoLockSQL = `SELECT pg_advisory_xact_lock(hashtext($1))`

// RunInRepo opens a transaction scoped to one repository. It takes the
// per repository advisory lock before fn runs, so two writers for the same
// repository never interleave merge commits
func RunInRepo(ctx context.Context, tx TxRunner, repository string, fn func(ctx context.Context, q RowQuerier) error) error {
	ctx = WithRepo(ctx, repository)
	return tx.Tx(ctx, func(q RowQuerier) error {
		if _, err := q.Exec(ctx, repoLockSQL, repository); err != nil {
			return err
		}
		return fn(ctx, q)
	})
}
