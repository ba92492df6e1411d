/*
Package storage defines where normalized title rows go.

# Sinks and stores

A Sink receives rows during a load. Insert stages a row, Commit makes every
staged row visible at once, and Close releases the sink without committing
anything still staged:

	type Sink interface {
	    Insert(ctx context.Context, row title.Row) error
	    Commit(ctx context.Context) error
	    Close() error
	}

A Store is a Sink that can also be read back (Search, Count, Stats). Three
backends implement it:

  - memory: in-process, for tests and one-shot runs
  - badger: embedded key-value store keyed by tconst
  - mysql: a title_basics table written inside one transaction per load

Sinks that outlive a single load also implement Rollbacker, so a failed load
can drop its staged rows without closing the sink. Use Rollback(sink) rather
than asserting the interface directly.

# Duplicate keys

Backends differ on a repeated tconst: memory keeps both rows, badger keeps
the last one, and mysql fails the insert on the primary key.
*/
package storage
