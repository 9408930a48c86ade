package rostergraph

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

// walJournalSizeLimit bounds the WAL file to 64 MiB.
const walJournalSizeLimit = 67108864

// Store is the SQLite-backed graph store. It is safe for concurrent use;
// the delete+create batches of a reconciliation pass run inside single
// transactions (see Apply).
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	entityStmts entityStatements
	edgeStmts   edgeStatements
}

// Statement groups, prepared once at open.
type entityStatements struct {
	upsert, get, delete *sql.Stmt
}

type edgeStatements struct {
	relate, exact, byType, sources, targets *sql.Stmt
}

// Open creates a Store at dbPath, applying pragmas and migrations and
// preparing repeated statements. Use ":memory:" for tests.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("opening roster graph database", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("rostergraph: open sqlite: %w", err)
	}

	// Sole connection: every session carries the pragmas below, and
	// concurrent write transactions queue instead of hitting SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := setPragmas(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, logger: logger}

	if err := s.prepareStatements(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("rostergraph: prepare statements: %w", err)
	}

	logger.Info("roster graph database ready", slog.String("path", dbPath))

	return s, nil
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	pragmas := []struct {
		sql  string
		desc string
	}{
		{"PRAGMA journal_mode = WAL", "WAL mode"},
		{"PRAGMA synchronous = FULL", "synchronous FULL"},
		{"PRAGMA foreign_keys = ON", "foreign keys"},
		{"PRAGMA busy_timeout = 5000", "busy timeout"},
		{fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit), "journal size limit"},
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p.sql); err != nil {
			return fmt.Errorf("rostergraph: set pragma %s: %w", p.desc, err)
		}

		logger.Debug("pragma set", slog.String("pragma", p.desc))
	}

	return nil
}

func (s *Store) prepareStatements(ctx context.Context) error {
	var err error

	if s.entityStmts.upsert, err = s.db.PrepareContext(ctx, upsertEntitySQL); err != nil {
		return fmt.Errorf("upsert entity: %w", err)
	}

	if s.entityStmts.get, err = s.db.PrepareContext(ctx, getEntitySQL); err != nil {
		return fmt.Errorf("get entity: %w", err)
	}

	if s.entityStmts.delete, err = s.db.PrepareContext(ctx, deleteEntitySQL); err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}

	if s.edgeStmts.relate, err = s.db.PrepareContext(ctx, relateSQL); err != nil {
		return fmt.Errorf("relate: %w", err)
	}

	if s.edgeStmts.exact, err = s.db.PrepareContext(ctx, edgeExactSQL); err != nil {
		return fmt.Errorf("edge exact: %w", err)
	}

	if s.edgeStmts.byType, err = s.db.PrepareContext(ctx, edgesByTypeSQL); err != nil {
		return fmt.Errorf("edges by type: %w", err)
	}

	if s.edgeStmts.sources, err = s.db.PrepareContext(ctx, sourcesSQL); err != nil {
		return fmt.Errorf("sources: %w", err)
	}

	if s.edgeStmts.targets, err = s.db.PrepareContext(ctx, targetsSQL); err != nil {
		return fmt.Errorf("targets: %w", err)
	}

	return nil
}

// Close releases prepared statements and closes the database.
func (s *Store) Close() error {
	for _, stmt := range []*sql.Stmt{
		s.entityStmts.upsert, s.entityStmts.get, s.entityStmts.delete,
		s.edgeStmts.relate, s.edgeStmts.exact, s.edgeStmts.byType,
		s.edgeStmts.sources, s.edgeStmts.targets,
	} {
		if stmt != nil {
			stmt.Close()
		}
	}

	return s.db.Close()
}
