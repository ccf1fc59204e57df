package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/catalyst-labs/filingrag/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/catalyst-labs/filingrag/internal/core/domain"
	"github.com/catalyst-labs/filingrag/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.FilingStore = (*Store)(nil)

// Store is the SQLite-backed filing metadata catalogue: companies and
// the filings collected for them. Chunk-level metadata lives in the
// vector index artifacts, not here.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.filingrag/data/filings.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".filingrag", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "filings.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// SaveCompany inserts or updates a company keyed by ticker. Tickers are
// stored upper-cased. The assigned id is written back to c.
func (s *Store) SaveCompany(ctx context.Context, c *domain.Company) error {
	if c.Ticker == "" {
		return fmt.Errorf("%w: company ticker required", domain.ErrInvalidInput)
	}
	ticker := strings.ToUpper(c.Ticker)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO companies (ticker, name)
		VALUES (?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE companies.name END
	`, ticker, c.Name)
	if err != nil {
		return fmt.Errorf("saving company: %w", err)
	}

	row := s.db.QueryRowContext(ctx, "SELECT id, name FROM companies WHERE ticker = ?", ticker)
	if err := row.Scan(&c.ID, &c.Name); err != nil {
		return fmt.Errorf("reading back company: %w", err)
	}
	c.Ticker = ticker
	return nil
}

// CompanyByTicker retrieves a company by its ticker symbol,
// case-insensitively.
func (s *Store) CompanyByTicker(ctx context.Context, ticker string) (*domain.Company, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ticker, name FROM companies WHERE ticker = ?
	`, strings.ToUpper(ticker))

	var c domain.Company
	if err := row.Scan(&c.ID, &c.Ticker, &c.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("company %q: %w", ticker, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting company: %w", err)
	}
	return &c, nil
}

// CompanyByID retrieves a company by id.
func (s *Store) CompanyByID(ctx context.Context, id int64) (*domain.Company, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ticker, name FROM companies WHERE id = ?
	`, id)

	var c domain.Company
	if err := row.Scan(&c.ID, &c.Ticker, &c.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("company %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting company: %w", err)
	}
	return &c, nil
}

// Companies lists all companies ordered by ticker.
func (s *Store) Companies(ctx context.Context) ([]domain.Company, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticker, name FROM companies ORDER BY ticker
	`)
	if err != nil {
		return nil, fmt.Errorf("listing companies: %w", err)
	}
	defer rows.Close()

	var companies []domain.Company
	for rows.Next() {
		var c domain.Company
		if err := rows.Scan(&c.ID, &c.Ticker, &c.Name); err != nil {
			return nil, fmt.Errorf("scanning company: %w", err)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// SaveFiling inserts or updates a filing keyed by accession number. The
// assigned id is written back to f.
func (s *Store) SaveFiling(ctx context.Context, f *domain.Filing) error {
	if f.AccessionNumber == "" {
		return fmt.Errorf("%w: accession number required", domain.ErrInvalidInput)
	}
	if f.CompanyID == 0 {
		return fmt.Errorf("%w: filing needs a company", domain.ErrInvalidInput)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO filings (company_id, filing_type, filing_date, accession_number, file_path, filing_url)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(accession_number) DO UPDATE SET
			company_id = excluded.company_id,
			filing_type = excluded.filing_type,
			filing_date = excluded.filing_date,
			file_path = excluded.file_path,
			filing_url = excluded.filing_url
	`, f.CompanyID, f.FilingType, f.FilingDate.UTC(), f.AccessionNumber, f.FilePath, f.FilingURL)
	if err != nil {
		return fmt.Errorf("saving filing: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT id FROM filings WHERE accession_number = ?", f.AccessionNumber)
	if err := row.Scan(&f.ID); err != nil {
		return fmt.Errorf("reading back filing: %w", err)
	}
	return nil
}

// FilingByID retrieves a filing by id.
func (s *Store) FilingByID(ctx context.Context, id int64) (*domain.Filing, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, filing_type, filing_date, accession_number, file_path, filing_url
		FROM filings WHERE id = ?
	`, id)

	f, err := scanFiling(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("filing %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting filing: %w", err)
	}
	return f, nil
}

// FilingsByCompany lists a company's filings, newest first, optionally
// restricted to the given filing types. limit <= 0 means no limit.
func (s *Store) FilingsByCompany(ctx context.Context, companyID int64, types []string, limit int) ([]domain.Filing, error) {
	query := `
		SELECT id, company_id, filing_type, filing_date, accession_number, file_path, filing_url
		FROM filings WHERE company_id = ?`
	args := []interface{}{companyID}

	if len(types) > 0 {
		query += " AND filing_type IN (?" + strings.Repeat(", ?", len(types)-1) + ")"
		for _, t := range types {
			args = append(args, t)
		}
	}
	query += " ORDER BY filing_date DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing filings: %w", err)
	}
	defer rows.Close()

	var filings []domain.Filing
	for rows.Next() {
		f, err := scanFiling(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning filing: %w", err)
		}
		filings = append(filings, *f)
	}
	return filings, rows.Err()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFiling(row scanner) (*domain.Filing, error) {
	var f domain.Filing
	var filingDate time.Time
	if err := row.Scan(&f.ID, &f.CompanyID, &f.FilingType, &filingDate,
		&f.AccessionNumber, &f.FilePath, &f.FilingURL); err != nil {
		return nil, err
	}
	f.FilingDate = filingDate.UTC()
	return &f, nil
}
