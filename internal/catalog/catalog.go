// Package catalog reads and writes Adobe Lightroom Classic catalogs
// (.lrcat), which are plain SQLite databases. Keyword writes are additive:
// vocabulary entries are reused by exact name and membership rows are only
// ever inserted, never deleted.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/phototools/autotag/internal/source"
)

// Store is an exclusively-held handle to one catalog, kept open for the
// duration of a session.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to a catalog and verifies the single-writer precondition.
// Lightroom holds a companion .lock file while the catalog is open; finding
// one is fatal at session start rather than a per-write surprise.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("catalog not found: %s", path)
	}

	if _, err := os.Stat(path + ".lock"); err == nil {
		return nil, fmt.Errorf("catalog is open in another application (lock file present): %s.lock", path)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	if err := probeExclusive(db); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("Connected to catalog", "path", path)
	return &Store{db: db, path: path}, nil
}

// probeExclusive verifies the single-writer precondition by taking and
// releasing the write lock. A plain BEGIN is deferred in SQLite and acquires
// nothing, so the probe must be BEGIN IMMEDIATE on a raw connection. The
// busy timeout is shortened for the probe; a held lock should fail fast at
// startup, not stall for seconds.
func probeExclusive(db *sql.DB) error {
	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("catalog probe: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `PRAGMA busy_timeout = 250`); err != nil {
		return fmt.Errorf("catalog probe: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `BEGIN IMMEDIATE`); err != nil {
		return fmt.Errorf("catalog is locked by another process: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `ROLLBACK`); err != nil {
		return fmt.Errorf("catalog probe: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		return fmt.Errorf("catalog probe: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the catalog file path.
func (s *Store) Path() string {
	return s.path
}

// Filter narrows catalog enumeration. Zero values mean "no condition".
type Filter struct {
	OnlyUntagged bool
	DateFrom     string // YYYY-MM-DD, inclusive
	DateTo       string // YYYY-MM-DD, inclusive
	MinRating    int    // -1 disables the condition
	Collection   string // substring match on collection name
}

// Photos enumerates catalog photos joined with their file, folder and
// storage-root rows, plus the Smart Preview token when one exists. Ordered
// by id_local so re-enumeration of an unchanged catalog is stable.
func (s *Store) Photos(ctx context.Context, f Filter) ([]source.Photo, error) {
	query := `
	SELECT
		ai.id_local,
		af.baseName || '.' || af.extension,
		rf.id_local,
		rf.absolutePath,
		alf.pathFromRoot || af.baseName || '.' || af.extension,
		COALESCE(dnp.fileUUID, '')
	FROM Adobe_images ai
	INNER JOIN AgLibraryFile af ON ai.rootFile = af.id_local
	INNER JOIN AgLibraryFolder alf ON af.folder = alf.id_local
	INNER JOIN AgLibraryRootFolder rf ON alf.rootFolder = rf.id_local
	LEFT JOIN AgDNGProxyInfo dnp ON af.id_global = dnp.fileUUID
	WHERE ai.id_local IS NOT NULL`

	var conditions []string
	var args []any

	if f.OnlyUntagged {
		conditions = append(conditions, `ai.id_local NOT IN (SELECT image FROM AgLibraryKeywordImage)`)
	}
	if f.DateFrom != "" {
		conditions = append(conditions, `ai.captureTime >= ?`)
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		conditions = append(conditions, `ai.captureTime <= ?`)
		args = append(args, f.DateTo+" 23:59:59")
	}
	if f.MinRating >= 0 {
		conditions = append(conditions, `ai.rating >= ?`)
		args = append(args, f.MinRating)
	}
	if f.Collection != "" {
		conditions = append(conditions, `ai.id_local IN (
			SELECT aci.image FROM AgLibraryCollectionImage aci
			INNER JOIN AgLibraryCollection ac ON aci.collection = ac.id_local
			WHERE ac.name LIKE ?)`)
		args = append(args, "%"+f.Collection+"%")
	}

	for _, c := range conditions {
		query += " AND " + c
	}
	query += " ORDER BY ai.id_local"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("enumerate photos: %w", err)
	}
	defer rows.Close()

	var photos []source.Photo
	for rows.Next() {
		var p source.Photo
		if err := rows.Scan(&p.ID, &p.FileName, &p.RootID, &p.RootPath, &p.RelPath, &p.PreviewUUID); err != nil {
			return nil, fmt.Errorf("scan photo row: %w", err)
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("enumerate photos: %w", err)
	}

	slog.Info("Enumerated catalog photos", "catalog", s.path, "photos", len(photos))
	return photos, nil
}

// ExistingKeywords returns the keywords currently attached to a photo.
func (s *Store) ExistingKeywords(photoID int64) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT alk.name
		FROM AgLibraryKeyword alk
		INNER JOIN AgLibraryKeywordImage alki ON alk.id_local = alki.tag
		WHERE alki.image = ?
		ORDER BY alk.name`, photoID)
	if err != nil {
		return nil, fmt.Errorf("existing keywords for photo %d: %w", photoID, err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if name != "" {
			tags = append(tags, name)
		}
	}
	return tags, rows.Err()
}

// AddKeywords attaches keywords to a photo inside one transaction, creating
// vocabulary entries only for names the catalog has never seen. Names that
// are already attached (case-insensitively) are left alone; nothing is ever
// removed. Returns how many new membership rows were written.
func (s *Store) AddKeywords(photoID int64, tags []string) (int, error) {
	if len(tags) == 0 {
		return 0, nil
	}

	existing, err := s.ExistingKeywords(photoID)
	if err != nil {
		return 0, err
	}
	attached := make(map[string]bool, len(existing))
	for _, t := range existing {
		attached[strings.ToLower(t)] = true
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin keyword transaction: %w", err)
	}
	defer tx.Rollback()

	added := 0
	for _, tag := range tags {
		if tag == "" || attached[strings.ToLower(tag)] {
			continue
		}

		keywordID, err := getOrCreateKeyword(tx, tag)
		if err != nil {
			return 0, err
		}

		var one int
		err = tx.QueryRow(`SELECT 1 FROM AgLibraryKeywordImage WHERE image = ? AND tag = ?`,
			photoID, keywordID).Scan(&one)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return 0, fmt.Errorf("check membership: %w", err)
		}

		if _, err := tx.Exec(`INSERT INTO AgLibraryKeywordImage (image, tag) VALUES (?, ?)`,
			photoID, keywordID); err != nil {
			return 0, fmt.Errorf("attach keyword %q to photo %d: %w", tag, photoID, err)
		}
		attached[strings.ToLower(tag)] = true
		added++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit keywords for photo %d: %w", photoID, err)
	}

	slog.Debug("Keywords written to catalog", "photo", photoID, "added", added)
	return added, nil
}

// getOrCreateKeyword reuses a vocabulary entry by exact name or inserts a
// new one with the fields Lightroom requires.
func getOrCreateKeyword(tx *sql.Tx, tag string) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id_local FROM AgLibraryKeyword WHERE name = ?`, tag).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup keyword %q: %w", tag, err)
	}

	var maxID sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(id_local) FROM AgLibraryKeyword`).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("next keyword id: %w", err)
	}
	id = maxID.Int64 + 1

	idGlobal := strings.ToUpper(uuid.NewString())
	_, err = tx.Exec(`
		INSERT INTO AgLibraryKeyword (id_local, id_global, name, lc_name, dateCreated, genealogy)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, idGlobal, tag, strings.ToLower(tag), time.Now().Format("2006-01-02T15:04:05"), "/"+tag)
	if err != nil {
		return 0, fmt.Errorf("create keyword %q: %w", tag, err)
	}
	return id, nil
}
