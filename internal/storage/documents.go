package storage

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
)

func init() {
	sqlite.MustRegisterDeterministicScalarFunction("fold_contains", 2, foldContains)
}

// foldContains is the SQL function fold_contains(haystack, needle): 1 when
// needle occurs in haystack under Unicode lower-casing. SQLite's own lower()
// only folds ASCII.
func foldContains(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	haystack, needle := sqlText(args[0]), sqlText(args[1])
	if strings.Contains(strings.ToLower(haystack), strings.ToLower(needle)) {
		return int64(1), nil
	}
	return int64(0), nil
}

func sqlText(v driver.Value) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return ""
	}
}

const documentColumns = `id, title, content, summary, tags, embedding, ai_status, ai_generation, created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var d Document
	var summary sql.NullString
	var tags, createdAt, updatedAt string
	var embedding []byte
	if err := row.Scan(&d.ID, &d.Title, &d.Content, &summary, &tags, &embedding,
		&d.AIStatus, &d.AIGeneration, &d.CreatedBy, &createdAt, &updatedAt); err != nil {
		return Document{}, err
	}
	d.Summary = summary.String

	var err error
	if d.Tags, err = decodeTags(tags); err != nil {
		return Document{}, err
	}
	if d.Embedding, err = decodeFloat32s(embedding); err != nil {
		return Document{}, fmt.Errorf("decoding embedding of %s: %w", d.ID, err)
	}
	if d.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Document{}, err
	}
	if d.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return Document{}, err
	}
	return d, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// InsertDocument stores a new document together with its member rows.
func (s *Store) InsertDocument(d Document) error {
	tags, err := encodeTags(d.Tags)
	if err != nil {
		return err
	}
	if d.AIStatus == "" {
		d.AIStatus = AIStatusPending
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Title, d.Content, nullString(d.Summary), tags, encodeFloat32s(d.Embedding),
		d.AIStatus, d.AIGeneration, d.CreatedBy, formatTime(d.CreatedAt), formatTime(d.UpdatedAt))
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}

	for _, m := range d.Members {
		if err := insertMember(tx, d.ID, m); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) GetDocument(id string) (Document, error) {
	d, err := scanDocument(s.db.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	if d.Members, err = s.ListMembers(id); err != nil {
		return Document{}, err
	}
	return d, nil
}

// ListDocuments returns one page of documents, newest first, plus the total count.
func (s *Store) ListDocuments(offset, limit int) ([]Document, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&total); err != nil {
		return nil, 0, err
	}
	docs, err := s.queryDocuments(`SELECT `+documentColumns+` FROM documents
		ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// ListDocumentsForUser returns one page of documents the user created or is a
// member of, newest first, plus the total count.
func (s *Store) ListDocumentsForUser(userID string, offset, limit int) ([]Document, int, error) {
	const where = `WHERE created_by = ? OR id IN (SELECT document_id FROM document_members WHERE user_id = ?)`
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM documents `+where, userID, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	docs, err := s.queryDocuments(`SELECT `+documentColumns+` FROM documents `+where+`
		ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, userID, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// SearchDocumentsText returns documents whose title or content contains
// query, ignoring case, newest first.
func (s *Store) SearchDocumentsText(query string) ([]Document, error) {
	return s.queryDocuments(`SELECT `+documentColumns+` FROM documents
		WHERE fold_contains(title, ?) OR fold_contains(content, ?)
		ORDER BY created_at DESC, rowid DESC`, query, query)
}

// EmbeddedDocuments returns every completed document that carries an embedding.
func (s *Store) EmbeddedDocuments() ([]Document, error) {
	return s.queryDocuments(`SELECT `+documentColumns+` FROM documents
		WHERE ai_status = ? AND embedding IS NOT NULL
		ORDER BY created_at DESC, rowid DESC`, AIStatusCompleted)
}

func (s *Store) queryDocuments(query string, args ...any) ([]Document, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Members are loaded after the cursor is closed: the store runs on a
	// single connection.
	for i := range docs {
		if docs[i].Members, err = s.ListMembers(docs[i].ID); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// UpdateDocument applies patch to the document. When the title or content
// actually changes, the pre-change state is written to document_versions in
// the same transaction before the row is modified. It returns the stored
// document and whether anything changed.
func (s *Store) UpdateDocument(id string, patch DocumentPatch, editorID, versionID string, now time.Time) (Document, bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Document{}, false, fmt.Errorf("beginning update transaction: %w", err)
	}
	defer tx.Rollback()

	cur, err := scanDocument(tx.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, false, ErrNotFound
	}
	if err != nil {
		return Document{}, false, err
	}

	next := cur
	if patch.Title != nil {
		next.Title = *patch.Title
	}
	if patch.Content != nil {
		next.Content = *patch.Content
	}
	if next.Title == cur.Title && next.Content == cur.Content {
		return cur, false, nil
	}

	tags, err := encodeTags(cur.Tags)
	if err != nil {
		return Document{}, false, err
	}
	if _, err := tx.Exec(`
		INSERT INTO document_versions (id, document_id, title, content, summary, tags, embedding, ai_status, edited_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		versionID, cur.ID, cur.Title, cur.Content, nullString(cur.Summary), tags,
		encodeFloat32s(cur.Embedding), cur.AIStatus, editorID, formatTime(now)); err != nil {
		return Document{}, false, fmt.Errorf("inserting version: %w", err)
	}

	next.UpdatedAt = now
	if _, err := tx.Exec(`UPDATE documents SET title = ?, content = ?, updated_at = ? WHERE id = ?`,
		next.Title, next.Content, formatTime(now), id); err != nil {
		return Document{}, false, fmt.Errorf("updating document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Document{}, false, fmt.Errorf("committing update: %w", err)
	}

	if next.Members, err = s.ListMembers(id); err != nil {
		return Document{}, false, err
	}
	return next, true, nil
}

// DeleteDocument removes the document and its member rows. Versions are kept.
func (s *Store) DeleteDocument(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(`DELETE FROM document_members WHERE document_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// --- AI enrichment ---

// BeginEnrichment moves the document to pending and bumps its generation.
// The returned generation must be passed to CompleteEnrichment or
// FailEnrichment.
func (s *Store) BeginEnrichment(id string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning enrichment transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE documents SET ai_status = ?, ai_generation = ai_generation + 1 WHERE id = ?`, AIStatusPending, id)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNotFound
	}

	var gen int64
	if err := tx.QueryRow(`SELECT ai_generation FROM documents WHERE id = ?`, id).Scan(&gen); err != nil {
		return 0, err
	}
	return gen, tx.Commit()
}

// CompleteEnrichment writes the enrichment and marks the document completed,
// but only while generation is still current. It reports whether the write
// happened.
func (s *Store) CompleteEnrichment(id string, generation int64, e Enrichment) (bool, error) {
	sets := []string{"ai_status = ?"}
	args := []any{AIStatusCompleted}
	if e.Summary != nil {
		sets = append(sets, "summary = ?")
		args = append(args, *e.Summary)
	}
	if e.Tags != nil {
		tags, err := encodeTags(e.Tags)
		if err != nil {
			return false, err
		}
		sets = append(sets, "tags = ?")
		args = append(args, tags)
	}
	if e.Embedding != nil {
		sets = append(sets, "embedding = ?")
		args = append(args, encodeFloat32s(e.Embedding))
	}
	args = append(args, id, generation)

	res, err := s.db.Exec(`UPDATE documents SET `+strings.Join(sets, ", ")+` WHERE id = ? AND ai_generation = ?`, args...)
	if err != nil {
		return false, fmt.Errorf("completing enrichment: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// FailEnrichment marks the document failed while generation is still current.
func (s *Store) FailEnrichment(id string, generation int64) (bool, error) {
	res, err := s.db.Exec(`UPDATE documents SET ai_status = ? WHERE id = ? AND ai_generation = ?`, AIStatusFailed, id, generation)
	if err != nil {
		return false, fmt.Errorf("failing enrichment: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// --- Members ---

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertMember(db execer, docID string, m Member) error {
	if m.AddedAt.IsZero() {
		m.AddedAt = time.Now()
	}
	_, err := db.Exec(`
		INSERT INTO document_members (document_id, user_id, role, user_name, user_email, user_role, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		docID, m.UserID, m.Role, m.Name, m.Email, m.UserRole, formatTime(m.AddedAt))
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("inserting member: %w", err)
	}
	return nil
}

// AddMember inserts a membership edge. It returns ErrAlreadyExists when the
// user is already a member.
func (s *Store) AddMember(docID string, m Member) error {
	return insertMember(s.db, docID, m)
}

// ListMembers returns the members of a document in the order they were added.
func (s *Store) ListMembers(docID string) ([]Member, error) {
	rows, err := s.db.Query(`
		SELECT user_id, role, user_name, user_email, user_role, added_at
		FROM document_members WHERE document_id = ? ORDER BY added_at ASC, rowid ASC`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		var m Member
		var addedAt string
		if err := rows.Scan(&m.UserID, &m.Role, &m.Name, &m.Email, &m.UserRole, &addedAt); err != nil {
			return nil, err
		}
		if m.AddedAt, err = parseTime("added_at", addedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// --- Versions ---

// ListVersions returns the version history of a document, newest first.
func (s *Store) ListVersions(docID string) ([]Version, error) {
	rows, err := s.db.Query(`
		SELECT v.id, v.document_id, v.title, v.content, v.summary, v.tags, v.embedding, v.ai_status,
		       v.edited_by, COALESCE(u.name, ''), COALESCE(u.email, ''), v.created_at
		FROM document_versions v LEFT JOIN users u ON u.id = v.edited_by
		WHERE v.document_id = ?
		ORDER BY v.created_at DESC, v.rowid DESC`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := []Version{}
	for rows.Next() {
		var v Version
		var summary sql.NullString
		var tags, createdAt string
		var embedding []byte
		if err := rows.Scan(&v.ID, &v.DocumentID, &v.Title, &v.Content, &summary, &tags, &embedding,
			&v.AIStatus, &v.EditedBy, &v.EditorName, &v.EditorMail, &createdAt); err != nil {
			return nil, err
		}
		v.Summary = summary.String
		if v.Tags, err = decodeTags(tags); err != nil {
			return nil, err
		}
		if v.Embedding, err = decodeFloat32s(embedding); err != nil {
			return nil, err
		}
		if v.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// RecentActivity returns the latest edits, newest first. An empty docID
// covers all documents, including deleted ones.
func (s *Store) RecentActivity(docID string, limit int) ([]Activity, error) {
	query := `
		SELECT v.id, v.document_id, COALESCE(d.title, ''), v.edited_by, COALESCE(u.name, ''), v.created_at
		FROM document_versions v
		LEFT JOIN documents d ON d.id = v.document_id
		LEFT JOIN users u ON u.id = v.edited_by`
	args := []any{}
	if docID != "" {
		query += ` WHERE v.document_id = ?`
		args = append(args, docID)
	}
	query += ` ORDER BY v.created_at DESC, v.rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	feed := []Activity{}
	for rows.Next() {
		var a Activity
		var editedAt string
		if err := rows.Scan(&a.VersionID, &a.DocumentID, &a.Title, &a.EditorID, &a.EditorName, &editedAt); err != nil {
			return nil, err
		}
		if a.EditedAt, err = parseTime("created_at", editedAt); err != nil {
			return nil, err
		}
		feed = append(feed, a)
	}
	return feed, rows.Err()
}
