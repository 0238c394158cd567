package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"

	"procurement-workflow/internal/domain"
)

const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

type PostgresStore struct {
	db  *sql.DB
	dsn string
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: db, dsn: dsn}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema creates the document and settings tables, the deep-set helper
// and the change-notification trigger. It is safe to run on every start.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutDocument replaces a whole document. It is used by ingestion, which owns
// document creation.
func (s *PostgresStore) PutDocument(ctx context.Context, path, id string, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", id, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection_path, doc_id, data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection_path, doc_id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = NOW()
	`, path, id, string(payload))
	return err
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, path, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM documents
		WHERE collection_path = $1 AND doc_id = $2
	`, path, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, path, id string) (Document, error) {
	var payload []byte
	row := s.db.QueryRowContext(ctx, `
		SELECT data
		FROM documents
		WHERE collection_path = $1 AND doc_id = $2
	`, path, id)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return decodeDocument(id, payload), nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, path string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, data
		FROM documents
		WHERE collection_path = $1
		ORDER BY doc_id DESC
	`, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		docs = append(docs, decodeDocument(id, payload))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Collation may differ from byte order; the contract is byte order.
	sortDocuments(docs)
	return docs, nil
}

// UpdateFields applies a partial write. Only the named dotted paths change,
// so concurrent writers to other fields of the same document are preserved.
func (s *PostgresStore) UpdateFields(ctx context.Context, path, id string, fields domain.Fields) error {
	if len(fields) == 0 {
		return nil
	}
	expr, args, err := buildPatch(fields, 2)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE documents
		SET data = %s, updated_at = NOW()
		WHERE collection_path = $1 AND doc_id = $2
	`, expr)
	res, err := s.db.ExecContext(ctx, query, append([]any{path, id}, args...)...)
	if err != nil {
		return fmt.Errorf("update document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Watch delivers the full ordered document set of path once on start and
// again on every change notification for that path, until ctx is cancelled.
// Listener connection failures, including the first connection attempt, end
// the watch with an error.
func (s *PostgresStore) Watch(ctx context.Context, path string, handler WatchHandler) error {
	listenerErrs := make(chan error, 1)
	listener := pq.NewListener(s.dsn, listenerMinReconnect, listenerMaxReconnect, func(event pq.ListenerEventType, err error) {
		if event == pq.ListenerEventConnectionAttemptFailed && err != nil {
			select {
			case listenerErrs <- err:
			default:
			}
		}
	})
	defer listener.Close()

	// Listen blocks until the listener holds a connection and does not watch
	// ctx, so a connection that never comes up must surface through the
	// event callback instead.
	listening := make(chan error, 1)
	go func() {
		listening <- listener.Listen(notifyChannel)
	}()
	select {
	case <-ctx.Done():
		return nil
	case err := <-listenerErrs:
		return fmt.Errorf("postgres listener: %w", err)
	case err := <-listening:
		if err != nil {
			return fmt.Errorf("listen %s: %w", notifyChannel, err)
		}
	}

	deliver := func() error {
		docs, err := s.ListDocuments(ctx, path)
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		return handler(ctx, docs)
	}

	if err := deliver(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	ping := time.NewTicker(listenerPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-listenerErrs:
			return fmt.Errorf("postgres listener: %w", err)
		case n, ok := <-listener.Notify:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("postgres notification stream closed")
			}
			// A nil notification means the connection was re-established and
			// changes may have been missed.
			if n != nil && n.Extra != path {
				continue
			}
			if err := deliver(); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		case <-ping.C:
			if err := listener.Ping(); err != nil {
				return fmt.Errorf("postgres listener ping: %w", err)
			}
		}
	}
}

func (s *PostgresStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	row := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *PostgresStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()
	`, key, value)
	return err
}

// buildPatch nests one jsonb_set_deep call per field over the data column.
// Placeholders start after argOffset.
func buildPatch(fields domain.Fields, argOffset int) (string, []any, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	expr := "data"
	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		segments := domain.SplitPath(k)
		for _, seg := range segments {
			if strings.TrimSpace(seg) == "" {
				return "", nil, fmt.Errorf("invalid field path %q", k)
			}
		}
		value, err := json.Marshal(fields[k])
		if err != nil {
			return "", nil, fmt.Errorf("marshal field %s: %w", k, err)
		}
		args = append(args, pq.Array(segments), string(value))
		expr = fmt.Sprintf("jsonb_set_deep(%s, $%d::text[], $%d::jsonb)", expr, argOffset+len(args)-1, argOffset+len(args))
	}
	return expr, args, nil
}

func decodeDocument(id string, payload []byte) Document {
	data := make(map[string]any)
	// A corrupt payload degrades to an empty document; mapping fills defaults.
	_ = json.Unmarshal(payload, &data)
	if data == nil {
		data = make(map[string]any)
	}
	return Document{ID: id, Data: data}
}
