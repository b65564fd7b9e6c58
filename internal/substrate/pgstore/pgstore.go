// Package pgstore implements the property-graph substrate on PostgreSQL
// via Bun. Vertices and edges are rows with a jsonb property bag; the
// migrations in /migrations create the expression indexes backing
// vertex-by-property lookups. Sessions run as SERIALIZABLE SQL
// transactions so commit-time conflicts surface the same way Badger's do.
package pgstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"github.com/lattice-kb/lattice.graph/internal/substrate"
	"github.com/lattice-kb/lattice.graph/pkg/logger"
)

// PropsMap stores the property bag as jsonb.
type PropsMap map[string]string

func (p PropsMap) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (p *PropsMap) Scan(value any) error {
	if value == nil {
		*p = PropsMap{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("cannot scan %T into PropsMap", value)
	}
}

type vertexRow struct {
	bun.BaseModel `bun:"table:graph_vertices,alias:v"`

	ID       string   `bun:"id,pk"`
	Keyspace string   `bun:"keyspace,notnull"`
	Kind     string   `bun:"kind,notnull"`
	Props    PropsMap `bun:"props,type:jsonb,notnull,default:'{}'"`
}

type edgeRow struct {
	bun.BaseModel `bun:"table:graph_edges,alias:e"`

	ID       string   `bun:"id,pk"`
	Keyspace string   `bun:"keyspace,notnull"`
	FromID   string   `bun:"from_id,notnull"`
	ToID     string   `bun:"to_id,notnull"`
	Label    string   `bun:"label,notnull"`
	Props    PropsMap `bun:"props,type:jsonb,notnull,default:'{}'"`
}

// Store is a PostgreSQL-backed substrate for one keyspace.
type Store struct {
	db       *bun.DB
	keyspace string
	log      *slog.Logger
}

// New creates a store bound to one keyspace.
func New(db *bun.DB, keyspace string, log *slog.Logger) *Store {
	return &Store{
		db:       db,
		keyspace: keyspace,
		log:      log.With(logger.Scope("substrate.pg")),
	}
}

// Begin opens a session transaction.
func (s *Store) Begin(ctx context.Context, readOnly bool) (substrate.Tx, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
		ReadOnly:  readOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("begin substrate tx: %w", err)
	}
	return &storeTx{tx: tx, keyspace: s.keyspace, readOnly: readOnly}, nil
}

// Close is a no-op; the bun.DB lifecycle is owned by the database module.
func (s *Store) Close() error { return nil }

type storeTx struct {
	tx       bun.Tx
	keyspace string
	readOnly bool
	closed   bool
}

func (t *storeTx) writable() error {
	if t.closed {
		return substrate.ErrTxClosed
	}
	if t.readOnly {
		return errors.New("substrate: read-only transaction")
	}
	return nil
}

func (t *storeTx) readable() error {
	if t.closed {
		return substrate.ErrTxClosed
	}
	return nil
}

func (t *storeTx) AddVertex(ctx context.Context, kind string) (*substrate.Vertex, error) {
	if err := t.writable(); err != nil {
		return nil, err
	}
	row := &vertexRow{
		ID:       uuid.NewString(),
		Keyspace: t.keyspace,
		Kind:     kind,
		Props:    PropsMap{},
	}
	if _, err := t.tx.NewInsert().Model(row).Exec(ctx); err != nil {
		return nil, mapPgError(err)
	}
	return rowToVertex(row), nil
}

func (t *storeTx) RemoveVertex(ctx context.Context, id substrate.VertexID) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, err := t.getVertexRow(ctx, id); err != nil {
		return err
	}

	_, err := t.tx.NewDelete().
		Model((*edgeRow)(nil)).
		Where("keyspace = ?", t.keyspace).
		Where("from_id = ? OR to_id = ?", string(id), string(id)).
		Exec(ctx)
	if err != nil {
		return mapPgError(err)
	}

	_, err = t.tx.NewDelete().
		Model((*vertexRow)(nil)).
		Where("keyspace = ?", t.keyspace).
		Where("id = ?", string(id)).
		Exec(ctx)
	return mapPgError(err)
}

func (t *storeTx) VertexByID(ctx context.Context, id substrate.VertexID) (*substrate.Vertex, error) {
	if err := t.readable(); err != nil {
		return nil, err
	}
	row, err := t.getVertexRow(ctx, id)
	if err != nil {
		return nil, err
	}
	return rowToVertex(row), nil
}

func (t *storeTx) VerticesByProperty(ctx context.Context, key, value string) ([]*substrate.Vertex, error) {
	if err := t.readable(); err != nil {
		return nil, err
	}
	var rows []*vertexRow
	err := t.tx.NewSelect().
		Model(&rows).
		Where("keyspace = ?", t.keyspace).
		Where("props->>? = ?", key, value).
		Order("id").
		Scan(ctx)
	if err != nil {
		return nil, mapPgError(err)
	}
	out := make([]*substrate.Vertex, len(rows))
	for i, row := range rows {
		out[i] = rowToVertex(row)
	}
	return out, nil
}

func (t *storeTx) SetProperty(ctx context.Context, id substrate.VertexID, key, value string) error {
	if err := t.writable(); err != nil {
		return err
	}
	res, err := t.tx.NewUpdate().
		Model((*vertexRow)(nil)).
		Set("props = jsonb_set(props, ARRAY[?], to_jsonb(?::text))", key, value).
		Where("keyspace = ?", t.keyspace).
		Where("id = ?", string(id)).
		Exec(ctx)
	if err != nil {
		return mapPgError(err)
	}
	return requireAffected(res)
}

func (t *storeTx) RemoveProperty(ctx context.Context, id substrate.VertexID, key string) error {
	if err := t.writable(); err != nil {
		return err
	}
	res, err := t.tx.NewUpdate().
		Model((*vertexRow)(nil)).
		Set("props = props - ?", key).
		Where("keyspace = ?", t.keyspace).
		Where("id = ?", string(id)).
		Exec(ctx)
	if err != nil {
		return mapPgError(err)
	}
	return requireAffected(res)
}

func (t *storeTx) AddEdge(ctx context.Context, from, to substrate.VertexID, label string) (*substrate.Edge, error) {
	if err := t.writable(); err != nil {
		return nil, err
	}
	if _, err := t.getVertexRow(ctx, from); err != nil {
		return nil, err
	}
	if _, err := t.getVertexRow(ctx, to); err != nil {
		return nil, err
	}

	row := &edgeRow{
		ID:       uuid.NewString(),
		Keyspace: t.keyspace,
		FromID:   string(from),
		ToID:     string(to),
		Label:    label,
		Props:    PropsMap{},
	}
	if _, err := t.tx.NewInsert().Model(row).Exec(ctx); err != nil {
		return nil, mapPgError(err)
	}
	return rowToEdge(row), nil
}

func (t *storeTx) RemoveEdge(ctx context.Context, id substrate.EdgeID) error {
	if err := t.writable(); err != nil {
		return err
	}
	res, err := t.tx.NewDelete().
		Model((*edgeRow)(nil)).
		Where("keyspace = ?", t.keyspace).
		Where("id = ?", string(id)).
		Exec(ctx)
	if err != nil {
		return mapPgError(err)
	}
	return requireAffected(res)
}

func (t *storeTx) SetEdgeProperty(ctx context.Context, id substrate.EdgeID, key, value string) error {
	if err := t.writable(); err != nil {
		return err
	}
	res, err := t.tx.NewUpdate().
		Model((*edgeRow)(nil)).
		Set("props = jsonb_set(props, ARRAY[?], to_jsonb(?::text))", key, value).
		Where("keyspace = ?", t.keyspace).
		Where("id = ?", string(id)).
		Exec(ctx)
	if err != nil {
		return mapPgError(err)
	}
	return requireAffected(res)
}

func (t *storeTx) OutEdges(ctx context.Context, id substrate.VertexID, label string) ([]*substrate.Edge, error) {
	return t.edges(ctx, "from_id", id, label)
}

func (t *storeTx) InEdges(ctx context.Context, id substrate.VertexID, label string) ([]*substrate.Edge, error) {
	return t.edges(ctx, "to_id", id, label)
}

func (t *storeTx) edges(ctx context.Context, column string, id substrate.VertexID, label string) ([]*substrate.Edge, error) {
	if err := t.readable(); err != nil {
		return nil, err
	}
	var rows []*edgeRow
	q := t.tx.NewSelect().
		Model(&rows).
		Where("keyspace = ?", t.keyspace).
		Where("? = ?", bun.Ident(column), string(id)).
		Order("id")
	if label != "" {
		q = q.Where("label = ?", label)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, mapPgError(err)
	}
	out := make([]*substrate.Edge, len(rows))
	for i, row := range rows {
		out[i] = rowToEdge(row)
	}
	return out, nil
}

func (t *storeTx) Commit(_ context.Context) error {
	if t.closed {
		return substrate.ErrTxClosed
	}
	t.closed = true
	return mapPgError(t.tx.Commit())
}

func (t *storeTx) Rollback() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.tx.Rollback()
}

func (t *storeTx) getVertexRow(ctx context.Context, id substrate.VertexID) (*vertexRow, error) {
	row := new(vertexRow)
	err := t.tx.NewSelect().
		Model(row).
		Where("keyspace = ?", t.keyspace).
		Where("id = ?", string(id)).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, substrate.ErrNotFound
	}
	if err != nil {
		return nil, mapPgError(err)
	}
	return row, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return substrate.ErrNotFound
	}
	return nil
}

// mapPgError translates serialization failures and deadlocks into the
// substrate's conflict error so callers can retry uniformly.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return substrate.ErrConflict
		}
	}
	return err
}

func rowToVertex(row *vertexRow) *substrate.Vertex {
	props := make(map[string]string, len(row.Props))
	for k, v := range row.Props {
		props[k] = v
	}
	return &substrate.Vertex{
		ID:    substrate.VertexID(row.ID),
		Kind:  row.Kind,
		Props: props,
	}
}

func rowToEdge(row *edgeRow) *substrate.Edge {
	props := make(map[string]string, len(row.Props))
	for k, v := range row.Props {
		props[k] = v
	}
	return &substrate.Edge{
		ID:    substrate.EdgeID(row.ID),
		From:  substrate.VertexID(row.FromID),
		To:    substrate.VertexID(row.ToID),
		Label: row.Label,
		Props: props,
	}
}
