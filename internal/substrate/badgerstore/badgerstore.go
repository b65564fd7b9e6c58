// Package badgerstore implements the property-graph substrate on BadgerDB.
//
// Layout: vertex and edge records are JSON values under `v:` and `e:`
// keys; three key-only indexes support the traversals the engine needs:
//
//	pi:<prop>\x00<value>\x00<vid>   vertex-by-property
//	oe:<from>\x00<label>\x00<eid>   out edges
//	ie:<to>\x00<label>\x00<eid>     in edges
//
// A substrate transaction maps directly onto a Badger transaction, which
// gives per-session atomicity and write-conflict detection at commit.
package badgerstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/lattice-kb/lattice.graph/internal/substrate"
	"github.com/lattice-kb/lattice.graph/pkg/logger"
)

const (
	vertexPrefix    = "v:"
	edgePrefix      = "e:"
	propIndexPrefix = "pi:"
	outEdgePrefix   = "oe:"
	inEdgePrefix    = "ie:"
	sep             = "\x00"
)

// Config holds settings for one Badger-backed keyspace.
type Config struct {
	// Dir is the directory for the database files. Ignored when InMemory
	// is set.
	Dir string

	// InMemory disables disk persistence. Used by tests and embedded
	// scratch keyspaces.
	InMemory bool

	// SyncWrites forces fsync on commit.
	SyncWrites bool
}

// Store is a Badger-backed substrate for one keyspace.
type Store struct {
	db  *badger.DB
	log *slog.Logger
}

// Open opens or creates the keyspace database.
func Open(cfg Config, log *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Dir).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Dir, err)
	}

	return &Store{
		db:  db,
		log: log.With(logger.Scope("substrate.badger")),
	}, nil
}

// Begin opens a session transaction.
func (s *Store) Begin(_ context.Context, readOnly bool) (substrate.Tx, error) {
	return &storeTx{
		txn:      s.db.NewTransaction(!readOnly),
		readOnly: readOnly,
	}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type vertexRecord struct {
	Kind  string            `json:"kind"`
	Props map[string]string `json:"props,omitempty"`
}

type edgeRecord struct {
	From  string            `json:"from"`
	To    string            `json:"to"`
	Label string            `json:"label"`
	Props map[string]string `json:"props,omitempty"`
}

type storeTx struct {
	txn      *badger.Txn
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

func (t *storeTx) AddVertex(_ context.Context, kind string) (*substrate.Vertex, error) {
	if err := t.writable(); err != nil {
		return nil, err
	}

	id := substrate.VertexID(uuid.NewString())
	rec := vertexRecord{Kind: kind, Props: map[string]string{}}
	if err := t.putVertexRecord(id, &rec); err != nil {
		return nil, err
	}
	return &substrate.Vertex{ID: id, Kind: kind, Props: map[string]string{}}, nil
}

func (t *storeTx) RemoveVertex(ctx context.Context, id substrate.VertexID) error {
	if err := t.writable(); err != nil {
		return err
	}

	rec, err := t.getVertexRecord(id)
	if err != nil {
		return err
	}

	// Incident edges go with the vertex.
	for _, prefix := range []string{outEdgePrefix + string(id) + sep, inEdgePrefix + string(id) + sep} {
		ids, err := t.edgeIDsByPrefix(prefix)
		if err != nil {
			return err
		}
		for _, eid := range ids {
			if err := t.RemoveEdge(ctx, eid); err != nil && !errors.Is(err, substrate.ErrNotFound) {
				return err
			}
		}
	}

	for key, value := range rec.Props {
		if err := t.txn.Delete(propIndexKey(key, value, id)); err != nil {
			return err
		}
	}
	return t.txn.Delete([]byte(vertexPrefix + string(id)))
}

func (t *storeTx) VertexByID(_ context.Context, id substrate.VertexID) (*substrate.Vertex, error) {
	if err := t.readable(); err != nil {
		return nil, err
	}
	rec, err := t.getVertexRecord(id)
	if err != nil {
		return nil, err
	}
	return recordToVertex(id, rec), nil
}

func (t *storeTx) VerticesByProperty(ctx context.Context, key, value string) ([]*substrate.Vertex, error) {
	if err := t.readable(); err != nil {
		return nil, err
	}

	prefix := []byte(propIndexPrefix + key + sep + value + sep)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	var out []*substrate.Vertex
	it := t.txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
		vid := substrate.VertexID(bytes.TrimPrefix(it.Item().Key(), prefix))
		v, err := t.VertexByID(ctx, vid)
		if errors.Is(err, substrate.ErrNotFound) {
			continue // stale index entry within this txn's view
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (t *storeTx) SetProperty(_ context.Context, id substrate.VertexID, key, value string) error {
	if err := t.writable(); err != nil {
		return err
	}

	rec, err := t.getVertexRecord(id)
	if err != nil {
		return err
	}

	if old, ok := rec.Props[key]; ok {
		if old == value {
			return nil
		}
		if err := t.txn.Delete(propIndexKey(key, old, id)); err != nil {
			return err
		}
	}
	if rec.Props == nil {
		rec.Props = map[string]string{}
	}
	rec.Props[key] = value

	if err := t.txn.Set(propIndexKey(key, value, id), nil); err != nil {
		return err
	}
	return t.putVertexRecord(id, rec)
}

func (t *storeTx) RemoveProperty(_ context.Context, id substrate.VertexID, key string) error {
	if err := t.writable(); err != nil {
		return err
	}

	rec, err := t.getVertexRecord(id)
	if err != nil {
		return err
	}
	old, ok := rec.Props[key]
	if !ok {
		return nil
	}
	delete(rec.Props, key)
	if err := t.txn.Delete(propIndexKey(key, old, id)); err != nil {
		return err
	}
	return t.putVertexRecord(id, rec)
}

func (t *storeTx) AddEdge(_ context.Context, from, to substrate.VertexID, label string) (*substrate.Edge, error) {
	if err := t.writable(); err != nil {
		return nil, err
	}

	// Both endpoints must exist.
	if _, err := t.getVertexRecord(from); err != nil {
		return nil, err
	}
	if _, err := t.getVertexRecord(to); err != nil {
		return nil, err
	}

	id := substrate.EdgeID(uuid.NewString())
	rec := edgeRecord{From: string(from), To: string(to), Label: label, Props: map[string]string{}}
	if err := t.putEdgeRecord(id, &rec); err != nil {
		return nil, err
	}
	if err := t.txn.Set(outEdgeKey(from, label, id), nil); err != nil {
		return nil, err
	}
	if err := t.txn.Set(inEdgeKey(to, label, id), nil); err != nil {
		return nil, err
	}
	return recordToEdge(id, &rec), nil
}

func (t *storeTx) RemoveEdge(_ context.Context, id substrate.EdgeID) error {
	if err := t.writable(); err != nil {
		return err
	}

	rec, err := t.getEdgeRecord(id)
	if err != nil {
		return err
	}
	if err := t.txn.Delete(outEdgeKey(substrate.VertexID(rec.From), rec.Label, id)); err != nil {
		return err
	}
	if err := t.txn.Delete(inEdgeKey(substrate.VertexID(rec.To), rec.Label, id)); err != nil {
		return err
	}
	return t.txn.Delete([]byte(edgePrefix + string(id)))
}

func (t *storeTx) SetEdgeProperty(_ context.Context, id substrate.EdgeID, key, value string) error {
	if err := t.writable(); err != nil {
		return err
	}

	rec, err := t.getEdgeRecord(id)
	if err != nil {
		return err
	}
	if rec.Props == nil {
		rec.Props = map[string]string{}
	}
	rec.Props[key] = value
	return t.putEdgeRecord(id, rec)
}

func (t *storeTx) OutEdges(_ context.Context, id substrate.VertexID, label string) ([]*substrate.Edge, error) {
	if err := t.readable(); err != nil {
		return nil, err
	}
	return t.edgesByIndex(outEdgePrefix, id, label)
}

func (t *storeTx) InEdges(_ context.Context, id substrate.VertexID, label string) ([]*substrate.Edge, error) {
	if err := t.readable(); err != nil {
		return nil, err
	}
	return t.edgesByIndex(inEdgePrefix, id, label)
}

func (t *storeTx) Commit(_ context.Context) error {
	if t.closed {
		return substrate.ErrTxClosed
	}
	t.closed = true
	err := t.txn.Commit()
	if errors.Is(err, badger.ErrConflict) {
		return substrate.ErrConflict
	}
	return err
}

func (t *storeTx) Rollback() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.txn.Discard()
	return nil
}

// --- record plumbing

func (t *storeTx) getVertexRecord(id substrate.VertexID) (*vertexRecord, error) {
	item, err := t.txn.Get([]byte(vertexPrefix + string(id)))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, substrate.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec vertexRecord
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (t *storeTx) putVertexRecord(id substrate.VertexID, rec *vertexRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return t.txn.Set([]byte(vertexPrefix+string(id)), data)
}

func (t *storeTx) getEdgeRecord(id substrate.EdgeID) (*edgeRecord, error) {
	item, err := t.txn.Get([]byte(edgePrefix + string(id)))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, substrate.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec edgeRecord
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (t *storeTx) putEdgeRecord(id substrate.EdgeID, rec *edgeRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return t.txn.Set([]byte(edgePrefix+string(id)), data)
}

func (t *storeTx) edgeIDsByPrefix(prefix string) ([]substrate.EdgeID, error) {
	p := []byte(prefix)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = p

	var ids []substrate.EdgeID
	it := t.txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.ValidForPrefix(p); it.Next() {
		rest := bytes.TrimPrefix(it.Item().Key(), p)
		// key tail is <label>\x00<eid> when prefix stops at the vertex
		if i := bytes.LastIndex(rest, []byte(sep)); i >= 0 {
			rest = rest[i+1:]
		}
		ids = append(ids, substrate.EdgeID(rest))
	}
	return ids, nil
}

func (t *storeTx) edgesByIndex(indexPrefix string, id substrate.VertexID, label string) ([]*substrate.Edge, error) {
	prefix := indexPrefix + string(id) + sep
	if label != "" {
		prefix += label + sep
	}
	ids, err := t.edgeIDsByPrefix(prefix)
	if err != nil {
		return nil, err
	}

	out := make([]*substrate.Edge, 0, len(ids))
	for _, eid := range ids {
		rec, err := t.getEdgeRecord(eid)
		if errors.Is(err, substrate.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, recordToEdge(eid, rec))
	}
	return out, nil
}

func recordToVertex(id substrate.VertexID, rec *vertexRecord) *substrate.Vertex {
	props := make(map[string]string, len(rec.Props))
	for k, v := range rec.Props {
		props[k] = v
	}
	return &substrate.Vertex{ID: id, Kind: rec.Kind, Props: props}
}

func recordToEdge(id substrate.EdgeID, rec *edgeRecord) *substrate.Edge {
	props := make(map[string]string, len(rec.Props))
	for k, v := range rec.Props {
		props[k] = v
	}
	return &substrate.Edge{
		ID:    id,
		From:  substrate.VertexID(rec.From),
		To:    substrate.VertexID(rec.To),
		Label: rec.Label,
		Props: props,
	}
}

func propIndexKey(key, value string, id substrate.VertexID) []byte {
	return []byte(propIndexPrefix + key + sep + value + sep + string(id))
}

func outEdgeKey(from substrate.VertexID, label string, id substrate.EdgeID) []byte {
	return []byte(outEdgePrefix + string(from) + sep + label + sep + string(id))
}

func inEdgeKey(to substrate.VertexID, label string, id substrate.EdgeID) []byte {
	return []byte(inEdgePrefix + string(to) + sep + label + sep + string(id))
}
