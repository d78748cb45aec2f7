package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"attestor/pkg/domain"
	"attestor/pkg/platform/keylock"
)

// Key layout:
//
//	r/<id:16>                          -> receipt JSON
//	s/<subject:20>/<issued:8>/<id:16>  -> empty (subject index, oldest first)
var (
	receiptPrefix = []byte("r/")
	subjectPrefix = []byte("s/")
)

// PebbleStore persists receipts in a local Pebble database.
type PebbleStore struct {
	db    *pebble.DB
	locks *keylock.Striped
}

// PebbleOption adjusts the pebble.Options used to open the database.
type PebbleOption func(*pebble.Options)

// OpenPebble opens (or creates) the receipt database at path.
func OpenPebble(path string, opts ...PebbleOption) (*PebbleStore, error) {
	// The DB takes its own reference on the cache; ours is released on return.
	cache := pebble.NewCache(8 << 20)
	defer cache.Unref()

	o := &pebble.Options{
		Cache:        cache,
		MemTableSize: 4 << 20,
	}
	for _, opt := range opts {
		opt(o)
	}
	db, err := pebble.Open(path, o)
	if err != nil {
		return nil, fmt.Errorf("open receipt store: %w", err)
	}
	return &PebbleStore{db: db, locks: keylock.New(0)}, nil
}

// Save writes the receipt and its subject index atomically. Overwriting a
// receipt drops its previous index entry.
func (s *PebbleStore) Save(ctx context.Context, r Receipt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}

	key := receiptKey(r.ID)
	unlock := s.locks.Lock(key)
	defer unlock()

	batch := s.db.NewBatch()
	defer batch.Close()
	prev, err := s.Get(ctx, r.ID)
	switch {
	case err == nil:
		if err := batch.Delete(subjectKey(prev), nil); err != nil {
			return err
		}
	case !errors.Is(err, ErrNotFound):
		return err
	}
	if err := batch.Set(key, value, nil); err != nil {
		return err
	}
	if err := batch.Set(subjectKey(r), nil, nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

func (s *PebbleStore) Get(_ context.Context, id uuid.UUID) (Receipt, error) {
	value, closer, err := s.db.Get(receiptKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return Receipt{}, ErrNotFound
	}
	if err != nil {
		return Receipt{}, err
	}
	defer closer.Close()

	var r Receipt
	if err := json.Unmarshal(value, &r); err != nil {
		return Receipt{}, fmt.Errorf("decode receipt %s: %w", id, err)
	}
	return r, nil
}

func (s *PebbleStore) ListBySubject(ctx context.Context, subject domain.Address, limit int) ([]Receipt, error) {
	prefix := append(append([]byte{}, subjectPrefix...), subject.Bytes()...)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	limit = normalizeLimit(limit)
	out := make([]Receipt, 0, limit)
	for iter.Last(); iter.Valid() && len(out) < limit; iter.Prev() {
		key := iter.Key()
		id, err := uuid.FromBytes(key[len(key)-16:])
		if err != nil {
			return nil, fmt.Errorf("corrupt subject index key: %w", err)
		}
		r, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, iter.Error()
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}

func receiptKey(id uuid.UUID) []byte {
	return append(append([]byte{}, receiptPrefix...), id[:]...)
}

func subjectKey(r Receipt) []byte {
	key := make([]byte, 0, len(subjectPrefix)+20+8+16)
	key = append(key, subjectPrefix...)
	key = append(key, r.Subject.Bytes()...)
	key = binary.BigEndian.AppendUint64(key, uint64(r.IssuedAt.UnixNano()))
	return append(key, r.ID[:]...)
}

// prefixUpperBound returns the exclusive upper bound for a prefix scan.
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte{}, prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}
	return nil
}

var _ Store = (*PebbleStore)(nil)
