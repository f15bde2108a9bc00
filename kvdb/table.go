package kvdb

// Table wraps the underlying DB, so all the table's data is stored with a prefix in underlying DB
type Table struct {
	underlying Store
	prefix     []byte
}

// prefixed key (prefix + key)
func prefixed(key, prefix []byte) []byte {
	prefixedKey := make([]byte, 0, len(prefix)+len(key))
	prefixedKey = append(prefixedKey, prefix...)
	prefixedKey = append(prefixedKey, key...)
	return prefixedKey
}

func noPrefix(key, prefix []byte) []byte {
	if len(key) < len(prefix) {
		return key
	}
	return key[len(prefix):]
}

// NewTable returns a view of db restricted to prefix.
func NewTable(db Store, prefix string) *Table {
	return &Table{
		underlying: db,
		prefix:     []byte(prefix),
	}
}

func (t *Table) NewTable(prefix string) *Table {
	return NewTable(t, prefix)
}

func (t *Table) Has(key []byte) (bool, error) {
	return t.underlying.Has(prefixed(key, t.prefix))
}

func (t *Table) Get(key []byte) ([]byte, error) {
	return t.underlying.Get(prefixed(key, t.prefix))
}

func (t *Table) Put(key []byte, value []byte) error {
	return t.underlying.Put(prefixed(key, t.prefix), value)
}

func (t *Table) Delete(key []byte) error {
	return t.underlying.Delete(prefixed(key, t.prefix))
}

func (t *Table) NewIterator(prefix []byte, start []byte) Iterator {
	return &iterator{
		Iterator: t.underlying.NewIterator(prefixed(prefix, t.prefix), start),
		prefix:   t.prefix,
	}
}

// Close is a no-op: the underlying DB is owned by the caller.
func (t *Table) Close() error {
	return nil
}

func (t *Table) NewBatch() Batch {
	return &tableBatch{t.underlying.NewBatch(), t.prefix}
}

// Wrap returns a writer that prefixes keys into an existing batch, so that
// writes to several tables can be committed together.
func (t *Table) Wrap(b Batch) Batch {
	if parent, ok := t.underlying.(*Table); ok {
		b = parent.Wrap(b)
	}
	return &tableBatch{b, t.prefix}
}

/*
 * Batch
 */

type tableBatch struct {
	batch  Batch
	prefix []byte
}

func (b *tableBatch) Put(key, value []byte) error {
	return b.batch.Put(prefixed(key, b.prefix), value)
}

func (b *tableBatch) Delete(key []byte) error {
	return b.batch.Delete(prefixed(key, b.prefix))
}

func (b *tableBatch) ValueSize() int {
	return b.batch.ValueSize()
}

func (b *tableBatch) Write() error {
	return b.batch.Write()
}

func (b *tableBatch) Reset() {
	b.batch.Reset()
}

/*
 * Iterator
 */

type iterator struct {
	Iterator
	prefix []byte
}

func (it *iterator) Key() []byte {
	return noPrefix(it.Iterator.Key(), it.prefix)
}
