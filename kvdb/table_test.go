package kvdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	require := require.New(t)

	db := NewMemory()
	defer db.Close()

	a := NewTable(db, "a")
	b := NewTable(db, "b")
	nested := a.NewTable("x")

	require.NoError(a.Put([]byte("k1"), []byte("a1")))
	require.NoError(b.Put([]byte("k1"), []byte("b1")))
	require.NoError(nested.Put([]byte("k2"), []byte("ax2")))

	v, err := a.Get([]byte("k1"))
	require.NoError(err)
	require.Equal([]byte("a1"), v)

	v, err = db.Get([]byte("axk2"))
	require.NoError(err)
	require.Equal([]byte("ax2"), v)

	_, err = b.Get([]byte("k2"))
	require.ErrorIs(err, ErrNotFound)

	it := a.NewIterator(nil, nil)
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(it.Error())
	it.Release()
	require.Equal([]string{"k1", "xk2"}, keys)
}

func TestBatchAcrossTables(t *testing.T) {
	require := require.New(t)

	db := NewMemory()
	defer db.Close()

	a := NewTable(db, "a")
	b := NewTable(db, "b")

	batch := db.NewBatch()
	require.NoError(a.Wrap(batch).Put([]byte("1"), []byte("x")))
	require.NoError(b.Wrap(batch).Put([]byte("2"), []byte("y")))

	ok, err := a.Has([]byte("1"))
	require.NoError(err)
	require.False(ok, "batch must not be visible before Write")

	require.NoError(batch.Write())
	ok, _ = a.Has([]byte("1"))
	require.True(ok)
	ok, _ = b.Has([]byte("2"))
	require.True(ok)
}
