package kvstore

import (
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/pebble"
	log "github.com/sirupsen/logrus"
)

type pebbleKV struct {
	mutex sync.Mutex
	db    *pebble.DB
}

type pebbleIterator struct {
	snap  *pebble.Snapshot
	it    *pebble.Iterator
	first bool
}

type pebbleUpdater struct {
	kv    *pebbleKV
	batch *pebble.Batch
}

func MakePebbleKV(dataDir string, logger *log.Logger) (KV, error) {
	err := os.MkdirAll(dataDir, 0755)
	if err != nil {
		return nil, err
	}

	db, err := pebble.Open(dataDir, &pebble.Options{Logger: logger})
	if err != nil {
		return nil, err
	}
	return &pebbleKV{
		db: db,
	}, nil
}

func (pkv *pebbleKV) Iterate(prefix []byte) (Iterator, error) {
	snap := pkv.db.NewSnapshot()
	it := snap.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: PrefixEnd(prefix),
	})

	return &pebbleIterator{
		snap:  snap,
		it:    it,
		first: true,
	}, nil
}

func (pit *pebbleIterator) Item(fn func(key, val []byte) error) error {
	var valid bool
	if pit.first {
		valid = pit.it.First()
		pit.first = false
	} else {
		valid = pit.it.Next()
	}
	if !valid {
		return io.EOF
	}

	return fn(pit.it.Key(), pit.it.Value())
}

func (pit *pebbleIterator) Close() {
	pit.it.Close()
	pit.snap.Close()
}

func (pkv *pebbleKV) Get(key []byte, fn func(val []byte) error) error {
	val, closer, err := pkv.db.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return io.EOF
		}
		return err
	}
	defer closer.Close()

	return fn(val)
}

func (pkv *pebbleKV) Updater() (Updater, error) {
	pkv.mutex.Lock()

	return pebbleUpdater{
		kv:    pkv,
		batch: pkv.db.NewIndexedBatch(),
	}, nil
}

func (pkv *pebbleKV) Close() error {
	return pkv.db.Close()
}

func (pu pebbleUpdater) Get(key []byte, fn func(val []byte) error) error {
	val, closer, err := pu.batch.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return io.EOF
		}
		return err
	}
	defer closer.Close()

	return fn(val)
}

func (pu pebbleUpdater) Set(key, val []byte) error {
	return pu.batch.Set(key, val, nil)
}

func (pu pebbleUpdater) Delete(key []byte) error {
	return pu.batch.Delete(key, nil)
}

func (pu pebbleUpdater) Commit() error {
	err := pu.batch.Commit(pebble.NoSync)
	pu.kv.mutex.Unlock()
	return err
}

func (pu pebbleUpdater) Rollback() {
	pu.batch.Close()
	pu.kv.mutex.Unlock()
}
