package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/k3nlo/Jatalog/datalog"
	"github.com/k3nlo/Jatalog/storage/kvstore"
)

// Store keeps ground facts and rule definitions in an ordered key/value store. Facts of one
// relation are adjacent and sorted by their terms; rules are kept in definition order.
type Store struct {
	name    string
	kv      kvstore.KV
	ruleSeq uint64
}

func NewStore(name string, kv kvstore.KV) (*Store, error) {
	st := &Store{
		name: name,
		kv:   kv,
	}

	err := st.iterate([]byte{ruleTag},
		func(key, val []byte) error {
			if len(key) != 9 {
				return fmt.Errorf("storage: %s: bad rule key: %v", name, key)
			}
			st.ruleSeq = binary.BigEndian.Uint64(key[1:])
			return nil
		})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"store": name,
		"rules": st.ruleSeq,
	}).Info("store opened")
	return st, nil
}

func (st *Store) Name() string {
	return st.name
}

func (st *Store) Close() error {
	return st.kv.Close()
}

func (st *Store) iterate(prefix []byte, fn func(key, val []byte) error) error {
	it, err := st.kv.Iterate(prefix)
	if err != nil {
		return err
	}
	defer it.Close()

	for {
		err = it.Item(fn)
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
	}
}

func (st *Store) update(fn func(upd kvstore.Updater) error) error {
	upd, err := st.kv.Updater()
	if err != nil {
		return err
	}

	err = fn(upd)
	if err != nil {
		upd.Rollback()
		return err
	}
	return upd.Commit()
}

// Assert adds the ground fact; it returns false if the fact was already present.
func (st *Store) Assert(fact datalog.Expr) (bool, error) {
	if !fact.IsGround() {
		return false, fmt.Errorf("storage: fact %s is not ground", fact)
	}

	var added bool
	key := makeFactKey(fact)
	err := st.update(
		func(upd kvstore.Updater) error {
			err := upd.Get(key, func(val []byte) error { return nil })
			if err == nil {
				return nil
			} else if err != io.EOF {
				return err
			}
			added = true
			return upd.Set(key, encodeFact(fact))
		})
	if err != nil {
		return false, err
	}
	return added, nil
}

// Retract removes the ground fact; it returns false if the fact was not present.
func (st *Store) Retract(fact datalog.Expr) (bool, error) {
	var removed bool
	key := makeFactKey(fact)
	err := st.update(
		func(upd kvstore.Updater) error {
			err := upd.Get(key, func(val []byte) error { return nil })
			if err == io.EOF {
				return nil
			} else if err != nil {
				return err
			}
			removed = true
			return upd.Delete(key)
		})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// Scan calls fn with each stored fact of rel in key order.
func (st *Store) Scan(rel datalog.Relation, fn func(fact datalog.Expr) error) error {
	return st.iterate(relationPrefix(rel),
		func(key, val []byte) error {
			fact, err := decodeFact(val)
			if err != nil {
				return err
			}
			return fn(fact)
		})
}

// Relations returns every relation with at least one stored fact.
func (st *Store) Relations() ([]datalog.Relation, error) {
	var rels []datalog.Relation
	var last []byte
	err := st.iterate([]byte{factTag},
		func(key, val []byte) error {
			if last != nil && bytes.HasPrefix(key, last) {
				return nil
			}
			fact, err := decodeFact(val)
			if err != nil {
				return err
			}
			rel := fact.Key()
			rels = append(rels, rel)
			last = relationPrefix(rel)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return rels, nil
}

// AddRule persists the source form of a rule.
func (st *Store) AddRule(r datalog.Rule) error {
	seq := st.ruleSeq + 1
	err := st.update(
		func(upd kvstore.Updater) error {
			return upd.Set(makeRuleKey(seq), []byte(r.String()+"."))
		})
	if err != nil {
		return err
	}
	st.ruleSeq = seq
	return nil
}

// Rules returns the source form of every stored rule in definition order.
func (st *Store) Rules() ([]string, error) {
	var rules []string
	err := st.iterate([]byte{ruleTag},
		func(key, val []byte) error {
			rules = append(rules, string(val))
			return nil
		})
	if err != nil {
		return nil, err
	}
	return rules, nil
}
