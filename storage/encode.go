package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/k3nlo/Jatalog/datalog"
)

const (
	factTag = 'f'
	ruleTag = 'r'

	predicateField protowire.Number = 1
	termField      protowire.Number = 2
)

// encodeKeyBytes escapes 0 and 1 so that the encoded bytes sort the same as the original
// and a 0 marks the end.
func encodeKeyBytes(buf []byte, bytes []byte) []byte {
	for _, b := range bytes {
		if b == 0 || b == 1 {
			buf = append(buf, 1)
		}
		buf = append(buf, b)
	}
	return append(buf, 0)
}

func relationPrefix(rel datalog.Relation) []byte {
	buf := []byte{factTag}
	buf = encodeKeyBytes(buf, []byte(rel.Predicate))
	var n [binary.MaxVarintLen64]byte
	return append(buf, n[:binary.PutUvarint(n[:], uint64(rel.Arity))]...)
}

func makeFactKey(fact datalog.Expr) []byte {
	buf := relationPrefix(fact.Key())
	for _, t := range fact.Terms {
		buf = encodeKeyBytes(buf, []byte(t))
	}
	return buf
}

func makeRuleKey(seq uint64) []byte {
	buf := make([]byte, 9)
	buf[0] = ruleTag
	binary.BigEndian.PutUint64(buf[1:], seq)
	return buf
}

func encodeFact(fact datalog.Expr) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, predicateField, protowire.BytesType)
	buf = protowire.AppendString(buf, fact.Predicate)
	for _, t := range fact.Terms {
		buf = protowire.AppendTag(buf, termField, protowire.BytesType)
		buf = protowire.AppendString(buf, t)
	}
	return buf
}

func decodeFact(buf []byte) (datalog.Expr, error) {
	var fact datalog.Expr
	var terms []string
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return datalog.Expr{}, fmt.Errorf("storage: decode fact: %s", protowire.ParseError(n))
		}
		buf = buf[n:]

		if typ != protowire.BytesType {
			return datalog.Expr{}, fmt.Errorf("storage: decode fact: unexpected wire type %d",
				typ)
		}
		s, n := protowire.ConsumeString(buf)
		if n < 0 {
			return datalog.Expr{}, fmt.Errorf("storage: decode fact: %s", protowire.ParseError(n))
		}
		buf = buf[n:]

		switch num {
		case predicateField:
			fact.Predicate = s
		case termField:
			terms = append(terms, s)
		default:
			return datalog.Expr{}, fmt.Errorf("storage: decode fact: unexpected field %d", num)
		}
	}

	if fact.Predicate == "" {
		return datalog.Expr{}, errors.New("storage: decode fact: missing predicate")
	}
	fact.Terms = terms
	return fact, nil
}
