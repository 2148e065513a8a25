// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

// Package leveldb provides a pds4kit.Ledger which keeps the latest result of
// every migrated item in a LevelDB database.
package leveldb

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/rms-node/pds4kit"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var (
	_ pds4kit.Ledger       = &Ledger{}
	_ pds4kit.LedgerReader = &Ledger{}
)

// Ledger is a pds4kit.Ledger which stores results as JSON keyed by data
// path. A later result for the same path replaces the earlier one.
type Ledger struct {
	db *leveldb.DB
}

// Open opens, or creates, the ledger in dirname.
func Open(dirname string) (*Ledger, error) {
	if err := os.MkdirAll(dirname, 0700); err != nil {
		return nil, errors.Wrap(err, "making directory")
	}
	db, err := leveldb.OpenFile(dirname, &opt.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %v", dirname)
	}
	return &Ledger{db: db}, nil
}

// Put implements pds4kit.Ledger.
func (l *Ledger) Put(res pds4kit.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return errors.Wrap(err, "encoding result")
	}
	err = l.db.Put([]byte(res.Path), data, &opt.WriteOptions{})
	return errors.Wrap(err, "putting result")
}

// Get returns the result stored for path.
func (l *Ledger) Get(path string) (res pds4kit.Result, ok bool, err error) {
	data, err := l.db.Get([]byte(path), &opt.ReadOptions{})
	if err == leveldb.ErrNotFound {
		return res, false, nil
	} else if err != nil {
		return res, false, errors.Wrap(err, "fetching result")
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return res, false, errors.Wrapf(err, "decoding result for %s", path)
	}
	return res, true, nil
}

// Each implements pds4kit.LedgerReader.
func (l *Ledger) Each(prefix string, fn func(pds4kit.Result) error) error {
	var rng *util.Range
	if prefix != "" {
		rng = util.BytesPrefix([]byte(prefix))
	}
	iter := l.db.NewIterator(rng, nil)
	defer iter.Release()
	for iter.Next() {
		var res pds4kit.Result
		if err := json.Unmarshal(iter.Value(), &res); err != nil {
			return errors.Wrapf(err, "decoding result for %s", iter.Key())
		}
		if err := fn(res); err != nil {
			return err
		}
	}
	return errors.Wrap(iter.Error(), "iterating results")
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
