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

// Package boltdb provides a pds4kit.Ledger backed by a single BoltDB file.
package boltdb

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/rms-node/pds4kit"
)

var resultBucket = []byte("results")

var (
	_ pds4kit.Ledger       = &Ledger{}
	_ pds4kit.LedgerReader = &Ledger{}
)

// Ledger is a pds4kit.Ledger which stores results as JSON keyed by data path.
type Ledger struct {
	Db *bolt.DB
}

// Open opens, or creates, the ledger file.
func Open(filename string) (*Ledger, error) {
	db, err := bolt.Open(filename, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening db file '%v'", filename)
	}
	db.MaxBatchDelay = 400 * time.Microsecond
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(resultBucket)
		return errors.Wrap(err, "creating results bucket")
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ensuring bucket existence")
	}
	return &Ledger{Db: db}, nil
}

// Put implements pds4kit.Ledger. Concurrent calls are batched into shared
// transactions.
func (l *Ledger) Put(res pds4kit.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return errors.Wrap(err, "encoding result")
	}
	err = l.Db.Batch(func(tx *bolt.Tx) error {
		return tx.Bucket(resultBucket).Put([]byte(res.Path), data)
	})
	return errors.Wrap(err, "putting result")
}

// Get returns the result stored for path.
func (l *Ledger) Get(path string) (res pds4kit.Result, ok bool, err error) {
	err = l.Db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(resultBucket).Get([]byte(path))
		if data == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(data, &res)
	})
	if err != nil {
		return res, false, errors.Wrapf(err, "decoding result for %s", path)
	}
	return res, ok, nil
}

// Each implements pds4kit.LedgerReader.
func (l *Ledger) Each(prefix string, fn func(pds4kit.Result) error) error {
	pre := []byte(prefix)
	return l.Db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(resultBucket).Cursor()
		for k, v := c.Seek(pre); k != nil && bytes.HasPrefix(k, pre); k, v = c.Next() {
			var res pds4kit.Result
			if err := json.Unmarshal(v, &res); err != nil {
				return errors.Wrapf(err, "decoding result for %s", k)
			}
			if err := fn(res); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close syncs and closes the database.
func (l *Ledger) Close() error {
	err := l.Db.Sync()
	if err != nil {
		return errors.Wrap(err, "syncing db")
	}
	return l.Db.Close()
}
