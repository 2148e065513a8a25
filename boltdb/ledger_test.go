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

package boltdb

import (
	"path/filepath"
	"testing"

	"github.com/rms-node/pds4kit"
	"github.com/rms-node/pds4kit/test"
)

func TestBoltLedger(t *testing.T) {
	boltFile := filepath.Join(test.MustTempDir(t, "bolt"), "ledger.db")
	l, err := Open(boltFile)
	if err != nil {
		t.Fatalf("couldn't get bolt db: %v", err)
	}
	results := []pds4kit.Result{
		{Path: "/coiss_2001/N1.IMG", Status: pds4kit.Written, Bytes: 100},
		{Path: "/coiss_2001/N2.IMG", Status: pds4kit.Failed, Message: "mapping label: unknown ISS camera"},
		{Path: "/covims_0001/v1.qub", Status: pds4kit.Skipped},
	}
	for _, res := range results {
		if err := l.Put(res); err != nil {
			t.Fatalf("putting %s: %v", res.Path, err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("closing bolt db: %v", err)
	}

	l, err = Open(boltFile)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer l.Close()

	res, ok, err := l.Get("/coiss_2001/N2.IMG")
	if err != nil || !ok {
		t.Fatalf("getting result after reopen: %v %v", ok, err)
	}
	if res.Status != pds4kit.Failed || res.Message != "mapping label: unknown ISS camera" {
		t.Fatalf("unexpected result: %+v", res)
	}

	var got []pds4kit.Result
	err = l.Each("/coiss_2001/", func(r pds4kit.Result) error {
		got = append(got, r)
		return nil
	})
	test.ErrNil(t, err, "Each")
	test.MustBe(t, got, results[:2])

	got = got[:0]
	test.ErrNil(t, l.Each("", func(r pds4kit.Result) error {
		got = append(got, r)
		return nil
	}), "Each all")
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
}
