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

package leveldb

import (
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rms-node/pds4kit"
	"github.com/rms-node/pds4kit/test"
)

func TestLedger(t *testing.T) {
	dir := test.MustTempDir(t, "ledger")
	l, err := Open(dir)
	test.ErrNil(t, err, "Open")

	at := time.Date(2018, 4, 1, 12, 0, 0, 0, time.UTC)
	test.ErrNil(t, l.Put(pds4kit.Result{Path: "/a/N1.IMG", Status: pds4kit.Failed, Message: "reading label: EOF", At: at}), "Put")
	test.ErrNil(t, l.Put(pds4kit.Result{Path: "/b/W2.IMG", Status: pds4kit.Skipped, At: at}), "Put")
	test.ErrNil(t, l.Put(pds4kit.Result{Path: "/a/N1.IMG", Output: "/a/N1.xml", Status: pds4kit.Written, Bytes: 1200, At: at}), "Put again")
	test.ErrNil(t, l.Close(), "Close")

	l, err = Open(dir)
	test.ErrNil(t, err, "reopening")
	defer l.Close()

	res, ok, err := l.Get("/a/N1.IMG")
	test.ErrNil(t, err, "Get")
	if !ok {
		t.Fatalf("result not found after reopening")
	}
	test.MustBe(t, res, pds4kit.Result{Path: "/a/N1.IMG", Output: "/a/N1.xml", Status: pds4kit.Written, Bytes: 1200, At: at})

	if _, ok, err := l.Get("/c/none.IMG"); ok || err != nil {
		t.Fatalf("unexpected result for unknown path: %v %v", ok, err)
	}

	var paths []string
	test.ErrNil(t, l.Each("", func(r pds4kit.Result) error {
		paths = append(paths, r.Path)
		return nil
	}), "Each")
	test.MustBe(t, paths, []string{"/a/N1.IMG", "/b/W2.IMG"})

	paths = paths[:0]
	test.ErrNil(t, l.Each("/b/", func(r pds4kit.Result) error {
		paths = append(paths, r.Path)
		return nil
	}), "Each with prefix")
	test.MustBe(t, paths, []string{"/b/W2.IMG"})

	stop := fmt.Errorf("stop")
	if err := l.Each("", func(pds4kit.Result) error { return stop }); err != stop {
		t.Fatalf("expected the callback error, got %v", err)
	}
}

func TestConcLedger(t *testing.T) {
	l, err := Open(test.MustTempDir(t, "ledger"))
	test.ErrNil(t, err, "Open")
	defer l.Close()

	wg := &sync.WaitGroup{}
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if err := l.Put(pds4kit.Result{Path: "/d/" + strconv.Itoa(i*100+j)}); err != nil {
					errs <- err
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	n := 0
	test.ErrNil(t, l.Each("/d/", func(pds4kit.Result) error { n++; return nil }), "Each")
	if n != 800 {
		t.Fatalf("expected 800 results, got %d", n)
	}
}
