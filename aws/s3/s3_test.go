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

package s3

import (
	"io/ioutil"
	"net/http"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rms-node/pds4kit"
)

type fakeS3 struct {
	s3iface.S3API

	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) HeadObject(in *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[*in.Bucket+"/"+*in.Key]; !ok {
		return nil, awserr.NewRequestFailure(awserr.New("NotFound", "Not Found", nil), http.StatusNotFound, "req")
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) PutObject(in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
	data, err := ioutil.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = data
	f.types[*in.Key] = aws.StringValue(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestSink(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	sink, err := NewSink(
		OptSinkBucket("rms-pds4"),
		OptSinkPrefix("cassini"),
		OptSinkRoot("/out"),
		OptSinkClient(fake),
	)
	if err != nil {
		t.Fatalf("getting sink: %v", err)
	}
	item := &pds4kit.Item{OutputPath: "/out/COISS_2001/data/N1454725799_1.xml"}

	exists, err := sink.Exists(item)
	if err != nil || exists {
		t.Fatalf("expected no object yet: %v %v", exists, err)
	}
	if err := sink.Write(item, []byte("<Product_Observational/>")); err != nil {
		t.Fatalf("writing: %v", err)
	}
	key := "cassini/COISS_2001/data/N1454725799_1.xml"
	if string(fake.objects["rms-pds4/"+key]) != "<Product_Observational/>" {
		t.Fatalf("unexpected objects: %v", fake.objects)
	}
	if fake.types[key] != "application/xml" {
		t.Fatalf("unexpected content type %q", fake.types[key])
	}
	exists, err = sink.Exists(item)
	if err != nil || !exists {
		t.Fatalf("expected object to exist: %v %v", exists, err)
	}

	if _, err := sink.Key(&pds4kit.Item{OutputPath: "/elsewhere/a.xml"}); err == nil {
		t.Fatalf("expected an error for a path outside the root")
	}
}

func TestSinkKeyDotNames(t *testing.T) {
	sink, err := NewSink(OptSinkBucket("b"), OptSinkRoot("/data"), OptSinkClient(&fakeS3{}))
	if err != nil {
		t.Fatalf("getting sink: %v", err)
	}
	key, err := sink.Key(&pds4kit.Item{OutputPath: "/data/..v1.xml"})
	if err != nil || key != "..v1.xml" {
		t.Fatalf("unexpected key %q: %v", key, err)
	}
	for _, p := range []string{"/", "/data/../v1.xml", "/other/v1.xml"} {
		if _, err := sink.Key(&pds4kit.Item{OutputPath: p}); err == nil {
			t.Errorf("%s: expected an error for a path outside the root", p)
		}
	}
}

func TestSinkKeyWithoutRoot(t *testing.T) {
	sink, err := NewSink(OptSinkBucket("b"), OptSinkClient(&fakeS3{}))
	if err != nil {
		t.Fatalf("getting sink: %v", err)
	}
	key, err := sink.Key(&pds4kit.Item{OutputPath: "/data/v1.xml"})
	if err != nil || key != "data/v1.xml" {
		t.Fatalf("unexpected key %q: %v", key, err)
	}
	if _, err := NewSink(OptSinkClient(&fakeS3{})); err == nil {
		t.Fatalf("expected an error without a bucket")
	}
}
