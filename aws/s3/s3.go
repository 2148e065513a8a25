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

// Package s3 provides a pds4kit.Sink which uploads labels to an S3 bucket.
package s3

import (
	"bytes"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"
	"github.com/rms-node/pds4kit"
)

// SinkOption is a functional option type for s3.Sink.
type SinkOption func(s *Sink)

// OptSinkBucket is a SinkOption which sets the S3 bucket for a Sink.
func OptSinkBucket(bucket string) SinkOption {
	return func(s *Sink) {
		s.bucket = bucket
	}
}

// OptSinkRegion is a SinkOption which sets the AWS region for a Sink.
func OptSinkRegion(region string) SinkOption {
	return func(s *Sink) {
		s.region = region
	}
}

// OptSinkPrefix puts every object key under prefix.
func OptSinkPrefix(prefix string) SinkOption {
	return func(s *Sink) {
		s.prefix = prefix
	}
}

// OptSinkRoot strips root from output paths before they become object keys.
func OptSinkRoot(root string) SinkOption {
	return func(s *Sink) {
		s.root = root
	}
}

// OptSinkClient sets the S3 client, instead of one built from the region.
func OptSinkClient(client s3iface.S3API) SinkOption {
	return func(s *Sink) {
		s.s3 = client
	}
}

// Sink is a pds4kit.Sink which stores labels as S3 objects. The object key is
// the item's OutputPath, relative to the root when one is set, under the
// prefix.
type Sink struct {
	bucket string
	prefix string
	region string
	root   string

	s3 s3iface.S3API
}

// NewSink returns a new Sink with the options applied.
func NewSink(opts ...SinkOption) (*Sink, error) {
	s := &Sink{}
	for _, opt := range opts {
		opt(s)
	}
	if s.bucket == "" {
		return nil, errors.New("no bucket given")
	}
	if s.s3 == nil {
		sess, err := session.NewSession(&aws.Config{
			Region: aws.String(s.region)},
		)
		if err != nil {
			return nil, errors.Wrap(err, "getting new session")
		}
		s.s3 = s3.New(sess)
	}
	return s, nil
}

// Key returns the object key for an item.
func (s *Sink) Key(item *pds4kit.Item) (string, error) {
	p := item.OutputPath
	if s.root != "" {
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return "", errors.Wrapf(err, "keying %s", p)
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", errors.Errorf("%s is not below %s", p, s.root)
		}
		p = rel
	}
	key := strings.TrimLeft(filepath.ToSlash(p), "/")
	if s.prefix != "" {
		key = path.Join(s.prefix, key)
	}
	return key, nil
}

// Exists implements pds4kit.Sink.
func (s *Sink) Exists(item *pds4kit.Item) (bool, error) {
	key, err := s.Key(item)
	if err != nil {
		return false, err
	}
	_, err = s.s3.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if rf, ok := err.(awserr.RequestFailure); ok && rf.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	return false, errors.Wrapf(err, "checking for %v", key)
}

// Write implements pds4kit.Sink.
func (s *Sink) Write(item *pds4kit.Item, data []byte) error {
	key, err := s.Key(item)
	if err != nil {
		return err
	}
	_, err = s.s3.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/xml"),
	})
	return errors.Wrapf(err, "putting %v", key)
}
