/*
Copyright © 2019 the picamr authors.
This file is part of picamr.

picamr is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

picamr is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with picamr.  If not, see <http://www.gnu.org/licenses/>.
*/

package cloud

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"gocloud.dev/blob/memblob"
)

func TestBlobRoundTrip(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	want := []byte("step = 3\n")
	if err := WriteBlob(ctx, bucket, "chk/header.toml", want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadBlob(ctx, bucket, "chk/header.toml")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("read %q, want %q", got, want)
	}
}

func TestReadMissing(t *testing.T) {
	MaxRetries = 1
	defer func() { MaxRetries = 5 }()
	if _, err := ReadBlob(context.Background(), memblob.OpenBucket(nil), "nope"); err == nil {
		t.Error("reading a missing blob should fail")
	}
}

func TestOpenBucket(t *testing.T) {
	ctx := context.Background()
	dir, err := ioutil.TempDir("", "picamr_cloud")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	bucket, err := OpenBucket(ctx, "file://"+filepath.ToSlash(filepath.Join(dir, "checkpoints")))
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteBlob(ctx, bucket, "a", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "checkpoints", "a")); err != nil {
		t.Errorf("blob not written to disk: %v", err)
	}
	if _, err := OpenBucket(ctx, "mem://"); err != nil {
		t.Error(err)
	}
	if _, err := OpenBucket(ctx, "ftp://x"); err == nil {
		t.Error("invalid provider should fail")
	}
}
