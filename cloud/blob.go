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
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
)

// MaxRetries is the number of times a failed blob operation is retried.
var MaxRetries uint64 = 5

// retry calls f with exponential backoff until it succeeds, ctx is
// done or MaxRetries is exhausted.
func retry(ctx context.Context, what string, f func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), MaxRetries), ctx)
	return backoff.RetryNotify(f, b, func(err error, d time.Duration) {
		logrus.WithField("blob", what).Warnf("%v: retrying in %v", err, d)
	})
}

// ReadBlob reads the given blob from the given bucket.
func ReadBlob(ctx context.Context, bucket *blob.Bucket, key string) ([]byte, error) {
	var data []byte
	err := retry(ctx, key, func() error {
		var b bytes.Buffer
		r, err := bucket.NewReader(ctx, key, nil)
		if err != nil {
			return fmt.Errorf("cloud: reading blob %s: %v", key, err)
		}
		defer r.Close()
		if _, err = io.Copy(&b, r); err != nil {
			return fmt.Errorf("cloud: reading blob %s: %v", key, err)
		}
		data = b.Bytes()
		return nil
	})
	return data, err
}

// WriteBlob writes the given data to the given bucket.
func WriteBlob(ctx context.Context, bucket *blob.Bucket, key string, data []byte) error {
	return retry(ctx, key, func() error {
		w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
		if err != nil {
			return fmt.Errorf("cloud: creating writer for blob %s: %v", key, err)
		}
		if _, err = io.Copy(w, bytes.NewReader(data)); err != nil {
			w.Close()
			return fmt.Errorf("cloud: copying blob %s: %v", key, err)
		}
		if err = w.Close(); err != nil {
			return fmt.Errorf("cloud: writing blob %s: %v", key, err)
		}
		return nil
	})
}
