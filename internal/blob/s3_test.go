package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 answers the path-style HEAD, PUT and ListObjectsV2 requests the
// driver sends, keeping objects in memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, key, _ := strings.Cut(strings.TrimPrefix(req.URL.Path, "/"), "/")
	respond := func(status int, body string, header http.Header) *http.Response {
		if header == nil {
			header = http.Header{}
		}
		return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: header, Request: req}
	}

	switch {
	case req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2":
		prefix := req.URL.Query().Get("prefix")
		var keys []string
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2026-01-01T00:00:00Z</LastModified></Contents>", k, len(f.objects[k]))
		}
		b.WriteString("</ListBucketResult>")
		return respond(http.StatusOK, b.String(), http.Header{"Content-Type": {"application/xml"}}), nil
	case req.Method == http.MethodHead:
		if body, ok := f.objects[key]; ok {
			return respond(http.StatusOK, "", http.Header{"Content-Length": {fmt.Sprint(len(body))}}), nil
		}
		return respond(http.StatusNotFound, "", nil), nil
	case req.Method == http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		f.objects[key] = bytes.TrimSpace(body)
		return respond(http.StatusOK, "", http.Header{"ETag": {`"etag"`}}), nil
	}
	return respond(http.StatusNotImplemented, "", nil), nil
}

func newTestS3(t *testing.T) (*S3, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string][]byte{}}
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	require.NoError(t, err)
	s := NewS3FromConfig(awsCfg, S3Config{Bucket: "reports", Endpoint: "https://s3.test.local", PathStyle: true},
		func(o *s3.Options) { o.HTTPClient = &http.Client{Transport: fake} })
	return s, fake
}

func TestS3_PutAndList(t *testing.T) {
	s, fake := newTestS3(t)
	ctx := context.Background()

	info, err := s.Put(ctx, "manifests/WH1/r.csv", bytes.NewReader([]byte("A1")), PutOptions{ContentType: "text/csv"})
	require.NoError(t, err)
	assert.Equal(t, "manifests/WH1/r.csv", info.Key)
	assert.Contains(t, fake.objects, "manifests/WH1/r.csv")

	_, err = s.Put(ctx, "manifests/WH1/r.csv", bytes.NewReader([]byte("A1")), PutOptions{})
	assert.ErrorIs(t, err, ErrExists)

	list, err := s.List(ctx, "manifests/")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "manifests/WH1/r.csv", list[0].Key)
	assert.Equal(t, DriverS3, s.Driver())
}

func TestS3_PresignURL(t *testing.T) {
	s, _ := newTestS3(t)
	url, err := s.PresignURL(context.Background(), "manifests/WH1/r.csv", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://s3.test.local/reports/manifests/WH1/r.csv?"), url)
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Contains(t, url, "X-Amz-Expires=600")
}
