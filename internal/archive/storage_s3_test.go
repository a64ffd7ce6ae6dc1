package archive

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"cafe-pos/internal/backup"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 understands the handful of path-style S3 calls the provider makes
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	if bucket != f.bucket {
		writeS3Error(w, http.StatusNotFound, "NoSuchBucket")
		return
	}

	switch {
	case r.Method == http.MethodPut && key != "":
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		w.Header().Set("ETag", `"etag"`)
	case r.Method == http.MethodGet && key != "":
		body, ok := f.objects[key]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		_, _ = w.Write(body)
	case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		f.list(w, r.URL.Query().Get("prefix"))
	case r.Method == http.MethodPost && r.URL.Query().Has("delete"):
		var req struct {
			Objects []struct {
				Key string `xml:"Key"`
			} `xml:"Object"`
		}
		if err := xml.NewDecoder(r.Body).Decode(&req); err != nil {
			writeS3Error(w, http.StatusBadRequest, "MalformedXML")
			return
		}
		for _, o := range req.Objects {
			delete(f.objects, o.Key)
		}
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><DeleteResult></DeleteResult>`))
	case r.Method == http.MethodHead && key == "":
		w.WriteHeader(http.StatusOK)
	default:
		writeS3Error(w, http.StatusNotImplemented, "NotImplemented")
	}
}

func (f *fakeS3) list(w http.ResponseWriter, prefix string) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	fmt.Fprintf(&b, "<Name>%s</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><IsTruncated>false</IsTruncated>", f.bucket, prefix, len(keys))
	for _, k := range keys {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size></Contents>", k, len(f.objects[k]))
	}
	b.WriteString("</ListBucketResult>")
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(b.String()))
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message></Error>`, code, code)
}

func newFakeS3Provider(t *testing.T) (*S3Provider, *fakeS3) {
	t.Helper()
	fake := &fakeS3{bucket: "cafe-archives", objects: map[string][]byte{}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	p, err := NewS3Provider(&S3Config{
		Bucket:    fake.bucket,
		Region:    "us-east-1",
		AccessKey: "test-access-key",
		SecretKey: "test-secret-key",
		Prefix:    "pos",
		Endpoint:  server.URL,
	})
	require.NoError(t, err)
	return p, fake
}

func TestNewS3Provider_Validation(t *testing.T) {
	_, err := NewS3Provider(nil)
	assert.Error(t, err)

	_, err = NewS3Provider(&S3Config{Bucket: "b"})
	require.Error(t, err)
	assert.True(t, backup.IsValidationError(err))
}

func TestS3Provider_Lifecycle(t *testing.T) {
	ctx := context.Background()
	p, fake := newFakeS3Provider(t)
	now := time.Now().UTC()

	a := testArchive("20240101T000000Z-aaaa", now, []byte("compressed-bytes"))
	require.NoError(t, p.Store(ctx, a))
	assert.Equal(t, "s3://cafe-archives/pos/20240101T000000Z-aaaa", a.Metadata.StorageLocation)
	assert.Contains(t, fake.objects, "pos/20240101T000000Z-aaaa/archive.bin")
	assert.Contains(t, fake.objects, "pos/20240101T000000Z-aaaa/metadata.json")

	require.NoError(t, p.Store(ctx, testArchive("20240102T000000Z-bbbb", now, []byte("other"))))

	got, err := p.Retrieve(ctx, "20240101T000000Z-aaaa")
	require.NoError(t, err)
	assert.Equal(t, []byte("compressed-bytes"), got.Data)
	assert.NoError(t, got.Verify())

	list, err := p.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"20240101T000000Z-aaaa", "20240102T000000Z-bbbb"}, ids(list))

	require.NoError(t, p.Delete(ctx, "20240101T000000Z-aaaa"))
	_, err = p.GetMetadata(ctx, "20240101T000000Z-aaaa")
	require.Error(t, err)
	assert.True(t, backup.IsNotFoundError(err))

	err = p.Delete(ctx, "20240101T000000Z-aaaa")
	assert.True(t, backup.IsNotFoundError(err))

	assert.NoError(t, p.HealthCheck(ctx))
}

func TestObjectKeyHelpers(t *testing.T) {
	assert.Equal(t, "archives/", normalizePrefix(""))
	assert.Equal(t, "pos/", normalizePrefix("pos"))
	assert.Equal(t, "pos/", normalizePrefix("pos/"))

	assert.Equal(t, "pos/x/metadata.json", objectKey("pos/", "x", metadataObject))
	assert.Equal(t, "x", idFromMetadataKey("pos/", "pos/x/metadata.json"))
	assert.Equal(t, "", idFromMetadataKey("pos/", "pos/x/archive.bin"))
	assert.Equal(t, "", idFromMetadataKey("pos/", "other/x/metadata.json"))
	assert.Equal(t, "", idFromMetadataKey("pos/", "pos/x/y/metadata.json"))
}
