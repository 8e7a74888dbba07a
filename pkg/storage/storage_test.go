package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-process S3API.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = data
	f.puts++
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func drivers(t *testing.T) map[string]Storage {
	t.Helper()
	file, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	db, err := OpenBadger(BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	out := map[string]Storage{
		"memory": NewMemory(),
		"file":   file,
		"badger": db,
		"s3":     NewS3(newFakeS3(), "bucket", "teddy/"),
	}
	t.Cleanup(func() {
		for _, s := range out {
			s.Close()
		}
	})
	return out
}

func TestStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			key := "teddy:space:store"

			data, err := s.Load(ctx, key)
			if err != nil || data != nil {
				t.Fatalf("expected (nil, nil) for a missing key, got (%q, %v)", data, err)
			}

			if err := s.Save(ctx, key, []byte(`{"a":1}`)); err != nil {
				t.Fatalf("save: %v", err)
			}
			data, err = s.Load(ctx, key)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if string(data) != `{"a":1}` {
				t.Errorf("expected {\"a\":1}, got %q", data)
			}

			if err := s.Save(ctx, key, []byte(`{"a":2}`)); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			data, _ = s.Load(ctx, key)
			if string(data) != `{"a":2}` {
				t.Errorf("expected overwritten value, got %q", data)
			}

			if err := s.Delete(ctx, key); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if data, _ := s.Load(ctx, key); data != nil {
				t.Errorf("expected nil after delete, got %q", data)
			}
			if err := s.Delete(ctx, key); err != nil {
				t.Errorf("deleting a missing key should not fail, got %v", err)
			}
		})
	}
}

func TestMemoryCopiesValues(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	in := []byte("abc")
	m.Save(ctx, "k", in)
	in[0] = 'x'

	out, _ := m.Load(ctx, "k")
	if string(out) != "abc" {
		t.Errorf("expected abc, got %q", out)
	}
	out[0] = 'y'
	again, _ := m.Load(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("expected abc, got %q", again)
	}
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemory()
	m.Close()
	if _, err := m.Load(context.Background(), "k"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := m.Save(context.Background(), "k", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestMemoryWatch(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 4)
	if err := m.Watch(ctx, func(key string) { got <- key }); err != nil {
		t.Fatalf("watch: %v", err)
	}
	m.Save(context.Background(), "a", []byte("1"))

	select {
	case key := <-got:
		if key != "a" {
			t.Errorf("expected a, got %q", key)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
}

func TestFileKeys(t *testing.T) {
	f, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	defer f.Close()
	ctx := context.Background()
	f.Save(ctx, "teddy:a:b", []byte("{}"))
	f.Save(ctx, "teddy:c:d", []byte("{}"))
	os.WriteFile(f.Dir()+"/.ignored.tmp", []byte("x"), 0o644)

	keys, err := f.Keys()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "teddy:a:b" || keys[1] != "teddy:c:d" {
		t.Errorf("expected [teddy:a:b teddy:c:d], got %v", keys)
	}
}

func TestFileWatch(t *testing.T) {
	f, err := NewFile(t.TempDir(), WithFileDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	defer f.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 16)
	if err := f.Watch(ctx, func(key string) { got <- key }); err != nil {
		t.Fatalf("watch: %v", err)
	}

	other, _ := NewFile(f.Dir())
	if err := other.Save(context.Background(), "teddy:s:n", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("save: %v", err)
	}

	select {
	case key := <-got:
		if key != "teddy:s:n" {
			t.Errorf("expected teddy:s:n, got %q", key)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for file change")
	}
}

func TestBadgerKeys(t *testing.T) {
	db, err := OpenBadger(BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	defer db.Close()
	ctx := context.Background()
	db.Save(ctx, "teddy:a:1", []byte("1"))
	db.Save(ctx, "teddy:a:2", []byte("2"))
	db.Save(ctx, "other", []byte("3"))

	keys, err := db.Keys("teddy:")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("expected 2 keys, got %v", keys)
	}
}

func TestBadgerRequiresPath(t *testing.T) {
	if _, err := OpenBadger(BadgerConfig{}); err == nil {
		t.Error("expected error without a path")
	}
}

func TestS3Prefix(t *testing.T) {
	fake := newFakeS3()
	s := NewS3(fake, "bucket", "teddy/")
	s.Save(context.Background(), "k", []byte("v"))
	if _, ok := fake.objects["bucket/teddy/k"]; !ok {
		t.Errorf("expected object under prefix, got %v", fake.objects)
	}
}

func TestNewS3Client(t *testing.T) {
	c := NewS3Client(S3Config{Region: "us-east-1", Endpoint: "http://localhost:9000", PathStyle: true})
	if c == nil {
		t.Fatal("expected client")
	}
	if got := c.Options().Region; got != "us-east-1" {
		t.Errorf("expected us-east-1, got %q", got)
	}
}
