package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"sort"
	"testing"

	"github.com/brim-format/brim-go/zarr"
)

// -----------------------------------------------------------------------------
// Unit tests for the S3 store
// These use the mock client and don't require real S3/LocalStack/MinIO.
// -----------------------------------------------------------------------------

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(nil, Config{Bucket: "test"})
	if err == nil {
		t.Error("expected error for nil client")
	}
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(NewMockS3Client(), Config{})
	if err == nil {
		t.Error("expected error for empty bucket")
	}
}

func TestNew_PrefixNormalization(t *testing.T) {
	tests := []struct {
		prefix   string
		expected string
	}{
		{"", ""},
		{"foo", "foo/"},
		{"foo/", "foo/"},
		{"foo/bar", "foo/bar/"},
	}

	for _, tt := range tests {
		store, err := New(NewMockS3Client(), Config{Bucket: "test", Prefix: tt.prefix})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if store.prefix != tt.expected {
			t.Errorf("prefix %q: expected %q, got %q", tt.prefix, tt.expected, store.prefix)
		}
	}
}

// -----------------------------------------------------------------------------
// Object operations
// -----------------------------------------------------------------------------

func TestStore_PutGet_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	if err := store.Put(ctx, "data/.zgroup", bytes.NewReader([]byte(`{"zarr_format":2}`))); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	rc, err := store.Get(ctx, "data/.zgroup")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"zarr_format":2}` {
		t.Errorf("unexpected content: %q", data)
	}
}

func TestStore_Put_Replaces(t *testing.T) {
	ctx := context.Background()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	if err := store.Put(ctx, "k", bytes.NewReader([]byte("v1"))); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, "k", bytes.NewReader([]byte("v2"))); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	rc, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "v2" {
		t.Errorf("expected replaced content, got %q", data)
	}
}

func TestStore_Get_ErrNotFound(t *testing.T) {
	ctx := context.Background()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	_, err := store.Get(ctx, "missing")
	if !errors.Is(err, zarr.ErrNotFound) {
		t.Errorf("expected zarr.ErrNotFound, got: %v", err)
	}
}

func TestStore_Exists(t *testing.T) {
	ctx := context.Background()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	ok, err := store.Exists(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("Exists reported a missing key as present")
	}

	if err := store.Put(ctx, "k", bytes.NewReader([]byte("v"))); err != nil {
		t.Fatal(err)
	}
	ok, err = store.Exists(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("Exists missed a present key")
	}
}

func TestStore_List_StripsStorePrefix(t *testing.T) {
	ctx := context.Background()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test", Prefix: "experiments/run1"})

	for _, key := range []string{"a/.zgroup", "a/b/.zarray", "c"} {
		if err := store.Put(ctx, key, bytes.NewReader([]byte("x"))); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := store.List(ctx, "a/")
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(keys)
	want := []string{"a/.zgroup", "a/b/.zarray"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("List returned %v, want %v", keys, want)
	}
}

func TestStore_Put_RejectsEscapingKey(t *testing.T) {
	ctx := context.Background()
	store, _ := New(NewMockS3Client(), Config{Bucket: "test"})

	for _, key := range []string{"", "..", "../escape"} {
		if err := store.Put(ctx, key, bytes.NewReader([]byte("x"))); err == nil {
			t.Errorf("Put(%q) should have failed", key)
		}
	}
}

// -----------------------------------------------------------------------------
// Hierarchy over S3
// -----------------------------------------------------------------------------

func TestHierarchy_OverMockS3(t *testing.T) {
	ctx := context.Background()
	client := NewMockS3Client()
	store, err := New(client, Config{Bucket: "test", Prefix: "files/demo.brim"})
	if err != nil {
		t.Fatal(err)
	}

	h, err := zarr.Create(ctx, store)
	if err != nil {
		t.Fatal(err)
	}
	arr, err := h.Root().CreateArray(ctx, "freq", []int{4}, zarr.Float64)
	if err != nil {
		t.Fatal(err)
	}
	vals := []float64{1.5, 2.5, 3.5, 4.5}
	if err := arr.WriteFloat64(ctx, vals); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(ctx); err != nil {
		t.Fatal(err)
	}

	reopened, err := zarr.Open(ctx, store, zarr.ReadOnly())
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close(ctx)

	back, err := reopened.Root().Array(ctx, "freq")
	if err != nil {
		t.Fatal(err)
	}
	got, err := back.Float64(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, vals) {
		t.Errorf("read back %v, want %v", got, vals)
	}
}
