package whisper

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3Request struct {
	method, path, contentType string
	body                      []byte
}

func newTestS3(t *testing.T) (*S3Store, *[]s3Request) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []s3Request
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, s3Request{method: r.Method, path: r.URL.Path, contentType: r.Header.Get("Content-Type"), body: b})
		mu.Unlock()
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(srv.URL),
		UsePathStyle: true,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "AKID", SecretAccessKey: "SECRET"}, nil
		}),
	})
	store := NewS3StoreFromClient(client, S3Options{Bucket: "whispers", Prefix: "/prod/", PresignTTL: 5 * time.Minute})
	return store, &seen
}

func TestS3Store_PutAndDelete(t *testing.T) {
	store, seen := newTestS3(t)
	ctx := context.Background()

	key := store.KeyFor("u1", "n1", "clip.mp3")
	if key != "prod/whispers/u1/n1/clip.mp3" {
		t.Fatalf("unexpected key %q", key)
	}
	if err := store.Put(ctx, key, "audio/mpeg", []byte("ID3")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if len(*seen) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(*seen))
	}
	put := (*seen)[0]
	if put.method != http.MethodPut || put.path != "/whispers/"+key || put.contentType != "audio/mpeg" {
		t.Fatalf("unexpected put %+v", put)
	}
	if (*seen)[1].method != http.MethodDelete {
		t.Fatalf("expected delete, got %s", (*seen)[1].method)
	}
}

func TestS3Store_PresignGet(t *testing.T) {
	store, seen := newTestS3(t)
	u, err := store.PresignGet(context.Background(), "prod/whispers/u1/n1/clip.mp3")
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(u, "/whispers/prod/whispers/u1/n1/clip.mp3") || !strings.Contains(u, "X-Amz-Signature=") {
		t.Fatalf("unexpected url %q", u)
	}
	if !strings.Contains(u, "X-Amz-Expires=300") {
		t.Fatalf("expected 5m expiry in %q", u)
	}
	if len(*seen) != 0 {
		t.Fatalf("presign must not hit the network")
	}
}
