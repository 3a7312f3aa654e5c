package artifacts

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSObjectStore keeps blobs in a JetStream object store bucket.
type NATSObjectStore struct {
	obs jetstream.ObjectStore
}

// NewNATSObjectStore creates the bucket if it does not exist.
func NewNATSObjectStore(ctx context.Context, nc *nats.Conn, bucket string) (*NATSObjectStore, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	obs, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "elevation profiles",
	})
	if err != nil {
		return nil, fmt.Errorf("object store %q: %w", bucket, err)
	}
	return &NATSObjectStore{obs: obs}, nil
}

func (s *NATSObjectStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.obs.PutBytes(ctx, key, data)
	return err
}

func (s *NATSObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.obs.GetBytes(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *NATSObjectStore) Delete(ctx context.Context, key string) error {
	err := s.obs.Delete(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil
	}
	return err
}
