package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"

	"storecanvas/core"
)

// objectStore keeps uploaded objects in memory and hands out data: URLs, so
// exports stay viewable without any file server.
type objectStore struct {
	mu      sync.RWMutex
	objects map[string]object
}

type object struct {
	data        []byte
	contentType string
}

func NewStore() *objectStore {
	return &objectStore{objects: make(map[string]object)}
}

func (s *objectStore) Put(ctx context.Context, data []byte, contentType string) (*core.StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := ulid.Make().String() + core.ExtensionFor(contentType)

	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.objects[key] = object{data: buf, contentType: contentType}
	s.mu.Unlock()

	return &core.StoredObject{Key: key, URL: core.DataURL(contentType, buf)}, nil
}

func (s *objectStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; !ok {
		return fmt.Errorf("%w: object %s", core.ErrNotFound, key)
	}
	delete(s.objects, key)
	return nil
}

// Get returns a stored object's bytes and content type.
func (s *objectStore) Get(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.objects[key]
	return o.data, o.contentType, ok
}

func (s *objectStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
