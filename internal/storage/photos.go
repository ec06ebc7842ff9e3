package storage

import (
	"context"

	cmap "github.com/orcaman/concurrent-map/v2"
)

type photo struct {
	data        []byte
	contentType string
}

// MemoryPhotos is an in-process photo archive used when MinIO is not configured.
type MemoryPhotos struct {
	objects cmap.ConcurrentMap[string, photo]
}

func NewMemoryPhotos() *MemoryPhotos {
	return &MemoryPhotos{objects: cmap.New[photo]()}
}

func (p *MemoryPhotos) PutPhoto(_ context.Context, key string, data []byte, contentType string) error {
	p.objects.Set(key, photo{data: append([]byte(nil), data...), contentType: contentType})
	return nil
}

func (p *MemoryPhotos) GetPhoto(_ context.Context, key string) ([]byte, string, error) {
	ph, ok := p.objects.Get(key)
	if !ok {
		return nil, "", ErrObjectNotFound
	}
	return append([]byte(nil), ph.data...), ph.contentType, nil
}

func (p *MemoryPhotos) DeletePhoto(_ context.Context, key string) error {
	p.objects.Remove(key)
	return nil
}

func (p *MemoryPhotos) Ping(context.Context) error { return nil }
