package services

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bloglist/apiserver/internal/storage"
	"github.com/bloglist/apiserver/types"
)

const (
	snapshotContentType = "application/json"
	snapshotFilePrefix  = "blogs-"
	snapshotFileSuffix  = ".json"
)

// SnapshotStorage is the slice of object storage the exporter needs.
type SnapshotStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// Snapshot is the document written to object storage.
type Snapshot struct {
	TakenAt time.Time           `json:"taken_at"`
	Count   int                 `json:"count"`
	Blogs   []types.BlogListing `json:"blogs"`
}

// SnapshotService exports the ordered listing to object storage.
type SnapshotService struct {
	listing *ListingService
	storage SnapshotStorage
	prefix  string
	now     func() time.Time
}

func NewSnapshotService(listing *ListingService, objects SnapshotStorage, prefix string) *SnapshotService {
	return &SnapshotService{
		listing: listing,
		storage: objects,
		prefix:  prefix,
		now:     time.Now,
	}
}

// Export writes the current listing and returns the object key it used.
func (s *SnapshotService) Export(ctx context.Context) (string, error) {
	listings, err := s.listing.ListOrderedByLikes(ctx)
	if err != nil {
		return "", err
	}

	takenAt := s.now().UTC()
	data, err := json.Marshal(Snapshot{TakenAt: takenAt, Count: len(listings), Blogs: listings})
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	if err := s.storage.EnsureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}

	key := path.Join(s.prefix, snapshotFilePrefix+strconv.FormatInt(takenAt.UnixMilli(), 10)+snapshotFileSuffix)
	if err := s.storage.Put(ctx, key, bytes.NewReader(data), int64(len(data)), snapshotContentType); err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	return key, nil
}

// Prune deletes all but the newest keep snapshots and returns the deleted
// keys. Objects under the prefix that are not snapshots are left alone.
func (s *SnapshotService) Prune(ctx context.Context, keep int) ([]string, error) {
	if keep < 1 {
		return nil, fmt.Errorf("%w: keep must be at least 1, got %d", ErrInvalidInput, keep)
	}

	objects, err := s.storage.List(ctx, s.prefix+"/")
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	type snapshotKey struct {
		key     string
		takenAt int64
	}
	var snapshots []snapshotKey
	for _, obj := range objects {
		if takenAt, ok := snapshotTime(obj.Key); ok {
			snapshots = append(snapshots, snapshotKey{key: obj.Key, takenAt: takenAt})
		}
	}
	if len(snapshots) <= keep {
		return nil, nil
	}

	slices.SortFunc(snapshots, func(a, b snapshotKey) int {
		return cmp.Compare(b.takenAt, a.takenAt)
	})

	var deleted []string
	for _, snapshot := range snapshots[keep:] {
		if err := s.storage.Delete(ctx, snapshot.key); err != nil {
			return deleted, fmt.Errorf("delete %s: %w", snapshot.key, err)
		}
		deleted = append(deleted, snapshot.key)
	}
	return deleted, nil
}

// snapshotTime extracts the unix millisecond timestamp from a snapshot key.
func snapshotTime(key string) (int64, bool) {
	name := path.Base(key)
	if !strings.HasPrefix(name, snapshotFilePrefix) || !strings.HasSuffix(name, snapshotFileSuffix) {
		return 0, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, snapshotFilePrefix), snapshotFileSuffix)
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return unix, true
}
