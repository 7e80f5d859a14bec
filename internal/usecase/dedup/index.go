package dedup

import (
	"sort"
	"time"

	"social-pipeline/internal/domain"
)

const bucketSize = time.Hour

// index хранит отпечатки и вторичные индексы над ними.
// Все изменения идут через insert/remove, поэтому индексы не расходятся с основным хранилищем.
// Порядок order совпадает с порядком вставки и возрастанием CreatedAt.
type index struct {
	byID     map[string]Fingerprint
	byNative map[string]string
	byHash   map[string][]string
	byBucket map[int64][]string
	order    []string
}

func newIndex() *index {
	return &index{
		byID:     make(map[string]Fingerprint),
		byNative: make(map[string]string),
		byHash:   make(map[string][]string),
		byBucket: make(map[int64][]string),
	}
}

func bucketOf(ts time.Time) int64 {
	return ts.UnixNano() / int64(bucketSize)
}

func (ix *index) len() int {
	return len(ix.byID)
}

func (ix *index) insert(fp Fingerprint) {
	ix.byID[fp.ID] = fp
	ix.byNative[nativeKey(fp.Platform, fp.NativeID)] = fp.ID
	ix.byHash[fp.ContentHash] = append(ix.byHash[fp.ContentHash], fp.ID)
	bucket := bucketOf(fp.Timestamp)
	ix.byBucket[bucket] = append(ix.byBucket[bucket], fp.ID)
	ix.order = append(ix.order, fp.ID)
}

func (ix *index) remove(id string) {
	fp, ok := ix.byID[id]
	if !ok {
		return
	}
	delete(ix.byID, id)

	key := nativeKey(fp.Platform, fp.NativeID)
	if ix.byNative[key] == id {
		delete(ix.byNative, key)
	}
	if ids := without(ix.byHash[fp.ContentHash], id); len(ids) > 0 {
		ix.byHash[fp.ContentHash] = ids
	} else {
		delete(ix.byHash, fp.ContentHash)
	}
	bucket := bucketOf(fp.Timestamp)
	if ids := without(ix.byBucket[bucket], id); len(ids) > 0 {
		ix.byBucket[bucket] = ids
	} else {
		delete(ix.byBucket, bucket)
	}
}

// evictOlderThan удаляет отпечатки, созданные раньше cutoff.
func (ix *index) evictOlderThan(cutoff time.Time) int {
	removed := 0
	for len(ix.order) > 0 {
		id := ix.order[0]
		fp, ok := ix.byID[id]
		if ok && !fp.CreatedAt.Before(cutoff) {
			break
		}
		ix.order = ix.order[1:]
		if ok {
			ix.remove(id)
			removed++
		}
	}
	return removed
}

// evictOldest удаляет самые старые отпечатки, пока размер больше limit.
func (ix *index) evictOldest(limit int) int {
	removed := 0
	for ix.len() > limit && len(ix.order) > 0 {
		id := ix.order[0]
		ix.order = ix.order[1:]
		if _, ok := ix.byID[id]; ok {
			ix.remove(id)
			removed++
		}
	}
	return removed
}

func (ix *index) byNativeKey(platform domain.Platform, nativeID string) (Fingerprint, bool) {
	id, ok := ix.byNative[nativeKey(platform, nativeID)]
	if !ok {
		return Fingerprint{}, false
	}
	fp, ok := ix.byID[id]
	return fp, ok
}

// OldestByContentHash возвращает самый ранний отпечаток с таким хешем.
func (ix *index) OldestByContentHash(hash string) (Fingerprint, bool) {
	ids := ix.byHash[hash]
	if len(ids) == 0 {
		return Fingerprint{}, false
	}
	fp, ok := ix.byID[ids[0]]
	return fp, ok
}

// Window возвращает отпечатки с временем события в [from, to].
// Пустая платформа означает любую платформу.
func (ix *index) Window(platform domain.Platform, from, to time.Time) []Fingerprint {
	var out []Fingerprint
	first, last := bucketOf(from), bucketOf(to)
	buckets := make([]int64, 0, 4)
	if last-first+1 > int64(len(ix.byBucket)) {
		for bucket := range ix.byBucket {
			if bucket >= first && bucket <= last {
				buckets = append(buckets, bucket)
			}
		}
		sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })
	} else {
		for bucket := first; bucket <= last; bucket++ {
			buckets = append(buckets, bucket)
		}
	}
	for _, bucket := range buckets {
		for _, id := range ix.byBucket[bucket] {
			fp, ok := ix.byID[id]
			if !ok {
				continue
			}
			if platform != "" && fp.Platform != platform {
				continue
			}
			if fp.Timestamp.Before(from) || fp.Timestamp.After(to) {
				continue
			}
			out = append(out, fp)
		}
	}
	return out
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
