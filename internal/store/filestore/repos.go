package filestore

import (
	"context"
	"sort"
	"time"

	"github.com/m3rciful/kinobot/internal/store"
)

type adminRepo struct{ s *Store }

func (r adminRepo) List(_ context.Context) ([]int64, error) {
	var out []int64
	r.s.admins.read(func(doc adminDocument) {
		out = append([]int64(nil), doc.AdminIDs...)
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (r adminRepo) Contains(_ context.Context, id int64) (bool, error) {
	found := false
	r.s.admins.read(func(doc adminDocument) {
		found = indexOf(doc.AdminIDs, id) >= 0
	})
	return found, nil
}

func (r adminRepo) Add(ctx context.Context, id int64) (bool, error) {
	added := false
	err := r.s.admins.mutate(ctx, func(doc *adminDocument) (bool, error) {
		if id <= 0 || indexOf(doc.AdminIDs, id) >= 0 {
			return false, nil
		}
		doc.AdminIDs = append(doc.AdminIDs, id)
		sort.Slice(doc.AdminIDs, func(i, j int) bool { return doc.AdminIDs[i] < doc.AdminIDs[j] })
		doc.LastUpdated = r.s.now().Format(adminTimeLayout)
		added = true
		return true, nil
	})
	return added && err == nil, err
}

func (r adminRepo) Remove(ctx context.Context, id int64) (bool, error) {
	removed := false
	err := r.s.admins.mutate(ctx, func(doc *adminDocument) (bool, error) {
		if id == r.s.owner {
			return false, nil
		}
		i := indexOf(doc.AdminIDs, id)
		if i < 0 {
			return false, nil
		}
		doc.AdminIDs = append(doc.AdminIDs[:i:i], doc.AdminIDs[i+1:]...)
		doc.LastUpdated = r.s.now().Format(adminTimeLayout)
		removed = true
		return true, nil
	})
	return removed && err == nil, err
}

func indexOf(ids []int64, id int64) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

type mediaRepo struct {
	c *collection[map[string]store.MediaRecord]
}

func (r mediaRepo) Put(ctx context.Context, rec store.MediaRecord) error {
	return r.c.mutate(ctx, func(m *map[string]store.MediaRecord) (bool, error) {
		(*m)[rec.Code] = rec
		return true, nil
	})
}

func (r mediaRepo) Get(_ context.Context, code string) (store.MediaRecord, error) {
	var (
		rec store.MediaRecord
		ok  bool
	)
	r.c.read(func(m map[string]store.MediaRecord) { rec, ok = m[code] })
	if !ok {
		return store.MediaRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (r mediaRepo) Delete(ctx context.Context, code string) (store.MediaRecord, error) {
	var removed store.MediaRecord
	err := r.c.mutate(ctx, func(m *map[string]store.MediaRecord) (bool, error) {
		rec, ok := (*m)[code]
		if !ok {
			return false, store.ErrNotFound
		}
		delete(*m, code)
		removed = rec
		return true, nil
	})
	if err != nil {
		return store.MediaRecord{}, err
	}
	return removed, nil
}

func (r mediaRepo) List(_ context.Context) ([]store.MediaRecord, error) {
	out := r.snapshot()
	store.SortMedia(out)
	return out, nil
}

func (r mediaRepo) IncrementDownloads(ctx context.Context, code string) (store.MediaRecord, error) {
	var updated store.MediaRecord
	err := r.c.mutate(ctx, func(m *map[string]store.MediaRecord) (bool, error) {
		rec, ok := (*m)[code]
		if !ok {
			return false, store.ErrNotFound
		}
		rec.DownloadCount++
		(*m)[code] = rec
		updated = rec
		return true, nil
	})
	if err != nil {
		return store.MediaRecord{}, err
	}
	return updated, nil
}

func (r mediaRepo) Count(_ context.Context) (int, error) {
	n := 0
	r.c.read(func(m map[string]store.MediaRecord) { n = len(m) })
	return n, nil
}

func (r mediaRepo) TotalDownloads(_ context.Context) (int64, error) {
	var total int64
	r.c.read(func(m map[string]store.MediaRecord) {
		for _, rec := range m {
			total += rec.DownloadCount
		}
	})
	return total, nil
}

func (r mediaRepo) Top(_ context.Context, n int) ([]store.MediaRecord, error) {
	out := r.snapshot()
	store.SortByDownloads(out)
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (r mediaRepo) snapshot() []store.MediaRecord {
	var out []store.MediaRecord
	r.c.read(func(m map[string]store.MediaRecord) {
		out = make([]store.MediaRecord, 0, len(m))
		for _, rec := range m {
			out = append(out, rec)
		}
	})
	return out
}

type channelRepo struct {
	c *collection[map[string]store.ChannelRecord]
}

func (r channelRepo) Put(ctx context.Context, rec store.ChannelRecord) error {
	return r.c.mutate(ctx, func(m *map[string]store.ChannelRecord) (bool, error) {
		(*m)[rec.ID] = rec
		return true, nil
	})
}

func (r channelRepo) Get(_ context.Context, id string) (store.ChannelRecord, error) {
	var (
		rec store.ChannelRecord
		ok  bool
	)
	r.c.read(func(m map[string]store.ChannelRecord) { rec, ok = m[id] })
	if !ok {
		return store.ChannelRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (r channelRepo) Delete(ctx context.Context, id string) (store.ChannelRecord, error) {
	var removed store.ChannelRecord
	err := r.c.mutate(ctx, func(m *map[string]store.ChannelRecord) (bool, error) {
		rec, ok := (*m)[id]
		if !ok {
			return false, store.ErrNotFound
		}
		delete(*m, id)
		removed = rec
		return true, nil
	})
	if err != nil {
		return store.ChannelRecord{}, err
	}
	return removed, nil
}

func (r channelRepo) List(_ context.Context) ([]store.ChannelRecord, error) {
	var out []store.ChannelRecord
	r.c.read(func(m map[string]store.ChannelRecord) {
		out = make([]store.ChannelRecord, 0, len(m))
		for _, rec := range m {
			out = append(out, rec)
		}
	})
	store.SortChannels(out)
	return out, nil
}

type userRepo struct {
	c *collection[map[int64]store.UserRecord]
}

func (r userRepo) Touch(ctx context.Context, id int64, at time.Time) (bool, error) {
	created := false
	err := r.c.mutate(ctx, func(m *map[int64]store.UserRecord) (bool, error) {
		rec, ok := (*m)[id]
		if !ok {
			rec = store.UserRecord{ID: id, JoinedAt: at}
			created = true
		}
		rec.LastActivityAt = at
		(*m)[id] = rec
		return true, nil
	})
	return created && err == nil, err
}

func (r userRepo) Get(_ context.Context, id int64) (store.UserRecord, error) {
	var (
		rec store.UserRecord
		ok  bool
	)
	r.c.read(func(m map[int64]store.UserRecord) { rec, ok = m[id] })
	if !ok {
		return store.UserRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (r userRepo) IncrementDownloads(ctx context.Context, id int64) error {
	return r.c.mutate(ctx, func(m *map[int64]store.UserRecord) (bool, error) {
		rec, ok := (*m)[id]
		if !ok {
			return false, store.ErrNotFound
		}
		rec.DownloadsCount++
		(*m)[id] = rec
		return true, nil
	})
}

func (r userRepo) SetSubscribed(ctx context.Context, id int64, subscribed bool) error {
	return r.c.mutate(ctx, func(m *map[int64]store.UserRecord) (bool, error) {
		rec, ok := (*m)[id]
		if !ok {
			return false, store.ErrNotFound
		}
		if rec.IsSubscribed == subscribed {
			return false, nil
		}
		rec.IsSubscribed = subscribed
		(*m)[id] = rec
		return true, nil
	})
}

func (r userRepo) Count(_ context.Context) (int, error) {
	n := 0
	r.c.read(func(m map[int64]store.UserRecord) { n = len(m) })
	return n, nil
}
