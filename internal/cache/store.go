package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/catalog-edge/catalog-edge/internal/catalog"
)

// Freshness 是缓存条目按年龄划分的三态。
type Freshness int

const (
	// Fresh 表示条目可直接返回。
	Fresh Freshness = iota
	// Stale 表示条目仍可返回，但需要触发后台刷新。
	Stale
	// Expired 表示条目不可返回，读取时即被清除。
	Expired
)

// String 输出小写状态名，供日志与诊断接口使用。
func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case Expired:
		return "expired"
	}
	return "unknown"
}

const (
	// cleanupThreshold 控制触发清理的水位：达到容量的 90% 即开始。
	cleanupThreshold = 0.9
	// evictFraction 是分数淘汰阶段一次清掉的比例。
	evictFraction = 0.2
	// accessWeight 把访问次数折算进 recency 分数，单位为纳秒。
	accessWeight = int64(30 * time.Second)
)

// Options 由进程入口注入，每个实例独立持有 TTL 与容量参数。
type Options struct {
	FreshTTL   time.Duration
	StaleTTL   time.Duration
	MaxEntries int
}

// Store 以聚合键为索引保存抓取结果。所有读写走同一把锁，
// 保证多线程宿主下 put/evict 与并发读之间串行。
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	opts    Options
	now     func() time.Time
}

type entry struct {
	data        *catalog.Aggregate
	writtenAt   time.Time
	lastAccess  time.Time
	accessCount int64
}

// EntryInfo 是 Inspect 返回的单条只读视图。
type EntryInfo struct {
	Key         string `json:"key"`
	AgeMs       int64  `json:"age_ms"`
	AccessCount int64  `json:"access_count"`
	Freshness   string `json:"freshness"`
}

// Report 汇总缓存当前状态，仅用于诊断。
type Report struct {
	Size    int         `json:"size"`
	Entries []EntryInfo `json:"entries"`
}

// NewStore 构造缓存实例。非法参数回退到保守默认值，构造永不失败。
func NewStore(opts Options) *Store {
	if opts.FreshTTL <= 0 {
		opts.FreshTTL = 30 * time.Second
	}
	if opts.StaleTTL <= opts.FreshTTL {
		opts.StaleTTL = opts.FreshTTL * 4
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 1024
	}
	return &Store{
		entries: make(map[string]*entry),
		opts:    opts,
		now:     time.Now,
	}
}

// Get 返回聚合与其新鲜度。过期条目在本次读取中被清除并按 miss 处理。
func (s *Store) Get(key string) (*catalog.Aggregate, Freshness, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		return nil, Expired, false
	}

	now := s.now()
	fr := s.freshness(ent, now)
	if fr == Expired {
		delete(s.entries, key)
		return nil, Expired, false
	}

	ent.lastAccess = now
	ent.accessCount++
	return ent.data, fr, true
}

// Put 覆盖写入并刷新 writtenAt，必要时触发清理。
func (s *Store) Put(key string, data *catalog.Aggregate) {
	if data == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if ent, ok := s.entries[key]; ok {
		ent.data = data
		ent.writtenAt = now
		ent.lastAccess = now
		return
	}

	s.maybeEvict(now)
	s.entries[key] = &entry{
		data:       data,
		writtenAt:  now,
		lastAccess: now,
	}
}

// Clear 清空全部条目。
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry)
}

// Size 返回当前条目数。
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// WrittenAt 返回条目最近一次写入时间，供测试与诊断观察后台刷新是否落地。
func (s *Store) WrittenAt(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.entries[key]
	if !ok {
		return time.Time{}, false
	}
	return ent.writtenAt, true
}

// RemoveExpired 清除所有超过 StaleTTL 的条目，返回清除数量。定时清扫任务调用。
func (s *Store) RemoveExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropExpired(s.now())
}

// Inspect 返回缓存规模与至多 limit 条样本，不改变任何访问统计。
func (s *Store) Inspect(limit int) Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	report := Report{
		Size:    len(s.entries),
		Entries: make([]EntryInfo, 0, min(limit, len(s.entries))),
	}
	for key, ent := range s.entries {
		if len(report.Entries) >= limit {
			break
		}
		report.Entries = append(report.Entries, EntryInfo{
			Key:         key,
			AgeMs:       now.Sub(ent.writtenAt).Milliseconds(),
			AccessCount: ent.accessCount,
			Freshness:   s.freshness(ent, now).String(),
		})
	}
	sort.Slice(report.Entries, func(i, j int) bool {
		return report.Entries[i].Key < report.Entries[j].Key
	})
	return report
}

// FreshTTL 暴露给 boundary 层拼 Cache-Control 头。
func (s *Store) FreshTTL() time.Duration { return s.opts.FreshTTL }

// StaleTTL 暴露给 boundary 层拼 stale-while-revalidate 提示。
func (s *Store) StaleTTL() time.Duration { return s.opts.StaleTTL }

func (s *Store) freshness(ent *entry, now time.Time) Freshness {
	age := now.Sub(ent.writtenAt)
	switch {
	case age <= s.opts.FreshTTL:
		return Fresh
	case age <= s.opts.StaleTTL:
		return Stale
	default:
		return Expired
	}
}

// maybeEvict 在容量触达水位时执行两段清理：先清过期，仍超上限时
// 再按 lastAccess + accessCount*weight 的分数淘汰最低的约 20%。
func (s *Store) maybeEvict(now time.Time) {
	threshold := int(float64(s.opts.MaxEntries) * cleanupThreshold)
	if len(s.entries) < threshold {
		return
	}

	s.dropExpired(now)
	if len(s.entries) < s.opts.MaxEntries {
		return
	}

	type scored struct {
		key   string
		score int64
	}
	ranked := make([]scored, 0, len(s.entries))
	for key, ent := range s.entries {
		ranked = append(ranked, scored{
			key:   key,
			score: ent.lastAccess.UnixNano() + ent.accessCount*accessWeight,
		})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score < ranked[j].score })

	drop := int(float64(len(ranked)) * evictFraction)
	if drop < 1 {
		drop = 1
	}
	for _, victim := range ranked[:drop] {
		delete(s.entries, victim.key)
	}
}

func (s *Store) dropExpired(now time.Time) int {
	removed := 0
	for key, ent := range s.entries {
		if now.Sub(ent.writtenAt) > s.opts.StaleTTL {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}
