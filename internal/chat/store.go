package chat

import (
	"sort"
	"time"

	"Ephemera/internal/model"
	"Ephemera/internal/pkg/decay"
)

// Store 单个会话已确认消息的本地副本，按 id 去重、最后写入者胜出
type Store struct {
	policy decay.Policy
	byID   map[string]*model.Message
	order  []*model.Message
}

// NewStore 创建会话存储
func NewStore(policy decay.Policy) *Store {
	return &Store{
		policy: policy,
		byID:   make(map[string]*model.Message),
	}
}

// InsertOrUpdate 合并一条已确认的消息，返回 id 是否首次出现
// 已存在时仅当 incoming.UpdatedAt >= stored.UpdatedAt 才替换，不可变字段保持原值
func (s *Store) InsertOrUpdate(m model.Message) bool {
	if m.ID == "" {
		return false
	}

	if existing, ok := s.byID[m.ID]; ok {
		if m.UpdatedAt.Before(existing.UpdatedAt) {
			return false
		}
		existing.Content = m.Content
		existing.UpdatedAt = m.UpdatedAt
		existing.IsDeleted = m.IsDeleted
		return false
	}

	stored := m
	s.byID[m.ID] = &stored
	s.order = append(s.order, &stored)
	sort.Slice(s.order, func(i, j int) bool {
		return model.Less(s.order[i], s.order[j])
	})
	return true
}

// Get 按 id 取消息副本
func (s *Store) Get(id string) (model.Message, bool) {
	m, ok := s.byID[id]
	if !ok {
		return model.Message{}, false
	}
	return *m, true
}

// Len 记录数
func (s *Store) Len() int { return len(s.order) }

// Latest 按会话顺序的最后一条记录
func (s *Store) Latest() (model.Message, bool) {
	if len(s.order) == 0 {
		return model.Message{}, false
	}
	return *s.order[len(s.order)-1], true
}

// All 按会话顺序返回全部记录副本
func (s *Store) All() []model.Message {
	out := make([]model.Message, 0, len(s.order))
	for _, m := range s.order {
		out = append(out, *m)
	}
	return out
}

// ListSince 返回最后更新不早于 cutoff 且在 now 时刻仍可见的记录
func (s *Store) ListSince(cutoff, now time.Time) []model.Message {
	out := make([]model.Message, 0, len(s.order))
	for _, m := range s.order {
		if m.UpdatedAt.Before(cutoff) {
			continue
		}
		if !decay.Project(s.policy, m, now).Alive {
			continue
		}
		out = append(out, *m)
	}
	return out
}

// Prune 移除已完全衰减或已删除的记录，返回移除数量
func (s *Store) Prune(now time.Time) int {
	kept := s.order[:0]
	removed := 0
	for _, m := range s.order {
		if m.IsDeleted || s.policy.FullyDecayed(m, now) {
			delete(s.byID, m.ID)
			removed++
			continue
		}
		kept = append(kept, m)
	}
	for i := len(kept); i < len(s.order); i++ {
		s.order[i] = nil
	}
	s.order = kept
	return removed
}
