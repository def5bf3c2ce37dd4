package tier

import (
	"errors"
	"fmt"
	"sort"

	"Ephemera/internal/model"
)

var ErrConfiguration = errors.New("invalid engagement tier configuration")

// Level 达到 Threshold 条消息后解锁 Glyph
type Level struct {
	Threshold int64  `mapstructure:"threshold" json:"threshold"`
	Glyph     string `mapstructure:"glyph" json:"glyph"`
}

// Table 每个表情分类对应一组严格递增的等级
type Table map[string][]Level

// Resolver 根据会话累计消息数解析表情等级，加载后只读
type Resolver struct {
	levels map[string][]Level
}

// New 校验并构建 Resolver，配置非法时返回 ErrConfiguration
func New(table Table) (*Resolver, error) {
	for category := range table {
		if !model.IsEmojiCategory(category) {
			return nil, fmt.Errorf("%w: unknown category %q", ErrConfiguration, category)
		}
	}

	levels := make(map[string][]Level, len(model.EmojiCategories))
	for _, category := range model.EmojiCategories {
		list, ok := table[category]
		if !ok || len(list) == 0 {
			return nil, fmt.Errorf("%w: category %q has no levels", ErrConfiguration, category)
		}
		if list[0].Threshold != 0 {
			return nil, fmt.Errorf("%w: category %q is missing the base tier at threshold 0", ErrConfiguration, category)
		}
		for i, l := range list {
			if l.Glyph == "" {
				return nil, fmt.Errorf("%w: category %q level %d has an empty glyph", ErrConfiguration, category, i)
			}
			if i > 0 && l.Threshold <= list[i-1].Threshold {
				return nil, fmt.Errorf("%w: category %q thresholds are not strictly increasing at level %d (%d after %d)",
					ErrConfiguration, category, i, l.Threshold, list[i-1].Threshold)
			}
		}
		cp := make([]Level, len(list))
		copy(cp, list)
		levels[category] = cp
	}
	return &Resolver{levels: levels}, nil
}

// For 返回阈值不超过 count 的最高等级表情；未知分类返回空串
func (r *Resolver) For(category string, count int64) string {
	list, ok := r.levels[category]
	if !ok {
		return ""
	}
	// 第一个阈值大于 count 的位置，其前一个即为命中等级
	i := sort.Search(len(list), func(i int) bool { return list[i].Threshold > count })
	if i == 0 {
		return list[0].Glyph
	}
	return list[i-1].Glyph
}

// DefaultTable 默认表情进阶表
func DefaultTable() Table {
	return Table{
		model.EmojiHeart: {
			{0, "❤️"}, {50, "💖"}, {200, "💕"}, {300, "💞"}, {500, "💝"}, {1000, "💝"},
			{2000, "💝"}, {2500, "💗"}, {3000, "💗"}, {10000, "💘"}, {20000, "❤️‍🔥"},
		},
		model.EmojiSmile: {
			{0, "🙂"}, {50, "😄"}, {500, "😊"}, {2500, "🥰"},
		},
		model.EmojiAngry: {
			{0, "😠"}, {200, "😤"}, {1000, "😠"}, {10000, "😡"}, {20000, "🤯"},
		},
		model.EmojiWink: {
			{0, "😉"}, {500, "😜"}, {1000, "😏"}, {3000, "😘"},
		},
	}
}
