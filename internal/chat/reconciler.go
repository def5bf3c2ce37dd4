package chat

import (
	log "log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"Ephemera/internal/model"
	"Ephemera/internal/pkg/decay"
	"Ephemera/internal/pkg/tier"
)

const (
	localRefPrefix   = "local:"
	overlayRefPrefix = "msg:"
)

// pendingEntry 乐观记录，在未完成的写全部返回前替代已确认记录显示
type pendingEntry struct {
	ref         string
	msg         model.Message // ID 在绑定后才有值
	sent        string        // 创建请求携带的内容，用于匹配自身回显
	create      bool
	outstanding int
}

type bufferedUpdate struct {
	msg     model.Message
	expires time.Time
}

// Outcome 一次事件应用的结果
type Outcome struct {
	NewInsert bool
	FromPeer  bool
	Message   model.Message
}

// Reconciler 合并乐观状态与网关事件流
type Reconciler struct {
	selfID uint64
	policy decay.Policy
	retry  time.Duration

	store    *Store
	entries  map[string]*pendingEntry
	creates  []string          // 创建类乐观记录的引用，按创建顺序
	bound    map[string]string // message id -> ref
	counted  map[string]time.Time
	buffered map[string][]bufferedUpdate
	count    int64
	seq      uint64
}

// NewReconciler 创建 Reconciler
func NewReconciler(selfID uint64, policy decay.Policy, retry time.Duration) *Reconciler {
	return &Reconciler{
		selfID:   selfID,
		policy:   policy,
		retry:    retry,
		store:    NewStore(policy),
		entries:  make(map[string]*pendingEntry),
		bound:    make(map[string]string),
		counted:  make(map[string]time.Time),
		buffered: make(map[string][]bufferedUpdate),
	}
}

// Store 已确认记录
func (r *Reconciler) Store() *Store { return r.store }

// Count 会话累计消息数
func (r *Reconciler) Count() int64 { return r.count }

// Pending 未完成的乐观记录数
func (r *Reconciler) Pending() int { return len(r.entries) }

// Seed 写入初始列表，初始记录视为已计数
func (r *Reconciler) Seed(msgs []model.Message, count int64) {
	for _, m := range msgs {
		r.store.InsertOrUpdate(m)
		r.counted[m.ID] = m.UpdatedAt
	}
	if count > r.count {
		r.count = count
	}
}

// CreatePending 登记一条待创建的乐观记录，返回本地引用
func (r *Reconciler) CreatePending(now time.Time, receiverID uint64, kind model.MessageKind, content string) string {
	r.seq++
	ref := localRefPrefix + strconv.FormatUint(r.seq, 10)
	r.entries[ref] = &pendingEntry{
		ref: ref,
		msg: model.Message{
			SenderID:   r.selfID,
			ReceiverID: receiverID,
			Kind:       kind,
			Content:    content,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		sent:        content,
		create:      true,
		outstanding: 1,
	}
	r.creates = append(r.creates, ref)
	return ref
}

// AmendPending 在 ref 指向的记录上追加 words，返回承载追加的乐观记录引用
func (r *Reconciler) AmendPending(now time.Time, ref, words string) (string, bool) {
	if e, ok := r.entries[ref]; ok {
		e.msg.Content = joinWords(e.msg.Content, words)
		e.msg.UpdatedAt = now
		e.outstanding++
		return ref, true
	}

	id, ok := strings.CutPrefix(ref, overlayRefPrefix)
	if !ok {
		return "", false
	}
	base, ok := r.store.Get(id)
	if !ok {
		return "", false
	}
	base.Content = joinWords(base.Content, words)
	base.UpdatedAt = now
	r.entries[ref] = &pendingEntry{ref: ref, msg: base, outstanding: 1}
	r.bound[id] = ref
	return ref, true
}

// BoundID ref 对应的服务端 id，未绑定时为空
func (r *Reconciler) BoundID(ref string) string {
	if e, ok := r.entries[ref]; ok {
		return e.msg.ID
	}
	return ""
}

func (r *Reconciler) bind(e *pendingEntry, m *model.Message) {
	e.msg.ID = m.ID
	e.msg.CreatedAt = m.CreatedAt
	r.bound[m.ID] = e.ref
}

// merge 写入已确认记录，首次出现的 id 计数一次
func (r *Reconciler) merge(m model.Message) bool {
	isNew := r.store.InsertOrUpdate(m)
	_, seen := r.counted[m.ID]
	if m.UpdatedAt.After(r.counted[m.ID]) {
		r.counted[m.ID] = m.UpdatedAt
	}
	if !isNew || seen {
		return false
	}
	r.count++
	return true
}

func (r *Reconciler) flushBuffered(id string) {
	ups, ok := r.buffered[id]
	if !ok {
		return
	}
	delete(r.buffered, id)
	for _, u := range ups {
		r.store.InsertOrUpdate(u.msg)
	}
}

// Confirm 处理写请求的响应
func (r *Reconciler) Confirm(ref string, m model.Message) Outcome {
	e := r.entries[ref]
	if e != nil && e.msg.ID == "" && m.ID != "" {
		r.bind(e, &m)
	}
	counted := r.merge(m)
	r.flushBuffered(m.ID)
	r.Release(ref)
	return Outcome{NewInsert: counted, Message: m}
}

// Release 一次写已结束，没有未完成的写时移除乐观记录
func (r *Reconciler) Release(ref string) {
	e, ok := r.entries[ref]
	if !ok {
		return
	}
	e.outstanding--
	if e.outstanding <= 0 {
		r.Rollback(ref)
	}
}

// Rollback 丢弃乐观记录，视图回到已确认记录或移除从未确认的行
func (r *Reconciler) Rollback(ref string) {
	e, ok := r.entries[ref]
	if !ok {
		return
	}
	delete(r.entries, ref)
	if e.msg.ID != "" && r.bound[e.msg.ID] == ref {
		delete(r.bound, e.msg.ID)
	}
	if e.create {
		for i, c := range r.creates {
			if c == ref {
				r.creates = append(r.creates[:i], r.creates[i+1:]...)
				break
			}
		}
	}
}

// Apply 应用一条网关事件
func (r *Reconciler) Apply(now time.Time, ev model.ChangeEvent) Outcome {
	m := ev.Message
	if m.ID == "" {
		return Outcome{}
	}

	if _, known := r.store.Get(m.ID); known {
		r.merge(m)
		return Outcome{}
	}

	switch ev.EventType {
	case model.EventInsert:
		if r.policy.FullyDecayed(&m, now) {
			return Outcome{}
		}
		if m.SenderID == r.selfID {
			r.bindEcho(&m)
		}
		counted := r.merge(m)
		r.flushBuffered(m.ID)
		return Outcome{NewInsert: counted, FromPeer: m.SenderID != r.selfID, Message: m}
	case model.EventUpdate:
		r.buffered[m.ID] = append(r.buffered[m.ID], bufferedUpdate{msg: m, expires: now.Add(r.retry)})
	default:
		log.Warn("ignoring change event with unknown type", "event_type", ev.EventType, "message_id", m.ID)
	}
	return Outcome{}
}

// bindEcho 自身消息的回显先于写响应到达时，绑定到最早的同内容未绑定创建记录
func (r *Reconciler) bindEcho(m *model.Message) {
	for _, ref := range r.creates {
		e := r.entries[ref]
		if e.msg.ID == "" && e.msg.Kind == m.Kind && e.sent == m.Content && e.msg.ReceiverID == m.ReceiverID {
			r.bind(e, m)
			return
		}
	}
}

// Tick 清理已衰减记录、过期的计数标记与缓冲更新
func (r *Reconciler) Tick(now time.Time) {
	r.store.Prune(now)

	horizon := r.policy.MaxLifespan()
	for id, seen := range r.counted {
		if _, ok := r.store.Get(id); ok {
			continue
		}
		if now.Sub(seen) >= horizon {
			delete(r.counted, id)
		}
	}

	for id, ups := range r.buffered {
		kept := ups[:0]
		for _, u := range ups {
			if now.Before(u.expires) {
				kept = append(kept, u)
				continue
			}
			log.Warn("dropping update for unknown message", "message_id", id, "updated_at", u.msg.UpdatedAt)
		}
		if len(kept) == 0 {
			delete(r.buffered, id)
		} else {
			r.buffered[id] = kept
		}
	}
}

type row struct {
	ref     string
	msg     model.Message
	pending bool
}

// rows 合并视图：已确认记录被其乐观记录替代，未绑定的创建记录追加其后
func (r *Reconciler) rows(confirmed []model.Message) []row {
	out := make([]row, 0, len(confirmed)+len(r.entries))
	seen := make(map[string]struct{}, len(confirmed))
	for _, m := range confirmed {
		seen[m.ID] = struct{}{}
		if ref, ok := r.bound[m.ID]; ok {
			out = append(out, row{ref: ref, msg: r.entries[ref].msg, pending: true})
			continue
		}
		out = append(out, row{ref: overlayRefPrefix + m.ID, msg: m})
	}
	// 已确认记录不在读窗口内，但追加仍在途
	for id, ref := range r.bound {
		if _, ok := seen[id]; ok {
			continue
		}
		if e, ok := r.entries[ref]; ok {
			out = append(out, row{ref: ref, msg: e.msg, pending: true})
		}
	}
	for _, ref := range r.creates {
		e := r.entries[ref]
		if e.msg.ID == "" {
			out = append(out, row{ref: ref, msg: e.msg, pending: true})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return model.Less(&out[i].msg, &out[j].msg)
	})
	return out
}

// Latest 合并视图中的最后一条消息
func (r *Reconciler) Latest() *Latest {
	rows := r.rows(r.store.All())
	if len(rows) == 0 {
		return nil
	}
	last := rows[len(rows)-1]
	return &Latest{Ref: last.ref, Message: last.msg}
}

// View 投影 now 时刻的会话视图
func (r *Reconciler) View(now time.Time, tiers *tier.Resolver) []ViewItem {
	rows := r.rows(r.store.ListSince(now.Add(-r.policy.MaxLifespan()), now))
	items := make([]ViewItem, 0, len(rows))
	for _, rw := range rows {
		p := decay.Project(r.policy, &rw.msg, now)
		if !p.Alive {
			continue
		}
		item := ViewItem{
			Message: rw.msg,
			Visible: p.Visible,
			Alive:   true,
			Pending: rw.pending,
		}
		if rw.msg.Kind == model.KindEmoji && tiers != nil {
			item.Glyph = tiers.For(rw.msg.Content, r.count)
		}
		items = append(items, item)
	}
	return items
}

func joinWords(content, words string) string {
	if content == "" {
		return words
	}
	return content + " " + words
}
