package syncclient

import (
	"arithmo_backend/internal/model"
	"fmt"
	"time"
)

// WriteStatus 队列项的生命周期：
// pending → in-flight → 成功出队 / retry-scheduled（回到队尾）/ 超过重试上限被放弃。
type WriteStatus string

const (
	WritePending        WriteStatus = "pending"
	WriteInFlight       WriteStatus = "in-flight"
	WriteRetryScheduled WriteStatus = "retry-scheduled"
)

// PendingWrite 一条尚未被后端确认的活动更新。
type PendingWrite struct {
	ID          string        `json:"id"`
	Level       int           `json:"level"`
	Activity    int           `json:"activity"`
	Rewards     model.Rewards `json:"rewards"`
	IsCompleted bool          `json:"isCompleted"`
	EnqueuedAt  time.Time     `json:"enqueuedAt"`
	Attempts    int           `json:"attempts"`
	Status      WriteStatus   `json:"status"`
}

func newPendingWrite(level, activity int, rewards model.Rewards, isCompleted bool, now time.Time) PendingWrite {
	return PendingWrite{
		// 身份由 (level, activity, 入队时间) 决定，重放时保持稳定
		ID:          fmt.Sprintf("%d-%d-%d", level, activity, now.UnixMilli()),
		Level:       level,
		Activity:    activity,
		Rewards:     rewards,
		IsCompleted: isCompleted,
		EnqueuedAt:  now,
		Status:      WritePending,
	}
}

// writeQueue FIFO：尾部入队、头部出队，失败项回到尾部，
// 避免单个坏条目阻塞整个队列。只有单个消费循环负责出队。
type writeQueue struct {
	items []PendingWrite
}

func newWriteQueue(items []PendingWrite) *writeQueue {
	q := &writeQueue{items: make([]PendingWrite, 0, 16)}
	for _, it := range items {
		// 重新加载后全部回到待处理状态
		it.Status = WritePending
		q.items = append(q.items, it)
	}
	return q
}

func (q *writeQueue) Enqueue(w PendingWrite) {
	q.items = append(q.items, w)
}

func (q *writeQueue) Head() (PendingWrite, bool) {
	if len(q.items) == 0 {
		return PendingWrite{}, false
	}
	return q.items[0], true
}

func (q *writeQueue) PopHead() (PendingWrite, bool) {
	if len(q.items) == 0 {
		return PendingWrite{}, false
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, true
}

// RequeueTail 头部项失败后移到尾部等待下一轮。
func (q *writeQueue) RequeueTail(w PendingWrite) {
	w.Status = WriteRetryScheduled
	q.items = append(q.items, w)
}

func (q *writeQueue) MarkHeadInFlight() {
	if len(q.items) > 0 {
		q.items[0].Status = WriteInFlight
	}
}

func (q *writeQueue) Len() int {
	return len(q.items)
}

func (q *writeQueue) Items() []PendingWrite {
	out := make([]PendingWrite, len(q.items))
	copy(out, q.items)
	return out
}
