package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// LevelCount 课程固定为五个关卡，按顺序解锁。
const LevelCount = 5

// ProgressVersion 进度文档的模式标签。
const ProgressVersion = "1.0"

var ErrInvalidActivity = errors.New("invalid level or activity")

type LevelStatus string

const (
	StatusLocked     LevelStatus = "locked"
	StatusNotStarted LevelStatus = "not-started"
	StatusInProgress LevelStatus = "in-progress"
	StatusCompleted  LevelStatus = "completed"
)

// Rewards 星星/徽章/代币计数，只增不减。
type Rewards struct {
	Stars  int `json:"stars"`
	Badges int `json:"badges"`
	Tokens int `json:"tokens"`
}

type LevelState struct {
	Status              LevelStatus `json:"status"`
	CompletedActivities []int       `json:"completedActivities"`
	Rewards             Rewards     `json:"rewards"`
	LastActivity        int         `json:"lastActivity"`
	StartedAt           time.Time   `json:"startedAt"`
	CompletedAt         *time.Time  `json:"completedAt,omitempty"`
}

type Totals struct {
	TotalStars               int `json:"totalStars"`
	TotalBadges              int `json:"totalBadges"`
	TotalTokens              int `json:"totalTokens"`
	CompletedLevels          int `json:"completedLevels"`
	TotalActivitiesCompleted int `json:"totalActivitiesCompleted"`
}

// LevelSet 固定五个关卡，下标0对应第1关。线上格式保持为以 "1".."5"
// 为键的对象，与历史客户端兼容。
type LevelSet [LevelCount]LevelState

func (s LevelSet) MarshalJSON() ([]byte, error) {
	m := make(map[string]LevelState, LevelCount)
	for i := range s {
		m[strconv.Itoa(i+1)] = s[i]
	}
	return json.Marshal(m)
}

func (s *LevelSet) UnmarshalJSON(data []byte) error {
	var m map[string]LevelState
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for key, state := range m {
		n, err := strconv.Atoi(key)
		if err != nil || n < 1 || n > LevelCount {
			// 历史数据里可能混入无效键，直接忽略
			continue
		}
		s[n-1] = state
	}
	return nil
}

// ProgressData 单个用户的完整进度文档，作为 JSON 列持久化。
type ProgressData struct {
	Version      string    `json:"version"`
	CurrentLevel int       `json:"currentLevel"`
	LastSync     time.Time `json:"lastSync"`
	Levels       LevelSet  `json:"levels"`
	Totals       Totals    `json:"totals"`
}

func (d ProgressData) Value() (driver.Value, error) {
	return json.Marshal(d)
}

func (d *ProgressData) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	case nil:
		return nil
	default:
		return fmt.Errorf("cannot scan %T into ProgressData", value)
	}
}

// NewDefaultProgressData 第1关 not-started，第2~5关 locked。
func NewDefaultProgressData(now time.Time) ProgressData {
	d := ProgressData{
		Version:      ProgressVersion,
		CurrentLevel: 1,
		LastSync:     now,
	}
	for i := range d.Levels {
		status := StatusLocked
		if i == 0 {
			status = StatusNotStarted
		}
		d.Levels[i] = LevelState{
			Status:              status,
			CompletedActivities: []int{},
			StartedAt:           now,
		}
	}
	return d
}

// Level 返回第 n 关（1起）的可变状态，越界返回 nil。
func (d *ProgressData) Level(n int) *LevelState {
	if n < 1 || n > LevelCount {
		return nil
	}
	return &d.Levels[n-1]
}

// ApplyActivity 记录一次活动完成。对同一 (level, activity) 幂等：
// 重复提交不会重复累计奖励。isCompleted 为真时标记关卡完成，并把下一关
// 从 locked 解锁为 not-started（只发生一次）。
func (d *ProgressData) ApplyActivity(level, activity int, rewards Rewards, isCompleted bool, now time.Time) error {
	lvl := d.Level(level)
	if lvl == nil || activity < 1 {
		return ErrInvalidActivity
	}

	if idx := sort.SearchInts(lvl.CompletedActivities, activity); idx == len(lvl.CompletedActivities) || lvl.CompletedActivities[idx] != activity {
		lvl.CompletedActivities = append(lvl.CompletedActivities, activity)
		sort.Ints(lvl.CompletedActivities)

		lvl.Rewards.Stars += rewards.Stars
		lvl.Rewards.Badges += rewards.Badges
		lvl.Rewards.Tokens += rewards.Tokens
	}

	if activity > lvl.LastActivity {
		lvl.LastActivity = activity
	}

	if isCompleted {
		if lvl.Status != StatusCompleted {
			lvl.Status = StatusCompleted
			completedAt := now
			lvl.CompletedAt = &completedAt
		}
		if next := d.Level(level + 1); next != nil && next.Status == StatusLocked {
			next.Status = StatusNotStarted
		}
	} else if lvl.Status == StatusNotStarted || lvl.Status == StatusLocked {
		lvl.Status = StatusInProgress
	}

	if level > d.CurrentLevel {
		d.CurrentLevel = level
	}

	d.RecomputeTotals()
	d.LastSync = now
	return nil
}

// RecomputeTotals 汇总派生字段，任何变更后都重新计算，从不手工修改。
func (d *ProgressData) RecomputeTotals() {
	var t Totals
	for i := range d.Levels {
		lvl := &d.Levels[i]
		t.TotalStars += lvl.Rewards.Stars
		t.TotalBadges += lvl.Rewards.Badges
		t.TotalTokens += lvl.Rewards.Tokens
		t.TotalActivitiesCompleted += len(lvl.CompletedActivities)
		if lvl.Status == StatusCompleted {
			t.CompletedLevels++
		}
	}
	d.Totals = t
}

// ProgressRecord 进度存储行，按用户名一行。LastUpdated 是最后一次权威写入
// 时间，force-sync 用它与客户端 lastSync 做冲突检测。
type ProgressRecord struct {
	BaseModel
	Username    string       `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Data        ProgressData `gorm:"type:json" json:"progressData"`
	LastUpdated time.Time    `json:"lastUpdated"`
}

func (ProgressRecord) TableName() string {
	return "progress_records"
}
