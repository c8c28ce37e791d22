package service

import (
	"arithmo_backend/internal/model"
	"arithmo_backend/internal/repository"
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const progressCacheTTL = 5 * time.Minute

// SyncConflict force-sync 检测到后端更新时返回两侧文档，由调用方决定如何合并。
type SyncConflict struct {
	BackendData model.ProgressData `json:"backendData"`
	LocalData   model.ProgressData `json:"localData"`
}

type ProgressService struct {
	Repo  *repository.ProgressRepository
	Redis *redis.Client // 可为 nil（测试、未配置缓存时）
}

func NewProgressService(repo *repository.ProgressRepository, rdb *redis.Client) *ProgressService {
	return &ProgressService{Repo: repo, Redis: rdb}
}

// Load 返回用户的进度文档，首次访问时惰性创建默认文档并落库。
func (s *ProgressService) Load(ctx context.Context, username string) (*model.ProgressData, error) {
	if cached := s.cacheGet(ctx, username); cached != nil {
		return cached, nil
	}

	record, err := s.Repo.FindByUsername(username)
	if err == gorm.ErrRecordNotFound {
		now := time.Now()
		record = &model.ProgressRecord{
			Username:    username,
			Data:        model.NewDefaultProgressData(now),
			LastUpdated: now,
		}
		if err := s.Repo.Create(record); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, username, &record.Data)
	return &record.Data, nil
}

// UpdateActivity 增量更新：幂等记录活动、累计奖励、按需解锁下一关。
func (s *ProgressService) UpdateActivity(ctx context.Context, username string, level, activity int, rewards model.Rewards, isCompleted bool) (*model.ProgressData, error) {
	now := time.Now()

	record, err := s.Repo.FindByUsername(username)
	if err == gorm.ErrRecordNotFound {
		record = &model.ProgressRecord{
			Username: username,
			Data:     model.NewDefaultProgressData(now),
		}
	} else if err != nil {
		return nil, err
	}

	if err := record.Data.ApplyActivity(level, activity, rewards, isCompleted, now); err != nil {
		return nil, err
	}
	record.LastUpdated = now

	if err := s.Repo.Save(record); err != nil {
		return nil, err
	}

	s.cacheSet(ctx, username, &record.Data)
	return &record.Data, nil
}

// SaveProgress 整文档覆盖写，离线回放批量同步用。派生字段一律重算。
func (s *ProgressService) SaveProgress(ctx context.Context, username string, data model.ProgressData) (time.Time, error) {
	now := time.Now()
	data.RecomputeTotals()
	data.LastSync = now

	record, err := s.Repo.Upsert(username, data, now)
	if err != nil {
		return time.Time{}, err
	}

	s.cacheSet(ctx, username, &record.Data)
	return record.LastUpdated, nil
}

// ForceSync 后端 lastUpdated 严格更新的时候返回冲突且不写入，
// 由调用方解决后重新提交；否则客户端文档成为权威版本。
func (s *ProgressService) ForceSync(ctx context.Context, username string, data model.ProgressData) (*model.ProgressData, *SyncConflict, error) {
	record, err := s.Repo.FindByUsername(username)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, nil, err
	}

	if record != nil && record.LastUpdated.After(data.LastSync) {
		return nil, &SyncConflict{
			BackendData: record.Data,
			LocalData:   data,
		}, nil
	}

	now := time.Now()
	data.RecomputeTotals()
	data.LastSync = now

	record, err = s.Repo.Upsert(username, data, now)
	if err != nil {
		return nil, nil, err
	}

	s.cacheSet(ctx, username, &record.Data)
	return &record.Data, nil, nil
}

// Reset 用全新的默认文档替换现有进度，不做硬删除。
func (s *ProgressService) Reset(ctx context.Context, username string) (*model.ProgressData, error) {
	now := time.Now()
	record, err := s.Repo.Upsert(username, model.NewDefaultProgressData(now), now)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, username, &record.Data)
	return &record.Data, nil
}

func cacheKey(username string) string {
	return "progress:" + username
}

// 缓存只是读路径的加速层，任何 redis 故障都静默降级到数据库。

func (s *ProgressService) cacheGet(ctx context.Context, username string) *model.ProgressData {
	if s.Redis == nil {
		return nil
	}
	raw, err := s.Redis.Get(ctx, cacheKey(username)).Bytes()
	if err != nil {
		return nil
	}
	var data model.ProgressData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}
	return &data
}

func (s *ProgressService) cacheSet(ctx context.Context, username string, data *model.ProgressData) {
	if s.Redis == nil {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	s.Redis.Set(ctx, cacheKey(username), raw, progressCacheTTL)
}
