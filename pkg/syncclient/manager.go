package syncclient

import (
	"arithmo_backend/internal/model"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultMaxRetries     = 5
	defaultSyncInterval   = 2 * time.Minute
	defaultRequestTimeout = 30 * time.Second

	// 令牌剩余有效期低于该值时提前刷新
	tokenRefreshWindow = 24 * time.Hour
)

var defaultRetryDelays = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
}

var ErrNotAuthenticated = errors.New("not authenticated")

type Options struct {
	BaseURL        string
	StatePath      string        // 本地状态文件路径
	RequestTimeout time.Duration // 单个请求超时，默认30秒
	MaxRetries     int           // 单条写入的重试上限，默认5
	RetryDelays    []time.Duration
	SyncInterval   time.Duration // 周期性排空间隔，默认2分钟

	// OnAbandon 写入超过重试上限被丢弃时回调，调用方借此观察静默丢失。
	OnAbandon func(PendingWrite)
}

// SyncStatus 供调用方观察的引擎状态快照。
type SyncStatus struct {
	Online    bool
	Syncing   bool
	QueueLen  int
	Abandoned uint64
	LastSync  time.Time
	HasToken  bool
}

// SaveResult 一次活动保存的结果：进了后端或者排队等待。
type SaveResult struct {
	Backend bool // 后端已确认
	Queued  bool // 写入已排队等待重试
}

// Manager 离线优先的进度同步引擎。所有用户操作先同步更新本地缓存并
// 落盘，网络写入失败时进入重试队列，由单个消费循环按FIFO排空。
// 显式生命周期：NewManager → Start → Close。
type Manager struct {
	client *Client
	store  *Store
	opts   Options

	mu       sync.Mutex
	username string
	progress *model.ProgressData
	queue    *writeQueue
	online   bool
	syncing  bool

	abandoned atomic.Uint64

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

func NewManager(opts Options) (*Manager, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("syncclient: BaseURL is required")
	}
	if opts.StatePath == "" {
		return nil, errors.New("syncclient: StatePath is required")
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if len(opts.RetryDelays) == 0 {
		opts.RetryDelays = defaultRetryDelays
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = defaultSyncInterval
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}

	store := NewStore(opts.StatePath)
	st, err := store.Load()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		client:   NewClient(opts.BaseURL, opts.RequestTimeout),
		store:    store,
		opts:     opts,
		username: st.Username,
		progress: st.Progress,
		queue:    newWriteQueue(st.Queue),
		online:   true,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	m.client.SetToken(st.Token)
	return m, nil
}

// Start 启动消费循环：周期定时器 + 显式唤醒（上线、入队）都会触发排空。
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.run()

	// 启动时如有积压立即处理
	m.signal()
}

func (m *Manager) Close() error {
	close(m.done)
	m.wg.Wait()
	return m.persist()
}

func (m *Manager) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-m.wake:
		case <-ticker.C:
		}

		ctx, cancel := context.WithCancel(context.Background())
		m.refreshTokenIfNeeded(ctx)
		m.drainQueue(ctx)
		cancel()
	}
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Online 连接状态变化通知。恢复在线立即触发排空，不等待周期定时器。
func (m *Manager) Online(online bool) {
	m.mu.Lock()
	m.online = online
	m.mu.Unlock()

	if online {
		m.signal()
	}
}

func (m *Manager) Signup(ctx context.Context, username, password string) (recoveryCode string, err error) {
	recoveryCode, err = m.client.Signup(ctx, username, password)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.username = username
	m.mu.Unlock()
	return recoveryCode, m.persist()
}

func (m *Manager) Login(ctx context.Context, username, password string) error {
	if err := m.client.Login(ctx, username, password); err != nil {
		return err
	}

	m.mu.Lock()
	m.username = username
	m.mu.Unlock()
	return m.persist()
}

// LoadProgress 后端为准；不可达或未登录时退回本地缓存，两者皆无则建默认文档。
func (m *Manager) LoadProgress(ctx context.Context) (model.ProgressData, error) {
	if m.client.Token() != "" {
		if data, err := m.client.LoadProgress(ctx); err == nil && data != nil {
			m.mu.Lock()
			m.progress = data
			m.mu.Unlock()
			m.persist()
			return *data, nil
		}
	}

	m.mu.Lock()
	if m.progress == nil {
		d := model.NewDefaultProgressData(time.Now())
		m.progress = &d
	}
	data := *m.progress
	m.mu.Unlock()
	m.persist()
	return data, nil
}

// SaveActivityProgress 先本地乐观写入并落盘（UI永不等待网络），
// 然后尝试后端；失败时写入进入重试队列。
func (m *Manager) SaveActivityProgress(ctx context.Context, level, activity int, rewards model.Rewards, isCompleted bool) (SaveResult, error) {
	now := time.Now()

	m.mu.Lock()
	if m.progress == nil {
		d := model.NewDefaultProgressData(now)
		m.progress = &d
	}
	if err := m.progress.ApplyActivity(level, activity, rewards, isCompleted, now); err != nil {
		m.mu.Unlock()
		return SaveResult{}, err
	}
	m.mu.Unlock()

	if err := m.persist(); err != nil {
		return SaveResult{}, err
	}

	// 未登录只存本地
	if m.client.Token() == "" {
		return SaveResult{}, nil
	}

	data, err := m.client.UpdateActivity(ctx, level, activity, rewards, isCompleted)
	if err == nil && data != nil {
		m.mu.Lock()
		m.progress = data
		m.mu.Unlock()
		m.persist()
		return SaveResult{Backend: true}, nil
	}

	// 后端失败：排队等待重试
	m.mu.Lock()
	m.queue.Enqueue(newPendingWrite(level, activity, rewards, isCompleted, now))
	m.mu.Unlock()
	m.persist()
	m.signal()

	return SaveResult{Queued: true}, nil
}

// ForceSync 手动推送完整本地文档。冲突原样返回给调用方，不做自动合并。
func (m *Manager) ForceSync(ctx context.Context) (*Conflict, error) {
	if m.client.Token() == "" {
		return nil, ErrNotAuthenticated
	}

	m.mu.Lock()
	if m.progress == nil {
		m.mu.Unlock()
		return nil, errors.New("no progress to sync")
	}
	data := *m.progress
	m.mu.Unlock()

	authoritative, conflict, err := m.client.ForceSync(ctx, data)
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		return conflict, nil
	}

	if authoritative != nil {
		m.mu.Lock()
		m.progress = authoritative
		m.mu.Unlock()
		m.persist()
	}
	return nil, nil
}

// Reset 清空本地状态并重建默认文档，已登录时同步覆盖后端。
func (m *Manager) Reset(ctx context.Context) (model.ProgressData, error) {
	now := time.Now()
	d := model.NewDefaultProgressData(now)

	m.mu.Lock()
	m.progress = &d
	m.queue = newWriteQueue(nil)
	m.mu.Unlock()

	if err := m.persist(); err != nil {
		return d, err
	}

	if m.client.Token() != "" {
		// 后端重置失败不影响本地结果，下一次同步会覆盖
		m.client.ResetProgress(ctx)
	}
	return d, nil
}

// Progress 返回当前本地文档的副本。
func (m *Manager) Progress() *model.ProgressData {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.progress == nil {
		return nil
	}
	data := *m.progress
	return &data
}

func (m *Manager) Status() SyncStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	var lastSync time.Time
	if m.progress != nil {
		lastSync = m.progress.LastSync
	}
	return SyncStatus{
		Online:    m.online,
		Syncing:   m.syncing,
		QueueLen:  m.queue.Len(),
		Abandoned: m.abandoned.Load(),
		LastSync:  lastSync,
		HasToken:  m.client.Token() != "",
	}
}

// drainQueue 单消费者排空：头部取出、一次一个在途请求；失败项移到队尾
// 并按指数退避等待，超过重试上限的项被放弃而不是无限阻塞。
func (m *Manager) drainQueue(ctx context.Context) {
	m.mu.Lock()
	if m.syncing || !m.online || m.queue.Len() == 0 || m.client.Token() == "" {
		m.mu.Unlock()
		return
	}
	m.syncing = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.syncing = false
		m.mu.Unlock()
		m.persist()
	}()

	for {
		select {
		case <-m.done:
			return
		default:
		}

		m.mu.Lock()
		if !m.online {
			m.mu.Unlock()
			return
		}
		item, ok := m.queue.Head()
		if !ok {
			m.mu.Unlock()
			return
		}

		if item.Attempts >= m.opts.MaxRetries {
			m.queue.PopHead()
			m.mu.Unlock()
			m.abandoned.Add(1)
			if m.opts.OnAbandon != nil {
				m.opts.OnAbandon(item)
			}
			continue
		}

		m.queue.MarkHeadInFlight()
		m.mu.Unlock()

		data, err := m.client.UpdateActivity(ctx, item.Level, item.Activity, item.Rewards, item.IsCompleted)
		if err == nil {
			m.mu.Lock()
			m.queue.PopHead()
			if data != nil {
				m.progress = data
			}
			m.mu.Unlock()
			m.persist()
			continue
		}

		// 4xx 是后端的明确拒绝，重试不会有不同结果
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			m.mu.Lock()
			m.queue.PopHead()
			m.mu.Unlock()
			m.abandoned.Add(1)
			if m.opts.OnAbandon != nil {
				m.opts.OnAbandon(item)
			}
			m.persist()
			continue
		}

		// 其余失败：计一次尝试，移到队尾，退避后继续处理下一项
		m.mu.Lock()
		m.queue.PopHead()
		item.Attempts++
		m.queue.RequeueTail(item)
		m.mu.Unlock()
		m.persist()

		delay := m.opts.RetryDelays[len(m.opts.RetryDelays)-1]
		if item.Attempts-1 < len(m.opts.RetryDelays) {
			delay = m.opts.RetryDelays[item.Attempts-1]
		}
		select {
		case <-m.done:
			return
		case <-time.After(delay):
		}
	}
}

// refreshTokenIfNeeded 令牌临近过期时提前刷新，失败不致命。
func (m *Manager) refreshTokenIfNeeded(ctx context.Context) {
	token := m.client.Token()
	if token == "" {
		return
	}

	exp, err := tokenExpiry(token)
	if err != nil {
		return
	}
	if time.Until(exp) >= tokenRefreshWindow {
		return
	}

	if err := m.client.RefreshToken(ctx); err == nil {
		m.persist()
	}
}

// tokenExpiry 只解码exp字段做本地检查，不验证签名（签名由服务端验证）。
func tokenExpiry(token string) (time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, errors.New("malformed token")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}, err
	}
	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return time.Time{}, err
	}
	return time.Unix(claims.Exp, 0), nil
}

func (m *Manager) persist() error {
	m.mu.Lock()
	st := &State{
		Token:    m.client.Token(),
		Username: m.username,
		Progress: m.progress,
		Queue:    m.queue.Items(),
	}
	m.mu.Unlock()
	return m.store.Save(st)
}
