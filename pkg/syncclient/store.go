package syncclient

import (
	"arithmo_backend/internal/model"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// State 本地持久化的全部客户端状态：令牌、身份、进度缓存和待同步队列。
// 对应浏览器版本里的 localStorage 键。
type State struct {
	Token    string              `json:"token,omitempty"`
	Username string              `json:"username,omitempty"`
	Progress *model.ProgressData `json:"progress,omitempty"`
	Queue    []PendingWrite      `json:"queue,omitempty"`
}

// Store JSON文件形式的状态持久化，写入经临时文件+rename保证原子性。
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load 文件不存在时返回空状态。
func (s *Store) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &State{}, nil
	}
	if err != nil {
		return nil, err
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) Save(st *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
