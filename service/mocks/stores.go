package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"DigitalHuman-server/models"
	"DigitalHuman-server/service"
)

// MemoryTaskStore 内存版 Task 存储，读写都做深拷贝，行为接近文档数据库
type MemoryTaskStore struct {
	mu    sync.Mutex
	docs  map[string][]byte
	Saves int
}

func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{docs: map[string][]byte{}}
}

func (s *MemoryTaskStore) GetTask(_ context.Context, taskID string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, models.ErrNotFound)
	}
	var t models.Task
	if err := json.Unmarshal(doc, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *MemoryTaskStore) SaveTask(_ context.Context, t *models.Task) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[t.TaskID] = doc
	s.Saves++
	return nil
}

// Put 直接写入，测试准备数据用
func (s *MemoryTaskStore) Put(t *models.Task) {
	_ = s.SaveTask(context.Background(), t)
}

// MemoryDigitalHumanStore 按 digital_name 唯一
type MemoryDigitalHumanStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func NewMemoryDigitalHumanStore() *MemoryDigitalHumanStore {
	return &MemoryDigitalHumanStore{docs: map[string][]byte{}}
}

func (s *MemoryDigitalHumanStore) GetDigitalHuman(_ context.Context, digitalName string) (*models.DigitalHuman, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[digitalName]
	if !ok {
		return nil, fmt.Errorf("digital human %s: %w", digitalName, models.ErrNotFound)
	}
	var dh models.DigitalHuman
	if err := json.Unmarshal(doc, &dh); err != nil {
		return nil, err
	}
	return &dh, nil
}

// CreateDigitalHuman 和唯一索引一样，名字已存在就拒绝
func (s *MemoryDigitalHumanStore) CreateDigitalHuman(_ context.Context, dh *models.DigitalHuman) error {
	doc, err := json.Marshal(dh)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[dh.DigitalName]; ok {
		return fmt.Errorf("%w: %s", models.ErrNamingCollision, dh.DigitalName)
	}
	s.docs[dh.DigitalName] = doc
	return nil
}

func (s *MemoryDigitalHumanStore) SaveDigitalHuman(_ context.Context, dh *models.DigitalHuman) error {
	doc, err := json.Marshal(dh)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.docs[dh.DigitalName]
	if !ok {
		return fmt.Errorf("digital human %s: %w", dh.DigitalName, models.ErrNotFound)
	}
	var existing models.DigitalHuman
	if err := json.Unmarshal(prev, &existing); err == nil && existing.ID != dh.ID {
		return fmt.Errorf("%w: %s", models.ErrNamingCollision, dh.DigitalName)
	}
	s.docs[dh.DigitalName] = doc
	return nil
}

var (
	_ service.TaskStore         = (*MemoryTaskStore)(nil)
	_ service.DigitalHumanStore = (*MemoryDigitalHumanStore)(nil)
)
