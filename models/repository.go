package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// TaskRepository Task 文档读写
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) GetTask(ctx context.Context, taskID string) (*Task, error) {
	var rec TaskRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
		}
		return nil, fmt.Errorf("查询任务失败: %w", err)
	}
	return rec.Task(), nil
}

// SaveTask 整体覆盖写入（不存在则插入）
func (r *TaskRepository) SaveTask(ctx context.Context, t *Task) error {
	t.UpdatedAt = time.Now()
	if err := r.db.WithContext(ctx).Save(NewTaskRecord(t)).Error; err != nil {
		return fmt.Errorf("保存任务失败: %w", err)
	}
	return nil
}

// DigitalHumanRepository 发布记录读写
type DigitalHumanRepository struct {
	db *gorm.DB
}

func NewDigitalHumanRepository(db *gorm.DB) *DigitalHumanRepository {
	return &DigitalHumanRepository{db: db}
}

func (r *DigitalHumanRepository) GetDigitalHuman(ctx context.Context, name string) (*DigitalHuman, error) {
	var dh DigitalHuman
	if err := r.db.WithContext(ctx).First(&dh, "digital_name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("digital human %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("查询数字人失败: %w", err)
	}
	return &dh, nil
}

// CreateDigitalHuman 首次发布只插入；digital_name 已被占用时返回 ErrNamingCollision
func (r *DigitalHumanRepository) CreateDigitalHuman(ctx context.Context, dh *DigitalHuman) error {
	if err := r.db.WithContext(ctx).Create(dh).Error; err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s", ErrNamingCollision, dh.DigitalName)
		}
		return fmt.Errorf("创建数字人失败: %w", err)
	}
	return nil
}

// SaveDigitalHuman 按主键更新已有记录
func (r *DigitalHumanRepository) SaveDigitalHuman(ctx context.Context, dh *DigitalHuman) error {
	err := r.db.WithContext(ctx).Model(&DigitalHuman{ID: dh.ID}).
		Select("*").Omit("id", "created_at").Updates(dh).Error
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s", ErrNamingCollision, dh.DigitalName)
		}
		return fmt.Errorf("保存数字人失败: %w", err)
	}
	return nil
}

// 1062: Duplicate entry
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysqldrv.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
