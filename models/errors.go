package models

import (
	"errors"
	"fmt"
)

// 编排层统一使用的错误
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input data")
	ErrLimitExceeded   = errors.New("usage limit exceeded")
	ErrNotReady        = errors.New("stage not ready")
	ErrNamingCollision = errors.New("digital name already taken")
	ErrExternalFailure = errors.New("external generation failed")
)

// NotReadyError 标明是哪个阶段阻塞了后续操作
type NotReadyError struct {
	Stage  string
	Reason string
}

func (e *NotReadyError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s not ready", e.Stage)
	}
	return fmt.Sprintf("%s not ready: %s", e.Stage, e.Reason)
}

func (e *NotReadyError) Unwrap() error {
	return ErrNotReady
}

func notReady(stage, reason string) error {
	return &NotReadyError{Stage: stage, Reason: reason}
}
