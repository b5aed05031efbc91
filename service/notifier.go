package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"DigitalHuman-server/models"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const stageEventExchangeType = "topic"

// StageEvent 阶段结束后发出的事件
type StageEvent struct {
	TaskID     string               `json:"task_id"`
	Stage      string               `json:"stage"`
	Key        string               `json:"key,omitempty"`
	SubTaskID  string               `json:"sub_task_id"`
	Status     models.SubTaskStatus `json:"status"`
	FinishedAt time.Time            `json:"finished_at"`
}

func (e StageEvent) routingKey() string {
	if e.Key != "" {
		return fmt.Sprintf("stage.%s.%s", e.Stage, e.Key)
	}
	return "stage." + e.Stage
}

// RabbitMQNotifier 发布到 topic exchange，routing key 为 stage.<stage>[.<key>]
type RabbitMQNotifier struct {
	conn     *amqp091.Connection
	ch       *amqp091.Channel
	exchange string
	log      *zap.Logger
}

func NewRabbitMQNotifier(url, exchange string, log *zap.Logger) (*RabbitMQNotifier, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		stageEventExchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", exchange, err)
	}
	log.Info("阶段事件 exchange 已声明", zap.String("exchange", exchange))
	return &RabbitMQNotifier{conn: conn, ch: ch, exchange: exchange, log: log.Named("notifier")}, nil
}

func (n *RabbitMQNotifier) StageFinished(ctx context.Context, event StageEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal stage event: %w", err)
	}
	err = n.ch.PublishWithContext(ctx,
		n.exchange,
		event.routingKey(),
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Body:         body,
			Timestamp:    event.FinishedAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish stage event: %w", err)
	}
	n.log.Debug("阶段事件已发布", zap.String("task_id", event.TaskID), zap.String("routing_key", event.routingKey()))
	return nil
}

func (n *RabbitMQNotifier) Close() error {
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

// NoopNotifier 未配置 rabbitmq 时使用
type NoopNotifier struct{}

func (NoopNotifier) StageFinished(context.Context, StageEvent) error { return nil }

func (NoopNotifier) Close() error { return nil }
