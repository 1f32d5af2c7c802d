// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fatwa-rag-go/internal/config"
	"fatwa-rag-go/pkg/log"
	"fatwa-rag-go/pkg/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// maxAttempts 之后提交 offset，不再重试该任务。
const maxAttempts = 3

// TaskProcessor 处理一个导入任务。
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.IngestTask) error
}

var producer *kafka.Writer

func brokers(cfg config.KafkaConfig) []string {
	parts := strings.Split(cfg.Brokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(brokers(cfg)...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// CloseProducer 关闭生产者。
func CloseProducer() error {
	if producer == nil {
		return nil
	}
	return producer.Close()
}

// ProduceIngestTask 发送一个导入任务，对象名作为消息 key。
func ProduceIngestTask(ctx context.Context, task tasks.IngestTask) error {
	if producer == nil {
		return errors.New("kafka producer is not initialized")
	}
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.ObjectName),
		Value: taskBytes,
	})
}

func attemptsKey(task tasks.IngestTask) string {
	return fmt.Sprintf("kafka:attempts:%s:%s", task.Language, task.ObjectName)
}

// StartConsumer 阻塞消费导入任务，直到 ctx 被取消。
// 失败次数记录在 Redis 中，达到 maxAttempts 后提交 offset 放弃该任务。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor, rdb *redis.Client) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s', group: %s", cfg.Topic, cfg.GroupID)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Error("从 Kafka 读取消息失败", err)
			return
		}

		var task tasks.IngestTask
		if err := json.Unmarshal(m.Value, &task); err != nil || task.ObjectName == "" {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 格式错误的消息直接提交，避免阻塞队列
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		log.Infof("开始处理导入任务: object=%s, lang=%s, offset=%d", task.ObjectName, task.Language, m.Offset)
		if err := processor.Process(ctx, task); err != nil {
			log.Errorf("处理导入任务失败: object=%s, err: %v", task.ObjectName, err)
			attempts, incErr := rdb.Incr(ctx, attemptsKey(task)).Result()
			if incErr != nil {
				// Redis 异常时不提交 offset，让 Kafka 重投
				continue
			}
			_ = rdb.Expire(ctx, attemptsKey(task), 24*time.Hour).Err()
			if attempts >= maxAttempts {
				log.Errorf("导入任务失败 %d 次，提交 offset 终止重试: object=%s", attempts, task.ObjectName)
				if err := r.CommitMessages(ctx, m); err != nil {
					log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
				}
			}
			continue
		}

		log.Infof("导入任务处理成功: object=%s", task.ObjectName)
		_ = rdb.Del(ctx, attemptsKey(task)).Err()
		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}
}
