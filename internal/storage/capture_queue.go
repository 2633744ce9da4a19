package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"instrument-control/pkg/protocol"
)

type CaptureQueue struct {
	client  *redis.Client
	channel string
	limit   int64
	log     *logrus.Logger
}

func NewCaptureQueue(addr, password, channel string, db int, poolSize int, limit int64, log *logrus.Logger) (*CaptureQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	// 测试连接
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接Redis失败: %w", err)
	}

	log.Info("Redis连接成功")

	return &CaptureQueue{
		client:  client,
		channel: channel,
		limit:   historyLimit(limit),
		log:     log,
	}, nil
}

// Publish 发布采集记录，并在列表中保留最近 limit 条
func (q *CaptureQueue) Publish(ctx context.Context, rec *protocol.CaptureRecord) error {
	jsonData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("序列化数据失败: %w", err)
	}

	if err := q.client.Publish(ctx, q.channel, jsonData).Err(); err != nil {
		return fmt.Errorf("发布消息失败: %w", err)
	}

	key := listKey(rec.Instrument)
	if err := q.client.LPush(ctx, key, jsonData).Err(); err != nil {
		q.log.Warnf("保存到List失败: %v", err)
		return nil
	}
	if err := q.client.LTrim(ctx, key, 0, q.limit-1).Err(); err != nil {
		q.log.Warnf("裁剪历史记录失败: %v", err)
	}

	q.log.Debugf("采集记录已发布 [%s]: %s 通道=%d", rec.Instrument, rec.Kind, rec.Channel)
	return nil
}

// PublishBatch 在一个 pipeline 中发布多条记录
func (q *CaptureQueue) PublishBatch(ctx context.Context, records []*protocol.CaptureRecord) error {
	if len(records) == 0 {
		return nil
	}
	pipe := q.client.Pipeline()

	for _, rec := range records {
		jsonData, err := json.Marshal(rec)
		if err != nil {
			q.log.Errorf("序列化数据失败: %v", err)
			continue
		}

		key := listKey(rec.Instrument)
		pipe.Publish(ctx, q.channel, jsonData)
		pipe.LPush(ctx, key, jsonData)
		pipe.LTrim(ctx, key, 0, q.limit-1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("批量发布失败: %w", err)
	}
	q.log.Debugf("批量发布 %d 条采集记录", len(records))
	return nil
}

// Recent 读取某台仪器最近的 n 条记录，最新的在前
func (q *CaptureQueue) Recent(ctx context.Context, instrument string, n int64) ([]*protocol.CaptureRecord, error) {
	values, err := q.client.LRange(ctx, listKey(instrument), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("读取历史记录失败: %w", err)
	}

	records := make([]*protocol.CaptureRecord, 0, len(values))
	for _, v := range values {
		var rec protocol.CaptureRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			q.log.Warnf("跳过无法解析的记录: %v", err)
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

// Close 关闭连接
func (q *CaptureQueue) Close() error {
	return q.client.Close()
}

func listKey(instrument string) string {
	return fmt.Sprintf("instrument:%s:captures", instrument)
}

func historyLimit(limit int64) int64 {
	if limit <= 0 {
		return 1000
	}
	return limit
}
