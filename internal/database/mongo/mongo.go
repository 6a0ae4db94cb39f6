package mongo

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"Mnemo/internal/config"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	client  *mongo.Client
	once    sync.Once
	initErr error
)

// GetClient 使用单例模式初始化并返回一个 MongoDB 客户端实例。
// 程序性记忆（用户目标与偏好）存储在 MongoDB 中。
func GetClient(cfg *config.MongoConfig) (*mongo.Client, error) {
	once.Do(func() {
		clientOptions := options.Client().ApplyURI(cfg.Address)
		if cfg.Username != "" && cfg.Password != "" {
			clientOptions.SetAuth(options.Credential{
				Username: cfg.Username,
				Password: cfg.Password,
			})
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		c, err := mongo.Connect(ctx, clientOptions)
		if err != nil {
			initErr = fmt.Errorf("无法连接到 MongoDB: %w", err)
			return
		}

		// 检查连接是否成功（Ping 数据库）。
		if err = c.Ping(ctx, nil); err != nil {
			initErr = fmt.Errorf("无法 Ping MongoDB: %w", err)
			return
		}

		log.Println("✅ 成功连接到 MongoDB!")
		client = c
	})

	return client, initErr
}

// Close 安全地断开单例的 MongoDB 客户端连接。
func Close(ctx context.Context) error {
	if client != nil {
		return client.Disconnect(ctx)
	}
	return nil
}

// HealthCheck 检查 MongoDB 连接的健康状况。
func HealthCheck(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("MongoDB 客户端未初始化")
	}
	return client.Ping(ctx, nil)
}
