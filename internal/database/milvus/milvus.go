package milvus

import (
	"context"
	"fmt"
	"log"
	"sync"

	"Mnemo/internal/config"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

var (
	instance *MilvusClient
	once     sync.Once
	initErr  error
)

// MilvusClient 包含了 Milvus 客户端实例和相关配置。
// 语义记忆（带嵌入向量的事实）存储在 Milvus 中。
type MilvusClient struct {
	Client client.Client        // Milvus 客户端实例。
	Config *config.MilvusConfig // Milvus 配置。
}

// GetClient 使用单例模式创建并返回一个 Milvus 客户端实例。
func GetClient(ctx context.Context, cfg *config.MilvusConfig) (*MilvusClient, error) {
	once.Do(func() {
		c, err := client.NewClient(ctx, client.Config{Address: cfg.Address})
		if err != nil {
			initErr = fmt.Errorf("无法连接到 Milvus: %w", err)
			return
		}
		log.Println("✅ 成功连接到 Milvus!")
		instance = &MilvusClient{Client: c, Config: cfg}
	})
	return instance, initErr
}

// Close 安全地关闭与 Milvus 的连接。
func (c *MilvusClient) Close() {
	if c.Client != nil {
		c.Client.Close()
		log.Println("ℹ️ 已安全关闭 Milvus 连接。")
	}
}

// HealthCheck 检查 Milvus 连接的健康状况。
func (c *MilvusClient) HealthCheck(ctx context.Context) error {
	if c.Client == nil {
		return fmt.Errorf("Milvus client is nil")
	}
	if _, err := c.Client.ListCollections(ctx); err != nil {
		return fmt.Errorf("Milvus health check failed: %w", err)
	}
	return nil
}

// EnsureCollection 确保配置中声明的集合存在、建好索引并已加载。
// 集合不存在时根据 Schema 配置创建。
func (c *MilvusClient) EnsureCollection(ctx context.Context) error {
	collName := c.Config.Schema.CollectionName
	exists, err := c.Client.HasCollection(ctx, collName)
	if err != nil {
		return fmt.Errorf("检查集合是否存在时出错: %w", err)
	}

	if !exists {
		schema := entity.NewSchema().
			WithName(collName).
			WithDescription(c.Config.Schema.Description)

		for _, fieldCfg := range c.Config.Schema.Fields {
			field := entity.NewField().WithName(fieldCfg.Name)
			if fieldCfg.IsPrimaryKey {
				field = field.WithIsPrimaryKey(true)
			}

			switch fieldCfg.DataType {
			case "Int64":
				field = field.WithDataType(entity.FieldTypeInt64)
			case "VarChar":
				field = field.WithDataType(entity.FieldTypeVarChar).WithMaxLength(int64(fieldCfg.MaxLength))
			case "FloatVector":
				field = field.WithDataType(entity.FieldTypeFloatVector).WithDim(int64(fieldCfg.Dim))
			default:
				return fmt.Errorf("不支持的数据类型: %s", fieldCfg.DataType)
			}

			schema = schema.WithField(field)
		}

		if err := c.Client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("创建集合失败: %w", err)
		}

		idx, err := c.buildIndexFromConfig()
		if err != nil {
			return err
		}
		if err := c.Client.CreateIndex(ctx, collName, c.Config.Schema.Index.FieldName, idx, false); err != nil {
			return fmt.Errorf("为字段 '%s' 创建索引失败: %w", c.Config.Schema.Index.FieldName, err)
		}
		log.Printf("✅ 成功创建集合: %s", collName)
	}

	if err := c.Client.LoadCollection(ctx, collName, false); err != nil {
		return fmt.Errorf("加载 Milvus 集合 '%s' 失败: %w", collName, err)
	}
	return nil
}

// buildIndexFromConfig 是一个辅助函数，用于从配置构建索引实体。
func (c *MilvusClient) buildIndexFromConfig() (entity.Index, error) {
	indexCfg := c.Config.Schema.Index
	metricType := entity.MetricType(indexCfg.MetricType)

	switch indexCfg.IndexType {
	case "IVF_FLAT":
		nlist, ok := indexCfg.Params["nlist"].(int)
		if !ok {
			nlist = 128
		}
		return entity.NewIndexIvfFlat(metricType, nlist)
	case "HNSW":
		m, ok := indexCfg.Params["M"].(int)
		if !ok {
			m = 8
		}
		efConstruction, ok := indexCfg.Params["efConstruction"].(int)
		if !ok {
			efConstruction = 96
		}
		return entity.NewIndexHNSW(metricType, m, efConstruction)
	case "AUTOINDEX":
		return entity.NewIndexAUTOINDEX(metricType)
	default:
		return nil, fmt.Errorf("不支持的索引类型: %s", indexCfg.IndexType)
	}
}
