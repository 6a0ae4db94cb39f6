package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FieldConfig 定义了 Milvus 集合中字段的配置。
type FieldConfig struct {
	Name         string `yaml:"name"`                // 字段名称
	DataType     string `yaml:"dataType"`            // 字段数据类型 (例如: "Int64", "VarChar", "FloatVector")
	IsPrimaryKey bool   `yaml:"isPrimaryKey"`        // 是否为主键
	Dim          int    `yaml:"dim,omitempty"`       // 向量维度 (仅适用于向量类型)
	MaxLength    int    `yaml:"maxLength,omitempty"` // 最大长度 (仅适用于VarChar类型)
}

// IndexConfig 定义了 Milvus 集合中索引的配置。
type IndexConfig struct {
	FieldName  string                 `yaml:"fieldName"`  // 要创建索引的字段名称
	IndexType  string                 `yaml:"indexType"`  // 索引类型 (例如: "IVF_FLAT", "HNSW")
	MetricType string                 `yaml:"metricType"` // 相似度度量类型 (例如: "COSINE", "L2")
	Params     map[string]interface{} `yaml:"params"`     // 索引参数 (例如: {"nlist": 128})
}

// SchemaConfig 定义了 Milvus 集合的 Schema 配置。
type SchemaConfig struct {
	CollectionName string        `yaml:"collectionName"` // 集合名称
	Description    string        `yaml:"description"`    // 集合描述
	VectorField    string        `yaml:"vectorField"`    // 向量字段名称
	Fields         []FieldConfig `yaml:"fields"`         // 字段配置列表
	Index          IndexConfig   `yaml:"index"`          // 索引配置
}

// MilvusConfig 定义了 Milvus 数据库的连接和 Schema 配置。
type MilvusConfig struct {
	Address string       `yaml:"address"` // Milvus 服务地址
	Schema  SchemaConfig `yaml:"schema"`  // Milvus 集合 Schema 配置
}

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
}

// MongoConfig 定义了 MongoDB 数据库的连接配置。
type MongoConfig struct {
	Address    string `yaml:"address"`    // MongoDB 服务器地址
	Username   string `yaml:"username"`   // 用户名
	Password   string `yaml:"password"`   // 密码
	Database   string `yaml:"database"`   // 数据库名称
	Collection string `yaml:"collection"` // 目标集合名称（用户目标/偏好）
}

// EtcdConfig 定义了 Etcd 服务发现的连接配置。
type EtcdConfig struct {
	Endpoints []string `yaml:"endpoints"` // Etcd 节点地址列表
	Username  string   `yaml:"username"`  // 用户名
	Password  string   `yaml:"password"`  // 密码
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"` // Kafka Broker 地址列表
	Topics  []string `yaml:"topics"`  // Kafka 主题列表
	GroupID string   `yaml:"groupID"` // 消费者组ID
}

// DatabaseConfigs 包含所有数据库的配置。
type DatabaseConfigs struct {
	Milvus  MilvusConfig `yaml:"milvus"`  // Milvus 数据库配置
	Redis   RedisConfig  `yaml:"redis"`   // Redis 数据库配置
	MongoDB MongoConfig  `yaml:"mongodb"` // MongoDB 数据库配置
	Etcd    EtcdConfig   `yaml:"etcd"`    // Etcd 服务发现配置
	Kafka   KafkaConfig  `yaml:"kafka"`   // Kafka 消息队列配置
}

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// ServerConfig 定义了 HTTP 服务的监听配置。
type ServerConfig struct {
	Address string `yaml:"address"` // 监听地址 (例如: ":8085")
}

// MemoryConfig 定义了记忆子系统的领域调优参数。
// 去重阈值、数值容差和历史长度等默认值来自对源数据的经验观察，
// 因此全部作为配置暴露，而不是写死在代码里。
type MemoryConfig struct {
	Backend         string  `yaml:"backend"`         // 存储后端: "distributed" (redis+milvus+mongo) 或 "local" (进程内)
	MaxHistoryTurns int     `yaml:"maxHistoryTurns"` // 每个会话保留的最大回合数 (FIFO 淘汰)
	SessionTTL      string  `yaml:"sessionTTL"`      // 会话过期时间 (例如: "30m")，每次追加时刷新
	DedupThreshold  float64 `yaml:"dedupThreshold"`  // 事实去重的余弦相似度阈值
	TopK            int     `yaml:"topK"`            // 语义检索返回的最大条数
	MinSimilarity   float64 `yaml:"minSimilarity"`   // 语义检索的相似度下限
	RetrieveTimeout string  `yaml:"retrieveTimeout"` // 单次上下文检索的超时时间 (例如: "2s")
}

// ValidatorConfig 定义了数值校验器的配置。
type ValidatorConfig struct {
	Tolerance      float64 `yaml:"tolerance"`      // 模糊匹配的相对容差 (例如: 0.10 表示 10%)
	CorrectionMode string  `yaml:"correctionMode"` // 纠正策略: "substitute" (替换为工具值) 或 "flag" (标注不确定)
}

// EmbeddingConfig 包含了 Embedding 提供商的配置。
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`  // Embedding提供商 (例如: "gemini", "openai", "ollama")
	Model     string `yaml:"model"`     // 模型名称
	APIKey    string `yaml:"apiKey"`    // API 密钥
	BaseURL   string `yaml:"baseURL"`   // 服务基础 URL (ollama 等本地提供商使用)
	Dimension int    `yaml:"dimension"` // 向量维度，必须与 Milvus Schema 中的维度一致
	CacheSize int    `yaml:"cacheSize"` // 文本->向量 LRU 缓存容量，0 表示禁用缓存
	Timeout   string `yaml:"timeout"`   // 单次嵌入调用的超时时间 (例如: "2s")
}

// LLMConfig 包含了 LLM 提供商的配置（用于事实提取）。
type LLMConfig struct {
	Provider string `yaml:"provider"` // LLM提供商 (例如: "gemini")
	Model    string `yaml:"model"`    // 模型名称
	APIKey   string `yaml:"apiKey"`   // API 密钥
}

// MiddlewareConfig 包含所有中间件的配置。
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// RateLimiterConfig 定义了限流器的配置。
type RateLimiterConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Algorithm   string            `yaml:"algorithm"` // 支持: "fixedWindow", "tokenBucket"
	FixedWindow FixedWindowConfig `yaml:"fixedWindow"`
	TokenBucket TokenBucketConfig `yaml:"tokenBucket"`
}

// FixedWindowConfig 定义了固定窗口计数器算法的配置。
type FixedWindowConfig struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"` // 例如: "1m", "30s"
}

// TokenBucketConfig 定义了令牌桶算法的配置。
type TokenBucketConfig struct {
	Rate     float64 `yaml:"rate"` // 每秒速率
	Capacity int     `yaml:"capacity"`
}

// CircuitBreakerConfig 定义了保护 Embedding 提供商的熔断器配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // 例如: "30s"
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App        AppInfo          `yaml:"app"`        // 应用程序信息
	Logger     LoggerConfig     `yaml:"logger"`     // 日志记录器配置
	Server     ServerConfig     `yaml:"server"`     // HTTP 服务配置
	Memory     MemoryConfig     `yaml:"memory"`     // 记忆子系统配置
	Validator  ValidatorConfig  `yaml:"validator"`  // 数值校验器配置
	Embedding  EmbeddingConfig  `yaml:"embedding"`  // Embedding 配置部分
	LLM        LLMConfig        `yaml:"llm"`        // LLM 配置部分
	Databases  DatabaseConfigs  `yaml:"databases"`  // 数据库配置
	Middleware MiddlewareConfig `yaml:"middleware"` // 中间件配置
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
//
// 参数:
//
//	path: YAML 配置文件的路径。
//
// 返回值:
//
//	*AppConfig: 解析后的应用程序配置结构体。
//	error: 如果文件读取、解析或校验失败，则返回错误。
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(yamlFile, &cfg); err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 在服务启动前校验所有领域参数，无效配置直接拒绝启动。
func (cfg *AppConfig) Validate() error {
	m := &cfg.Memory
	if m.Backend == "" {
		m.Backend = "local"
	}
	if m.Backend != "local" && m.Backend != "distributed" {
		return fmt.Errorf("无效的存储后端 '%s'，支持 \"local\" 或 \"distributed\"", m.Backend)
	}
	if m.MaxHistoryTurns <= 0 {
		return fmt.Errorf("maxHistoryTurns 必须大于 0，当前为 %d", m.MaxHistoryTurns)
	}
	if m.DedupThreshold <= 0 || m.DedupThreshold > 1 {
		return fmt.Errorf("dedupThreshold 必须在 (0, 1] 范围内，当前为 %v", m.DedupThreshold)
	}
	if m.TopK <= 0 {
		return fmt.Errorf("topK 必须大于 0，当前为 %d", m.TopK)
	}
	if m.MinSimilarity < 0 || m.MinSimilarity > 1 {
		return fmt.Errorf("minSimilarity 必须在 [0, 1] 范围内，当前为 %v", m.MinSimilarity)
	}
	if _, err := parseDuration(m.SessionTTL, "sessionTTL"); err != nil {
		return err
	}
	if _, err := parseDuration(m.RetrieveTimeout, "retrieveTimeout"); err != nil {
		return err
	}

	v := &cfg.Validator
	if v.Tolerance <= 0 || v.Tolerance >= 1 {
		return fmt.Errorf("tolerance 必须在 (0, 1) 范围内，当前为 %v", v.Tolerance)
	}
	switch v.CorrectionMode {
	case "substitute", "flag":
	default:
		return fmt.Errorf("无效的纠正策略 '%s'，支持 \"substitute\" 或 \"flag\"", v.CorrectionMode)
	}

	e := &cfg.Embedding
	switch e.Provider {
	case "gemini", "openai", "ollama", "mock":
	default:
		return fmt.Errorf("无效的 Embedding 提供商 '%s'", e.Provider)
	}
	if e.Dimension <= 0 {
		return fmt.Errorf("embedding dimension 必须大于 0，当前为 %d", e.Dimension)
	}
	if e.Timeout != "" {
		if _, err := parseDuration(e.Timeout, "embedding timeout"); err != nil {
			return err
		}
	}
	return nil
}

// SessionTTLDuration 返回解析后的会话过期时间。必须在 Validate 通过后调用。
func (cfg *AppConfig) SessionTTLDuration() time.Duration {
	d, _ := time.ParseDuration(cfg.Memory.SessionTTL)
	return d
}

// RetrieveTimeoutDuration 返回解析后的上下文检索超时时间。
func (cfg *AppConfig) RetrieveTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(cfg.Memory.RetrieveTimeout)
	return d
}

func parseDuration(raw, field string) (time.Duration, error) {
	if raw == "" {
		return 0, fmt.Errorf("%s 未配置", field)
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("无效的 %s '%s': %w", field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s 必须为正值，当前为 %s", field, raw)
	}
	return d, nil
}
