// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Retrieval     RetrievalConfig     `mapstructure:"retrieval"`
	Ingestion     IngestionConfig     `mapstructure:"ingestion"`
	Conversation  ConversationConfig  `mapstructure:"conversation"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
	Bolt  BoltConfig  `mapstructure:"bolt"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// ChunkTTLHours 为分块缓存的过期时间，0 表示不过期。
	ChunkTTLHours int `mapstructure:"chunk_ttl_hours"`
}

// BoltConfig 存储本地 bbolt 分块库的配置，用于单机部署和离线导入。
type BoltConfig struct {
	Path string `mapstructure:"path"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	BatchSize  int    `mapstructure:"batch_size"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
	Prompt     LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig 配置系统提示与上下文包裹格式（可选）。
type LLMPromptConfig struct {
	Rules    string `mapstructure:"rules"`
	RefStart string `mapstructure:"ref_start"`
	RefEnd   string `mapstructure:"ref_end"`
}

// RetrievalConfig 是检索策略对象，集中了所有检索相关的可调参数。
type RetrievalConfig struct {
	TopK                int     `mapstructure:"top_k"`
	HitScoreFloor       float64 `mapstructure:"hit_score_floor"`
	MaxContextTokens    int     `mapstructure:"max_context_tokens"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	// MaxDocuments 限制进入上下文的文档数，0 表示不限制。
	MaxDocuments int `mapstructure:"max_documents"`
	// MaxFetchChunks 限制一次检索涉及文档的分块总数，0 表示不限制。
	MaxFetchChunks int `mapstructure:"max_fetch_chunks"`
	// SourceOrder 为 "score"（按文档得分）或 "hit"（按命中顺序）。
	SourceOrder string `mapstructure:"source_order"`
	// ChunkStore 为 redis、mysql、elasticsearch、bolt 或 tiered。
	ChunkStore string                    `mapstructure:"chunk_store"`
	Languages  map[string]LanguageConfig `mapstructure:"languages"`
}

// LanguageConfig 存储单个语言命名空间的配置。
type LanguageConfig struct {
	IndexName      string   `mapstructure:"index_name"`
	AnswerMarkers  []string `mapstructure:"answer_markers"`
	QuestionLabel  string   `mapstructure:"question_label"`
	AnswerLabel    string   `mapstructure:"answer_label"`
	SourcesLabel   string   `mapstructure:"sources_label"`
	NoResultText   string   `mapstructure:"no_result_text"`
	EmbeddingModel string   `mapstructure:"embedding_model"`
}

// IngestionConfig 存储导入流水线的配置。
type IngestionConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	Concurrency  int `mapstructure:"concurrency"`
	// SeedDir 非空时，服务启动后导入该目录下的 dump 文件。
	SeedDir string `mapstructure:"seed_dir"`
}

// ConversationConfig 存储对话记忆的配置。
type ConversationConfig struct {
	MaxMessages int `mapstructure:"max_messages"`
	TTLHours    int `mapstructure:"ttl_hours"`
}

var defaultLanguages = map[string]LanguageConfig{
	"en": {
		IndexName:     "fatawa-in-english",
		AnswerMarkers: []string{"answer:"},
		QuestionLabel: "Question",
		AnswerLabel:   "Answer",
		SourcesLabel:  "Sources",
		NoResultText:  "(no relevant fatwas were found for this question)",
	},
	"ar": {
		IndexName:     "fatawa-in-arabic",
		AnswerMarkers: []string{"answer:", "الجواب:"},
		QuestionLabel: "السؤال",
		AnswerLabel:   "الجواب",
		SourcesLabel:  "المصادر",
		NoResultText:  "(لم يتم العثور على فتاوى ذات صلة بهذا السؤال)",
	},
}

// ForLanguage 返回指定语言的配置，缺失的字段使用默认值补齐。
func (c RetrievalConfig) ForLanguage(tag string) LanguageConfig {
	def := defaultLanguages[tag]
	lc, ok := c.Languages[tag]
	if !ok {
		return def
	}
	if lc.IndexName == "" {
		lc.IndexName = def.IndexName
	}
	if len(lc.AnswerMarkers) == 0 {
		lc.AnswerMarkers = def.AnswerMarkers
	}
	if lc.QuestionLabel == "" {
		lc.QuestionLabel = def.QuestionLabel
	}
	if lc.AnswerLabel == "" {
		lc.AnswerLabel = def.AnswerLabel
	}
	if lc.SourcesLabel == "" {
		lc.SourcesLabel = def.SourcesLabel
	}
	if lc.NoResultText == "" {
		lc.NoResultText = def.NoResultText
	}
	return lc
}

// EmbeddingFor 返回指定语言使用的 embedding 配置。
func (c Config) EmbeddingFor(tag string) EmbeddingConfig {
	ec := c.Embedding
	if m := c.Retrieval.ForLanguage(tag).EmbeddingModel; m != "" {
		ec.Model = m
	}
	return ec
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8081")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("kafka.group_id", "fatwa-rag-ingest")
	v.SetDefault("kafka.topic", "fatwa-ingest")
	v.SetDefault("jwt.access_token_expire_hours", 24)
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.hit_score_floor", 0.0)
	v.SetDefault("retrieval.max_context_tokens", 500)
	v.SetDefault("retrieval.similarity_threshold", 0.7)
	v.SetDefault("retrieval.max_documents", 0)
	v.SetDefault("retrieval.max_fetch_chunks", 0)
	v.SetDefault("retrieval.source_order", "score")
	v.SetDefault("retrieval.chunk_store", "tiered")
	v.SetDefault("ingestion.chunk_size", 1000)
	v.SetDefault("ingestion.chunk_overlap", 200)
	v.SetDefault("ingestion.concurrency", 4)
	v.SetDefault("conversation.max_messages", 20)
	v.SetDefault("conversation.ttl_hours", 168)
	v.SetDefault("database.redis.chunk_ttl_hours", 0)
}

// Load 从指定路径读取 YAML 配置，不修改全局 Conf。
// 环境变量以 FATWA_ 为前缀覆盖配置项，例如 FATWA_RETRIEVAL_TOP_K。
func Load(configPath string) (Config, error) {
	// .env 文件是可选的
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("读取 .env 文件失败: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FATWA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Retrieval.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}

func (c RetrievalConfig) validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k 必须大于 0, 当前为 %d", c.TopK)
	}
	if c.MaxContextTokens <= 0 {
		return fmt.Errorf("retrieval.max_context_tokens 必须大于 0, 当前为 %d", c.MaxContextTokens)
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("retrieval.similarity_threshold 必须位于 (0, 1], 当前为 %v", c.SimilarityThreshold)
	}
	switch c.SourceOrder {
	case "score", "hit":
	default:
		return fmt.Errorf("retrieval.source_order 不支持: %q", c.SourceOrder)
	}
	switch c.ChunkStore {
	case "redis", "mysql", "elasticsearch", "bolt", "tiered":
	default:
		return fmt.Errorf("retrieval.chunk_store 不支持: %q", c.ChunkStore)
	}
	return nil
}
