// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"algojudge/internal/common/mq"
	"algojudge/internal/sandbox/engine"
	"algojudge/internal/sandbox/profile"

	"github.com/segmentio/kafka-go"
	"github.com/zeromicro/go-zero/rest"
)

type Config struct {
	rest.RestConf
	Log      LogConfig      `json:"log"`
	Kafka    KafkaConfig    `json:"kafka"`
	Storage  StorageConfig  `json:"storage"`
	Redis    RedisConfig    `json:"redis"`
	Worker   WorkerConfig   `json:"worker"`
	Judge    JudgeConfig    `json:"judge"`
	Sandbox  SandboxConfig  `json:"sandbox"`
	Language LanguageConfig `json:"language"`
}

// LogConfig drives the library-side zap logger; the go-zero surface keeps
// its own logx settings from RestConf.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// KafkaConfig holds queue transport settings.
type KafkaConfig struct {
	Brokers       []string      `json:"brokers"`
	ClientID      string        `json:"clientID"`
	ConsumeTopic  string        `json:"consumeTopic"`
	ProduceTopic  string        `json:"produceTopic"`
	ConsumerGroup string        `json:"consumerGroup"`
	MaxRetries    int           `json:"maxRetries"`
	RetryDelay    time.Duration `json:"retryDelay"`
	DeadLetter    string        `json:"deadLetter"`
	MessageTTL    time.Duration `json:"messageTTL"`
	MinBytes      int           `json:"minBytes"`
	MaxBytes      int           `json:"maxBytes"`
	MaxWait       time.Duration `json:"maxWait"`
	BatchSize     int           `json:"batchSize"`
	BatchTimeout  time.Duration `json:"batchTimeout"`
	DialTimeout   time.Duration `json:"dialTimeout"`
	ReadTimeout   time.Duration `json:"readTimeout"`
	WriteTimeout  time.Duration `json:"writeTimeout"`
	RequiredAcks  int           `json:"requiredAcks"`
	Compression   string        `json:"compression"`
}

// StorageConfig holds object storage settings for the test data bucket.
type StorageConfig struct {
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region"`
	AccessKey string `json:"accessKey"`
	SecretKey string `json:"secretKey"`
	UseSSL    bool   `json:"useSSL"`
	Bucket    string `json:"bucket"`
}

// RedisConfig holds the progress/lock/dedup redis settings.
type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// Addr joins host and port into a dial address.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	port := r.Port
	if port <= 0 {
		port = 6379
	}
	return fmt.Sprintf("%s:%d", r.Host, port)
}

// WorkerConfig holds worker pool settings.
type WorkerConfig struct {
	PoolSize     int           `json:"poolSize"`
	JudgeTimeout time.Duration `json:"judgeTimeout"`
}

// JudgeConfig holds judging filesystem settings. The host variants exist
// because the judge may itself run inside a container: bind mounts are
// interpreted by the host daemon, so workspace paths must be translated.
type JudgeConfig struct {
	TempDir         string        `json:"tempDir"`
	TempDirHost     string        `json:"tempDirHost"`
	ProblemDir      string        `json:"problemDir"`
	ProblemDirHost  string        `json:"problemDirHost"`
	LockWait        time.Duration `json:"lockWait"`
	StatusTTL       time.Duration `json:"statusTTL"`
	ResultMarkerTTL time.Duration `json:"resultMarkerTTL"`
	MaxSourceKb     int64         `json:"maxSourceKb"`
}

// SandboxConfig holds container sandbox settings.
type SandboxConfig struct {
	BinaryPath     string        `json:"binaryPath"`
	MountPoint     string        `json:"mountPoint"`
	PidsLimit      int64         `json:"pidsLimit"`
	CPUs           string        `json:"cpus"`
	TmpfsSizeMb    int64         `json:"tmpfsSizeMb"`
	RunAsUID       int64         `json:"runAsUid"`
	RunAsGID       int64         `json:"runAsGid"`
	KillGrace      time.Duration `json:"killGrace"`
	WallGrace      time.Duration `json:"wallGrace"`
	CompileTimeout time.Duration `json:"compileTimeout"`
	StdoutMaxBytes int64         `json:"stdoutMaxBytes"`
	StderrMaxBytes int64         `json:"stderrMaxBytes"`
}

// LanguageConfig holds language definitions; empty means the built-in
// table.
type LanguageConfig struct {
	Languages []profile.LanguageSpec `json:"languages"`
}

// ToMQConfig converts kafka settings to mq.KafkaConfig.
func (k KafkaConfig) ToMQConfig() mq.KafkaConfig {
	return mq.KafkaConfig{
		Brokers:      k.Brokers,
		ClientID:     k.ClientID,
		RequiredAcks: kafka.RequiredAcks(k.RequiredAcks),
		BatchSize:    k.BatchSize,
		BatchTimeout: k.BatchTimeout,
		Compression:  parseCompression(k.Compression),
		MinBytes:     k.MinBytes,
		MaxBytes:     k.MaxBytes,
		MaxWait:      k.MaxWait,
		DialTimeout:  k.DialTimeout,
		ReadTimeout:  k.ReadTimeout,
		WriteTimeout: k.WriteTimeout,
	}
}

// ToEngineConfig converts sandbox settings to engine.Config.
func (s SandboxConfig) ToEngineConfig() engine.Config {
	return engine.Config{
		BinaryPath:     s.BinaryPath,
		MountPoint:     s.MountPoint,
		PidsLimit:      s.PidsLimit,
		CPUs:           s.CPUs,
		TmpfsSizeMb:    s.TmpfsSizeMb,
		RunAsUID:       s.RunAsUID,
		RunAsGID:       s.RunAsGID,
		KillGrace:      s.KillGrace,
		StdoutMaxBytes: s.StdoutMaxBytes,
		StderrMaxBytes: s.StderrMaxBytes,
	}
}

// ApplyEnvOverrides overlays the deployment environment on the loaded
// yaml. The environment wins wherever it is set.
func ApplyEnvOverrides(c *Config) {
	if c == nil {
		return
	}
	setString(&c.Storage.Region, "AWS_REGION")
	setString(&c.Storage.AccessKey, "AWS_ACCESS_KEY_ID")
	setString(&c.Storage.SecretKey, "AWS_SECRET_ACCESS_KEY")
	setString(&c.Storage.Bucket, "S3_BUCKET_NAME")
	setString(&c.Kafka.ConsumeTopic, "CONSUME_QUEUE_NAME")
	setString(&c.Kafka.ProduceTopic, "PRODUCE_QUEUE_NAME")
	setString(&c.Redis.Host, "REDIS_HOST")
	setInt(&c.Redis.Port, "REDIS_PORT")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Judge.TempDir, "TEMP_DIR")
	setString(&c.Judge.TempDirHost, "TEMP_DIR_HOST")
	setString(&c.Judge.ProblemDir, "PROBLEM_DIR")
	setString(&c.Judge.ProblemDirHost, "PROBLEM_DIR_HOST")
}

// ApplyDefaults fills everything the yaml may leave out.
func ApplyDefaults(c *Config) {
	if c == nil {
		return
	}
	if c.Worker.PoolSize <= 0 {
		c.Worker.PoolSize = runtime.NumCPU()
	}
	if c.Kafka.ConsumerGroup == "" {
		c.Kafka.ConsumerGroup = "judge-workers"
	}
	if c.Kafka.MaxRetries <= 0 {
		c.Kafka.MaxRetries = 3
	}
	if c.Kafka.RetryDelay == 0 {
		c.Kafka.RetryDelay = time.Second
	}
	if c.Judge.TempDir == "" {
		c.Judge.TempDir = os.TempDir()
	}
	if c.Judge.ProblemDir == "" {
		c.Judge.ProblemDir = "problems"
	}
	if c.Judge.LockWait <= 0 {
		c.Judge.LockWait = 30 * time.Second
	}
	if c.Judge.StatusTTL <= 0 {
		c.Judge.StatusTTL = 30 * time.Minute
	}
	if c.Judge.ResultMarkerTTL <= 0 {
		c.Judge.ResultMarkerTTL = 24 * time.Hour
	}
	if c.Judge.MaxSourceKb <= 0 {
		c.Judge.MaxSourceKb = 256
	}
	if c.Sandbox.WallGrace <= 0 {
		c.Sandbox.WallGrace = 2 * time.Second
	}
	if c.Sandbox.CompileTimeout <= 0 {
		c.Sandbox.CompileTimeout = 90 * time.Second
	}
	if len(c.Language.Languages) == 0 {
		c.Language.Languages = profile.Defaults()
	}
}

// Validate rejects configurations the service cannot start with.
func Validate(c *Config) error {
	if c == nil {
		return fmt.Errorf("config is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required")
	}
	if c.Kafka.ConsumeTopic == "" {
		return fmt.Errorf("consume topic is required")
	}
	if c.Kafka.ProduceTopic == "" {
		return fmt.Errorf("produce topic is required")
	}
	if c.Storage.Endpoint == "" {
		return fmt.Errorf("storage endpoint is required")
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}
	if c.Redis.Host == "" {
		return fmt.Errorf("redis host is required")
	}
	return nil
}

func parseCompression(raw string) kafka.Compression {
	switch strings.ToLower(raw) {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Compression(0)
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		var parsed int
		if _, err := fmt.Sscanf(v, "%d", &parsed); err == nil {
			*dst = parsed
		}
	}
}
