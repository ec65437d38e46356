package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/palemoky/exploding-kittens/internal/game/card"
)

const (
	defaultHost           = "0.0.0.0"
	defaultPort           = 1780
	defaultMaxConnections = 1000
	defaultMessageLimit   = 20
	defaultRedisAddr      = "localhost:6379"
	defaultEventTTL       = 24 * 60 // 分钟

	defaultReactionWindow = 3000 // 毫秒
	defaultTurnTimeout    = 30   // 秒
	defaultInboxSize      = 64
	defaultRetention      = 5   // 分钟
	defaultAbandonTimeout = 120 // 秒
)

// Config 服务端配置
type Config struct {
	Server ServerConfig `yaml:"server"`
	Redis  RedisConfig  `yaml:"redis"`
	Game   GameConfig   `yaml:"game"`
	Rules  RulesConfig  `yaml:"rules"`
}

// ServerConfig WebSocket 服务器配置
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	MaxConnections int      `yaml:"max_connections"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MessageLimit   int      `yaml:"message_limit"` // 每个连接每秒最多消息数
	LogDir         string   `yaml:"log_dir"`       // 为空时只输出到 stderr
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	EventTTL int    `yaml:"event_ttl"` // 事件日志与会话保留时间（分钟）
}

// GameConfig 对局运行配置
type GameConfig struct {
	ReactionWindow int `yaml:"reaction_window"` // Nope 反应时间（毫秒）
	TurnTimeout    int `yaml:"turn_timeout"`    // 在线玩家行动超时（秒），-1 表示不限时
	InboxSize      int `yaml:"inbox_size"`      // 每局命令队列长度
	Retention      int `yaml:"retention"`       // 对局结束后在内存中保留的时间（分钟）
	AbandonTimeout int `yaml:"abandon_timeout"` // 所有座位断开多久后中止对局（秒），-1 表示不中止
}

// RulesConfig 房规，未填写的项使用原版牌库
type RulesConfig struct {
	Counts       map[string]int `yaml:"counts"` // 牌种名 → 张数，不能包含 defuse / exploding_kitten
	SavePool     int            `yaml:"save_pool"`
	AttackTurns  int            `yaml:"attack_turns"`
	StackAttacks *bool          `yaml:"stack_attacks"`
	HandSize     int            `yaml:"hand_size"`
	PeekCount    int            `yaml:"peek_count"`
}

// ReactionWindowDuration 返回 Nope 反应时长
func (c *GameConfig) ReactionWindowDuration() time.Duration {
	return time.Duration(c.ReactionWindow) * time.Millisecond
}

// TurnTimeoutDuration 返回行动超时时长，不限时返回 0
func (c *GameConfig) TurnTimeoutDuration() time.Duration {
	if c.TurnTimeout < 0 {
		return 0
	}
	return time.Duration(c.TurnTimeout) * time.Second
}

// AbandonTimeoutDuration 返回无人在线时的中止宽限期，不中止返回 0
func (c *GameConfig) AbandonTimeoutDuration() time.Duration {
	if c.AbandonTimeout < 0 {
		return 0
	}
	return time.Duration(c.AbandonTimeout) * time.Second
}

// RetentionDuration 返回已结束对局的保留时长
func (c *GameConfig) RetentionDuration() time.Duration {
	return time.Duration(c.Retention) * time.Minute
}

// EventTTLDuration 返回事件日志的过期时间
func (c *RedisConfig) EventTTLDuration() time.Duration {
	return time.Duration(c.EventTTL) * time.Minute
}

// ToRules 把房规合并到原版牌库上
func (c *RulesConfig) ToRules() (card.Rules, error) {
	rules := card.DefaultRules()
	if len(c.Counts) > 0 {
		rules.Counts = make(map[card.Kind]int, len(c.Counts))
		for name, n := range c.Counts {
			k, err := card.ParseKind(name)
			if err != nil {
				return card.Rules{}, err
			}
			rules.Counts[k] = n
		}
	}
	if c.SavePool != 0 {
		rules.SavePool = c.SavePool
	}
	if c.AttackTurns != 0 {
		rules.AttackTurns = c.AttackTurns
	}
	if c.StackAttacks != nil {
		rules.StackAttacks = *c.StackAttacks
	}
	if c.HandSize != 0 {
		rules.HandSize = c.HandSize
	}
	if c.PeekCount != 0 {
		rules.PeekCount = c.PeekCount
	}
	if err := rules.Validate(); err != nil {
		return card.Rules{}, err
	}
	return rules, nil
}

// Load 加载配置文件，环境变量优先于文件
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.loadFromEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.loadFromEnv()
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = defaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.MaxConnections == 0 {
		c.Server.MaxConnections = defaultMaxConnections
	}
	if c.Server.MessageLimit == 0 {
		c.Server.MessageLimit = defaultMessageLimit
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = defaultRedisAddr
	}
	if c.Redis.EventTTL == 0 {
		c.Redis.EventTTL = defaultEventTTL
	}
	if c.Game.ReactionWindow == 0 {
		c.Game.ReactionWindow = defaultReactionWindow
	}
	if c.Game.TurnTimeout == 0 {
		c.Game.TurnTimeout = defaultTurnTimeout
	}
	if c.Game.InboxSize == 0 {
		c.Game.InboxSize = defaultInboxSize
	}
	if c.Game.Retention == 0 {
		c.Game.Retention = defaultRetention
	}
	if c.Game.AbandonTimeout == 0 {
		c.Game.AbandonTimeout = defaultAbandonTimeout
	}
}

// loadFromEnv 读取部署时常用的环境变量
func (c *Config) loadFromEnv() {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v, ok := envInt("SERVER_PORT"); ok {
		c.Server.Port = v
	}
	if v := os.Getenv("SERVER_LOG_DIR"); v != "" {
		c.Server.LogDir = v
	}
	if v := os.Getenv("SERVER_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v, ok := envInt("GAME_REACTION_WINDOW"); ok {
		c.Game.ReactionWindow = v
	}
	if v, ok := envInt("GAME_TURN_TIMEOUT"); ok {
		c.Game.TurnTimeout = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate 校验配置
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("server.max_connections must not be negative"))
	}
	if c.Server.MessageLimit < 0 {
		errs = append(errs, fmt.Errorf("server.message_limit must not be negative"))
	}
	if c.Game.ReactionWindow < 0 {
		errs = append(errs, fmt.Errorf("game.reaction_window must not be negative"))
	}
	if c.Game.TurnTimeout < -1 {
		errs = append(errs, fmt.Errorf("game.turn_timeout must be -1 or positive"))
	}
	if c.Game.AbandonTimeout < -1 {
		errs = append(errs, fmt.Errorf("game.abandon_timeout must be -1 or positive"))
	}
	if c.Game.InboxSize < 0 {
		errs = append(errs, fmt.Errorf("game.inbox_size must not be negative"))
	}
	if _, err := c.Rules.ToRules(); err != nil {
		errs = append(errs, fmt.Errorf("rules: %w", err))
	}
	return errors.Join(errs...)
}
