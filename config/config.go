package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
	Queue    QueueConfig    `mapstructure:"queue"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type DatabaseConfig struct {
	// Driver selects the storage backend: "gorm" (default) or "pq" for
	// the plain database/sql implementation.
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// GameConfig tunes the per-room round protocol.
type GameConfig struct {
	RoundDuration time.Duration `mapstructure:"round_duration"`
	Intermission  time.Duration `mapstructure:"intermission"`
	WinThreshold  int           `mapstructure:"win_threshold"`
	GracePeriod   time.Duration `mapstructure:"grace_period"`
}

// QueueConfig tunes matchmaking.
type QueueConfig struct {
	BaseTolerance     int           `mapstructure:"base_tolerance"`
	ToleranceStep     int           `mapstructure:"tolerance_step"`
	StepInterval      time.Duration `mapstructure:"step_interval"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	RankedBotDelayMin time.Duration `mapstructure:"ranked_bot_delay_min"`
	RankedBotDelayMax time.Duration `mapstructure:"ranked_bot_delay_max"`
	CasualBotDelayMin time.Duration `mapstructure:"casual_bot_delay_min"`
	CasualBotDelayMax time.Duration `mapstructure:"casual_bot_delay_max"`
}

func setDefaults() {
	viper.SetDefault("server.http_address", ":8080")
	viper.SetDefault("server.rpc_address", ":8081")
	viper.SetDefault("server.metrics_address", ":9100")

	viper.SetDefault("database.driver", "gorm")

	viper.SetDefault("game.round_duration", 30*time.Second)
	viper.SetDefault("game.intermission", 5*time.Second)
	viper.SetDefault("game.win_threshold", 4)
	viper.SetDefault("game.grace_period", 15*time.Second)

	viper.SetDefault("queue.base_tolerance", 100)
	viper.SetDefault("queue.tolerance_step", 50)
	viper.SetDefault("queue.step_interval", 10*time.Second)
	viper.SetDefault("queue.sweep_interval", 3*time.Second)
	viper.SetDefault("queue.ranked_bot_delay_min", 2*time.Second)
	viper.SetDefault("queue.ranked_bot_delay_max", 10*time.Second)
	viper.SetDefault("queue.casual_bot_delay_min", 4*time.Second)
	viper.SetDefault("queue.casual_bot_delay_max", 10*time.Second)
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	setDefaults()
	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		// 配置文件缺失时使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	err = viper.Unmarshal(&config)
	return
}
