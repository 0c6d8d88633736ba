package config

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MQConfig struct {
	URL string `yaml:"url"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// CronConfig holds the shared secret that authenticates internal batch
// triggers. It is not a per-user credential.
type CronConfig struct {
	Secret string `yaml:"secret"`
}

type FCMConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// LocalStoreConfig locates the embedded cache database used by the client.
type LocalStoreConfig struct {
	Path string `yaml:"path"`
}

// RemoteConfig points the client at the task API.
type RemoteConfig struct {
	BaseURL string `yaml:"base_url"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	DB         DBConfig         `yaml:"db"`
	Redis      RedisConfig      `yaml:"redis"`
	MQ         MQConfig         `yaml:"mq"`
	JWT        JWTConfig        `yaml:"jwt"`
	Cron       CronConfig       `yaml:"cron"`
	FCM        FCMConfig        `yaml:"fcm"`
	Log        LogConfig        `yaml:"log"`
	LocalStore LocalStoreConfig `yaml:"localstore"`
	Remote     RemoteConfig     `yaml:"remote"`
}

// Load reads config.yaml (or the file named by TASKMASTER_CONFIG) and applies
// environment variable overrides on top.
func Load() *Config {
	path := os.Getenv("TASKMASTER_CONFIG")
	if path == "" {
		path = "config.yaml"
	}

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		log.Fatalf("failed to decode %s: %v", path, err)
	}

	overrideFromEnv(&cfg)

	return &cfg
}

func overrideFromEnv(cfg *Config) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Server.Port = port
	}
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DB.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.DB.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DB.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DB.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.DB.Name = name
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.MQ.URL = url
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWT.Secret = secret
	}
	if secret := os.Getenv("CRON_SECRET"); secret != "" {
		cfg.Cron.Secret = secret
	}
	if project := os.Getenv("FCM_PROJECT_ID"); project != "" {
		cfg.FCM.ProjectID = project
	}
	if creds := os.Getenv("FCM_CREDENTIALS_FILE"); creds != "" {
		cfg.FCM.CredentialsFile = creds
	}
	if url := os.Getenv("REMOTE_BASE_URL"); url != "" {
		cfg.Remote.BaseURL = url
	}
	if path := os.Getenv("LOCALSTORE_PATH"); path != "" {
		cfg.LocalStore.Path = path
	}
}
