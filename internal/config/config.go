package config

import (
	"fmt"
	"github.com/ilyakaznacheev/cleanenv"
	"log"
	"sync"
	"time"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env-default:"8080"`
}

type Mongo struct {
	Enabled  bool   `yaml:"enabled" env-default:"true"`
	Host     string `yaml:"host" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env-default:"27017"`
	User     string `yaml:"user" env-default:""`
	Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:""`
	Database string `yaml:"database" env-default:"invisifeed"`
}

// Quota policy values: "best-effort" keeps last-write-wins on the owner document,
// "serialized" takes a per-owner lock and compare-and-sets the counter.
type Quota struct {
	DailyLimit int           `yaml:"daily_limit" env-default:"3"`
	Window     time.Duration `yaml:"window" env-default:"24h"`
	Policy     string        `yaml:"policy" env-default:"best-effort"`
}

type Upload struct {
	MaxFileSize int64  `yaml:"max_file_size" env-default:"3145728"`
	StorageDir  string `yaml:"storage_dir" env-default:"./uploads"`
	PublicUrl   string `yaml:"public_url" env-default:"http://localhost:8080/files"`
}

type App struct {
	BaseUrl string `yaml:"base_url" env-default:"http://localhost:3000"`
}

type Auth struct {
	JwtSecret     string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:""`
	TokenTTL      time.Duration `yaml:"token_ttl" env-default:"24h"`
	VerifyCodeTTL time.Duration `yaml:"verify_code_ttl" env-default:"1h"`
}

type Mail struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	Host     string `yaml:"host" env-default:""`
	Port     int    `yaml:"port" env-default:"587"`
	Username string `yaml:"username" env-default:""`
	Password string `yaml:"password" env:"SMTP_PASSWORD" env-default:""`
	From     string `yaml:"from" env-default:"no-reply@invisifeed.app"`
}

type Redis struct {
	Enabled  bool          `yaml:"enabled" env-default:"false"`
	Host     string        `yaml:"host" env-default:"127.0.0.1"`
	Port     string        `yaml:"port" env-default:"6379"`
	Password string        `yaml:"password" env-default:""`
	LockTTL  time.Duration `yaml:"lock_ttl" env-default:"10s"`
}

type Telegram struct {
	Enabled        bool          `yaml:"enabled" env-default:"false"`
	ApiKey         string        `yaml:"api_key" env:"TELEGRAM_API_KEY" env-default:""`
	ChatIds        []int64       `yaml:"chat_ids"`
	MinLevel       string        `yaml:"min_level" env-default:"warn"`
	DigestInterval time.Duration `yaml:"digest_interval" env-default:"1h"`
}

type Config struct {
	Env      string   `yaml:"env" env-default:"local"`
	Listen   Listen   `yaml:"listen"`
	Mongo    Mongo    `yaml:"mongo"`
	Quota    Quota    `yaml:"quota"`
	Upload   Upload   `yaml:"upload"`
	App      App      `yaml:"app"`
	Auth     Auth     `yaml:"auth"`
	Mail     Mail     `yaml:"mail"`
	Redis    Redis    `yaml:"redis"`
	Telegram Telegram `yaml:"telegram"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
		if instance.Auth.JwtSecret == "" {
			instance = nil
			log.Fatal("config: auth.jwt_secret is required")
		}
	})
	return instance
}
