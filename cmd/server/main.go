package main

import (
	"context"
	"errors"
	"flag"
	"invisifeed/bot"
	"invisifeed/impl/auth"
	"invisifeed/impl/core"
	"invisifeed/internal/config"
	"invisifeed/internal/database"
	"invisifeed/internal/http-server/api"
	"invisifeed/internal/lock"
	"invisifeed/internal/mailer"
	"invisifeed/internal/quota"
	"invisifeed/internal/storage"
	"invisifeed/lib/logger"
	"invisifeed/lib/sl"
	"log/slog"
	"time"
)

var errNoDatabase = errors.New("mongo is disabled in config")

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	log := logger.SetupLogger(conf.Env, *logPath)
	log.Info("starting invisifeed", slog.String("config", *configPath), slog.String("env", conf.Env))

	if conf.Telegram.Enabled {
		tg, err := bot.NewTgBot(conf.Telegram.ApiKey, conf.Telegram.ChatIds, log)
		if err != nil {
			log.Error("telegram bot", sl.Err(err))
		} else {
			tg.Start(conf.Telegram.DigestInterval)
			defer tg.Stop()
			log = logger.WithTelegram(log, tg, logger.ParseLevel(conf.Telegram.MinLevel))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	mongo, err := database.NewMongoClient(ctx, conf)
	if err == nil && mongo == nil {
		err = errNoDatabase
	}
	if err != nil {
		cancel()
		log.Error("mongo client", sl.Err(err))
		return
	}
	err = mongo.EnsureIndexes(ctx)
	cancel()
	if err != nil {
		log.Error("mongo indexes", sl.Err(err))
		return
	}
	defer mongo.Close(context.Background())
	log.With(
		slog.String("host", conf.Mongo.Host),
		slog.String("database", conf.Mongo.Database),
	).Info("mongo client initialized")

	disk, err := storage.NewDisk(conf.Upload.StorageDir, conf.Upload.PublicUrl)
	if err != nil {
		log.Error("file storage", sl.Err(err))
		return
	}

	mail, err := mailer.New(conf.Mail, log)
	if err != nil {
		log.Error("mailer", sl.Err(err))
		return
	}

	policy, err := quota.ParsePolicy(conf.Quota.Policy)
	if err != nil {
		log.Error("quota", sl.Err(err))
		return
	}
	var locker lock.Locker = lock.NewMemory()
	if conf.Redis.Enabled {
		client, err := lock.NewRedisClient(conf.Redis.Host, conf.Redis.Port, conf.Redis.Password)
		if err != nil {
			log.Error("redis client", sl.Err(err))
			return
		}
		defer client.Close()
		locker = lock.NewRedis(client, conf.Redis.LockTTL)
	}
	log.With(
		slog.String("policy", string(policy)),
		slog.Int("daily_limit", conf.Quota.DailyLimit),
		slog.Bool("redis", conf.Redis.Enabled),
	).Info("upload quota configured")

	handler := core.New(mongo, log)
	handler.SetStorage(disk)
	handler.SetMailer(mail)
	handler.SetAuthService(auth.New(mongo, conf.Auth.JwtSecret, conf.Auth.TokenTTL))
	handler.SetQuota(quota.New(conf.Quota.DailyLimit, conf.Quota.Window), policy, locker)
	handler.SetMaxFileSize(conf.Upload.MaxFileSize)
	handler.SetBaseUrl(conf.App.BaseUrl)
	handler.SetVerifyCodeTTL(conf.Auth.VerifyCodeTTL)

	// blocking call
	if err = api.New(conf, log, handler); err != nil {
		log.Error("server stopped", sl.Err(err))
	}
}
