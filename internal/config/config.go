package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "CONSOLECAL_"

type Application struct {
	Listen   string   `koanf:"listen"`
	Cors     Cors     `koanf:"cors"`
	Calendar Calendar `koanf:"calendar"`
	Store    Store    `koanf:"store"`
	Database Database `koanf:"db"`
	Session  Session  `koanf:"session"`
	Redis    Redis    `koanf:"redis"`
}

type Cors struct {
	AllowedOrigins []string `koanf:"allowedorigins"`
}

type Calendar struct {
	Horizon  Horizon `koanf:"horizon"`
	SeedFile string  `koanf:"seedfile"`
}

// Horizon bounds the expansion of recurrence rules without an end.
type Horizon struct {
	MaxOccurrences int `koanf:"maxoccurrences"`
	Days           int `koanf:"days"`
}

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Store struct {
	Backend string `koanf:"backend"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

type Session struct {
	Backend string        `koanf:"backend"`
	TTL     time.Duration `koanf:"ttl"`
	// Sweep is the cron schedule of the idle session cleanup.
	Sweep string `koanf:"sweep"`
}

type Redis struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"keyprefix"`
}

func Defaults() Application {
	return Application{
		Listen: ":8181",
		Cors: Cors{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Calendar: Calendar{
			Horizon: Horizon{
				MaxOccurrences: 520,
				Days:           730,
			},
			SeedFile: "./config/seed.yaml",
		},
		Store: Store{
			Backend: BackendMemory,
		},
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "consolecal",
			Pass:   "",
			Name:   "consolecal",
			Schema: "consolecal",
		},
		Session: Session{
			Backend: BackendMemory,
			TTL:     2 * time.Hour,
			Sweep:   "*/5 * * * *",
		},
		Redis: Redis{
			Addr:      "localhost:6379",
			DB:        0,
			KeyPrefix: "consolecal:session:",
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, envPrefix)), "_", ".")
			if k == "cors.allowedorigins" {
				return k, strings.Split(v, ",")
			}
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}
