package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/hoshinonyaruko/snakeplus/snake"
)

// AppConfig holds the structure of the configuration
type AppConfig struct {
	SelfPath     string `json:"selfpath"`
	Port         string `json:"port"`
	Blocksize    int    `json:"blocksize"`
	FrameMs      int    `json:"framems"`      // 服务端驱动帧的间隔
	DBPath       string `json:"dbpath"`       // sqlite 文件
	SkinsDir     string `json:"skinsdir"`     // 皮肤贴图目录，热更新
	StaticDir    string `json:"staticdir"`    // 离线外壳的静态资源
	OutputDir    string `json:"outputdir"`    // 渲染图片输出
	CacheVersion string `json:"cacheversion"` // 离线缓存版本
	Seed         uint64 `json:"seed"`         // 0 表示随机

	snake.Rules
}

var (
	instance *AppConfig
	once     sync.Once
)

func defaults() *AppConfig {
	return &AppConfig{
		SelfPath:     "http://www.example.com", // Default value
		Port:         "38870",                  // Default value
		Blocksize:    20,
		FrameMs:      16,
		DBPath:       "game.db",
		SkinsDir:     "./skins",
		StaticDir:    "./static",
		OutputDir:    "./output",
		CacheVersion: "v1.0.2",
		Rules:        snake.DefaultRules(),
	}
}

// LoadConfig initializes and returns the instance of AppConfig
func LoadConfig(filePath string) *AppConfig {
	once.Do(func() {
		instance = defaults()
		// Load the config file if it exists, otherwise create one
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			if err := saveConfig(filePath, instance); err != nil {
				panic(err)
			}
		} else {
			if err := loadConfig(filePath, instance); err != nil {
				panic(err)
			}
		}
	})
	return instance
}

// Get returns the loaded configuration, or the defaults before LoadConfig ran.
func Get() *AppConfig {
	if instance == nil {
		return defaults()
	}
	return instance
}

// loadConfig loads the settings from the file; keys missing from the file keep their defaults
func loadConfig(filePath string, cfg *AppConfig) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("decode %s: %w", filePath, err)
	}
	return nil
}

// saveConfig saves the current settings to the file
func saveConfig(filePath string, cfg *AppConfig) error {
	file, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(cfg)
}

// GetConfigValue returns the value of the configuration by key
func GetConfigValue(key string) interface{} {
	cfg := Get()
	switch key {
	case "selfpath":
		return cfg.SelfPath
	case "port":
		return cfg.Port
	case "blocksize":
		return cfg.Blocksize
	case "framems":
		return cfg.FrameMs
	case "dbpath":
		return cfg.DBPath
	case "skinsdir":
		return cfg.SkinsDir
	case "staticdir":
		return cfg.StaticDir
	case "outputdir":
		return cfg.OutputDir
	case "cacheversion":
		return cfg.CacheVersion
	case "seed":
		return cfg.Seed
	case "grid":
		return cfg.Grid
	case "startlength":
		return cfg.StartLength
	case "basetickms":
		return cfg.BaseTickMs
	case "mintickms":
		return cfg.MinTickMs
	case "speedupevery":
		return cfg.SpeedupEvery
	case "speedupstepms":
		return cfg.SpeedupStepMs
	case "scoreperfood":
		return cfg.ScorePerFood
	case "foodttlms":
		return cfg.FoodTTLMs
	case "foodattempts":
		return cfg.FoodAttempts
	default:
		return ""
	}
}
