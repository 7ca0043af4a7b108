package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hoshinonyaruko/snakeplus/api"
	"github.com/hoshinonyaruko/snakeplus/config"
	"github.com/hoshinonyaruko/snakeplus/memimg"
	"github.com/hoshinonyaruko/snakeplus/session"
	"github.com/hoshinonyaruko/snakeplus/shellcache"
	"github.com/hoshinonyaruko/snakeplus/sqlite"
)

func main() {
	// Initialize the configuration
	cfg := config.LoadConfig("./config.json")
	EnsureFoldersExist(cfg.SkinsDir, cfg.StaticDir, cfg.OutputDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 载入皮肤贴图到内存
	if err := memimg.LoadTiles(cfg.SkinsDir, cfg.Blocksize); err != nil {
		log.Printf("load tiles: %v", err)
	}
	// 检测并热更新到内存 加速绘图
	go func() {
		if err := memimg.WatchTiles(ctx, cfg.SkinsDir, cfg.Blocksize); err != nil {
			log.Printf("watch tiles: %v", err)
		}
	}()

	db := api.InitDB(cfg.DBPath)
	defer db.Close()
	store := sqlite.NewStore(db)

	hub := session.NewHub(ctx, cfg.Rules, store, time.Duration(cfg.FrameMs)*time.Millisecond, cfg.Seed)
	defer hub.CloseAll()

	// 离线外壳：安装当前版本，清理旧版本
	shell := shellcache.New(shellcache.NewStorage(), cfg.CacheVersion, shellcache.DirFetcher{Root: cfg.StaticDir})
	if err := shell.Install(ctx, shellcache.AppShell); err != nil {
		log.Printf("shell install: %v", err)
	}
	for _, name := range shell.Activate() {
		log.Printf("shell: purged cache %s", name)
	}

	router := gin.Default()
	api.Register(router, hub, store)
	router.GET("/app/*filepath", shell.Handler("filepath"))
	router.Static("/output", cfg.OutputDir) // 渲染图片
	// 从配置单例读取端口 监听
	go func() {
		if err := router.Run(":" + config.GetConfigValue("port").(string)); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")
}

// EnsureFoldersExist 检查并创建必需的文件夹
func EnsureFoldersExist(folders ...string) {
	for _, folder := range folders {
		if _, err := os.Stat(folder); os.IsNotExist(err) {
			// 文件夹不存在，尝试创建它
			if err := os.MkdirAll(folder, 0755); err != nil {
				log.Fatalf("Failed to create %s directory: %s", folder, err)
			}
			log.Printf("Created %s directory", folder)
		}
	}
}
