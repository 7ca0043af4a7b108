package api

import (
	"database/sql"
	"errors"
	"fmt"
	"image/png"
	"log"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hoshinonyaruko/snakeplus/config"
	"github.com/hoshinonyaruko/snakeplus/render"
	"github.com/hoshinonyaruko/snakeplus/session"
	"github.com/hoshinonyaruko/snakeplus/sqlite"
	"github.com/hoshinonyaruko/snakeplus/structs"
	_ "github.com/mattn/go-sqlite3"
)

// OptionStore 是设置开关的存储
type OptionStore interface {
	LoadOptions() (structs.Options, error)
	SetOption(name string, value bool) error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func InitDB(path string) *sql.DB {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		log.Fatal(err)
	}

	sqlite.InitializeDatabase(db)

	return db
}

// Register 注册所有游戏接口
func Register(router gin.IRouter, hub *session.Hub, store OptionStore) {
	router.POST("/session", NewSession(hub))
	router.GET("/delete-session", DeleteSession(hub))
	router.GET("/state", GetState(hub))
	// 处理玩家改变方向
	router.GET("/update-direction", UpdateDirection(hub))
	// start / pause / reset
	router.GET("/command", Command(hub))
	router.GET("/set-mode", SetMode(hub))
	// 渲染函数 返回图片地址
	router.GET("/render-map", RenderMapHandler(hub, store))
	router.GET("/options", GetOptions(store))
	router.GET("/set-option", SetOption(store))
	router.GET("/ws", Stream(hub))
}

// lookup 读取 sessionid 参数，失败时已经写好响应
func lookup(c *gin.Context, hub *session.Hub) (*session.Session, bool) {
	id := c.Query("sessionid")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required query parameter: sessionid"})
		return nil, false
	}
	s, err := hub.Get(id)
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown session"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return s, true
}

func NewSession(hub *session.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := hub.Create()
		c.JSON(http.StatusOK, gin.H{"session_id": s.ID, "state": s.Snapshot()})
	}
}

func DeleteSession(hub *session.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookup(c, hub)
		if !ok {
			return
		}
		if err := hub.Close(s.ID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Session deleted"})
	}
}

func GetState(hub *session.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookup(c, hub)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, s.Snapshot())
	}
}

func UpdateDirection(hub *session.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookup(c, hub)
		if !ok {
			return
		}
		h, err := structs.ParseHeading(c.Query("direction"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// 反向或非运行状态会被静默忽略
		accepted := s.SetDirection(h)
		c.JSON(http.StatusOK, gin.H{"message": "Direction updated successfully", "accepted": accepted})
	}
}

func Command(hub *session.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookup(c, hub)
		if !ok {
			return
		}
		op := c.Query("op")
		switch op {
		case "start", "pause", "reset", "restart":
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown op %q", op)})
			return
		}
		if err := s.Apply(op, ""); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, s.Snapshot())
	}
}

func SetMode(hub *session.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookup(c, hub)
		if !ok {
			return
		}
		m, err := structs.ParseMode(c.Query("mode"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.SetMode(m)
		c.JSON(http.StatusOK, s.Snapshot())
	}
}

func palette(store OptionStore) render.Palette {
	if store == nil {
		return render.DefaultPalette
	}
	opts, err := store.LoadOptions()
	if err != nil {
		log.Printf("load options: %v", err)
		return render.DefaultPalette
	}
	if opts.Contrast {
		return render.ContrastPalette
	}
	return render.DefaultPalette
}

// RenderMapHandler 渲染当前棋盘。inline=1 直接返回 PNG，否则保存并返回地址
func RenderMapHandler(hub *session.Hub, store OptionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookup(c, hub)
		if !ok {
			return
		}
		blockSize := config.GetConfigValue("blocksize").(int)
		img := render.Board(s.Snapshot(), blockSize, palette(store))

		if c.Query("inline") == "1" {
			c.Header("Content-Type", "image/png")
			c.Status(http.StatusOK)
			if err := png.Encode(c.Writer, img); err != nil {
				log.Printf("encode board: %v", err)
			}
			return
		}

		outputDir := config.GetConfigValue("outputdir").(string)
		fileName := filepath.Join(outputDir, s.ID+".png")
		if err := render.SavePNG(fileName, img); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to render map"})
			return
		}
		imageUrl := fmt.Sprintf("%s/output/%s.png", config.GetConfigValue("selfpath").(string), s.ID)
		c.JSON(http.StatusOK, gin.H{"image_url": imageUrl})
	}
}

func GetOptions(store OptionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			c.JSON(http.StatusOK, structs.DefaultOptions())
			return
		}
		opts, err := store.LoadOptions()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to load options"})
			return
		}
		c.JSON(http.StatusOK, opts)
	}
}

func SetOption(store OptionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Query("name")
		value, err := strconv.ParseBool(c.Query("value"))
		if name == "" || err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid query parameters: name, value"})
			return
		}
		if store == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No option store"})
			return
		}
		if err := store.SetOption(name, value); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, sqlite.ErrUnknownOption) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Option updated successfully"})
	}
}

// Stream 升级为 websocket，推送快照和事件，同时接收输入命令
func Stream(hub *session.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookup(c, hub)
		if !ok {
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Println("upgrade:", err)
			return
		}
		s.Attach(conn)
	}
}
