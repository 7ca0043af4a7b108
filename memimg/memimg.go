// Package memimg keeps skin tiles (head, body, food) in memory, scaled to the block size.
package memimg

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
)

var (
	tiles      = make(map[string]image.Image)
	tilesMutex sync.RWMutex
)

// LoadTiles 载入目录下所有图片，按文件名（不含扩展名）索引
func LoadTiles(directory string, blockSize int) error {
	return filepath.Walk(directory, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isImage(path) {
			return nil
		}
		img, err := loadImage(path, blockSize)
		if err != nil {
			// 坏图跳过，不影响其它贴图
			log.Printf("skip tile %s: %v", path, err)
			return nil
		}
		storeTile(tileName(path), img)
		return nil
	})
}

func isImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

func tileName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func loadImage(path string, blockSize int) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	if blockSize > 0 {
		img = imaging.Resize(img, blockSize, blockSize, imaging.Lanczos)
	}
	return img, nil
}

func storeTile(name string, img image.Image) {
	tilesMutex.Lock()
	tiles[name] = img
	tilesMutex.Unlock()
}

func dropTile(name string) {
	tilesMutex.Lock()
	delete(tiles, name)
	tilesMutex.Unlock()
}

// WatchTiles reloads tiles on write/create and drops them on remove/rename
// until ctx is done.
func WatchTiles(ctx context.Context, directory string, blockSize int) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(directory); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isImage(event.Name) {
				continue
			}
			switch {
			case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
				img, err := loadImage(event.Name, blockSize)
				if err == nil {
					storeTile(tileName(event.Name), img)
				}
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				dropTile(tileName(event.Name))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Println("tile watcher error:", err)
		}
	}
}

func GetTile(name string) (image.Image, bool) {
	tilesMutex.RLock()
	img, exists := tiles[name]
	tilesMutex.RUnlock()
	return img, exists
}
