package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/vkbase/engine/core"
)

// ErrAssetNotFound is returned for paths that are not in the asset index.
var ErrAssetNotFound = errors.New("asset not found")

type AssetType int

const (
	AssetTypeNone AssetType = iota
	// Compiled SPIR-V.
	AssetTypeShaderBinary
	// GLSL source, compiled to AssetTypeShaderBinary by the build.
	AssetTypeShaderSource
	AssetTypeConfig
)

type AssetInfo struct {
	// Slash separated, relative to the asset root.
	Path       string
	Type       AssetType
	LastLoaded time.Time
}

// AssetManager indexes the files under a root directory and watches it for
// changes.
type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[AssetType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	changes  chan string
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[AssetType]Loader),
		fsnotify: fsWatch,
		changes:  make(chan string, core.DefaultEventQueueSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// Initialize indexes assetsDir and starts watching it and every
// sub-directory.
func (am *AssetManager) Initialize(assetsDir string) error {
	root, err := filepath.Abs(assetsDir)
	if err != nil {
		return err
	}
	am.root = root

	if err := am.addRecursive(root); err != nil {
		return err
	}

	// Register loaders
	am.registerLoader(AssetTypeShaderBinary, BinaryLoader{})
	am.registerLoader(AssetTypeShaderSource, BinaryLoader{})
	am.registerLoader(AssetTypeConfig, BinaryLoader{})

	go am.start()
	core.LogDebug("Asset manager watching %s", root)
	return nil
}

// AddRecursive starts watching the named directory and all sub-directories.
func (am *AssetManager) addRecursive(name string) error {
	if am.isClosed {
		return errors.New("asset watcher already closed")
	}
	return am.watchRecursive(name)
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType AssetType, loader Loader) {
	am.loaders[assetType] = loader
}

// Load reads the asset at path, relative to the asset root.
func (am *AssetManager) Load(path string) ([]byte, error) {
	key := filepath.ToSlash(filepath.Clean(path))

	am.mutex.Lock()
	asset, exists := am.assets[key]
	if exists {
		asset.LastLoaded = time.Now()
		am.assets[key] = asset
	}
	am.mutex.Unlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, path)
	}

	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type: %d", asset.Type)
	}
	return loader.Load(filepath.Join(am.root, filepath.FromSlash(key)))
}

// Info returns the index entry for path.
func (am *AssetManager) Info(path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[filepath.ToSlash(filepath.Clean(path))]
	return info, ok
}

// Changes delivers the relative path of every indexed asset that is created
// or written. Changes are dropped while the channel is full.
func (am *AssetManager) Changes() <-chan string {
	return am.changes
}

// Shutdown stops the watcher and closes the Changes channel.
func (am *AssetManager) Shutdown() error {
	if am.isClosed {
		return nil
	}
	am.isClosed = true
	close(am.done)
	if am.root == "" {
		// never started
		close(am.changes)
		return am.fsnotify.Close()
	}
	<-am.stopped
	return nil
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.watchRecursive(e.Name); err != nil {
						core.LogWarn("failed to watch %s: %s", e.Name, err)
					}
				}
				continue
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if path, ok := am.handleFileEvent(e.Name); ok {
					am.notify(path)
				}
			}
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			am.fsnotify.Close()
			close(am.changes)
			return
		}
	}
}

func (am *AssetManager) notify(path string) {
	select {
	case am.changes <- path:
	default:
		core.LogWarn("asset change queue full, dropping %s", path)
	}
}

// watchRecursive adds all directories under the given one to the watch list
// and indexes the files it finds.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// Handle the creation or modification of a file. It returns the relative
// path when the file is an indexed asset.
func (am *AssetManager) handleFileEvent(name string) (string, bool) {
	path, ok := am.relative(name)
	if !ok {
		return "", false
	}
	assetType := determineAssetType(path)
	if assetType == AssetTypeNone {
		return "", false
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[path] = AssetInfo{
		Path: path,
		Type: assetType,
	}
	return path, true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(name string) {
	path, ok := am.relative(name)
	if !ok {
		return
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	delete(am.assets, path)
}

func (am *AssetManager) relative(name string) (string, bool) {
	rel, err := filepath.Rel(am.root, name)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func determineAssetType(path string) AssetType {
	switch filepath.Ext(path) {
	case ".spv":
		return AssetTypeShaderBinary
	case ".vert", ".frag":
		return AssetTypeShaderSource
	case ".toml":
		return AssetTypeConfig
	default:
		return AssetTypeNone
	}
}
