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
	"github.com/spaghettifunk/ember/engine/assets/loaders"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

var errClosed = errors.New("asset manager already closed")

type AssetInfo struct {
	Path       string
	Type       metadata.ResourceType
	LastLoaded time.Time
}

// OnChangeFn is called from the watcher goroutine with the path relative
// to the asset root.
type OnChangeFn func(path string)

type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[metadata.ResourceType]Loader
	subs    map[metadata.ResourceType][]OnChangeFn

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[metadata.ResourceType]Loader),
		subs:     make(map[metadata.ResourceType][]OnChangeFn),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// Initialize indexes every file under assetsDir, registers the loaders and,
// when watch is set, starts delivering change notifications.
func (am *AssetManager) Initialize(assetsDir string, maxMeshElements int, watch bool) error {
	root, err := filepath.Abs(assetsDir)
	if err != nil {
		return err
	}
	am.root = root

	am.registerLoader(metadata.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(metadata.ResourceTypeMesh, &loaders.ModelLoader{MaxElements: maxMeshElements})
	am.registerLoader(metadata.ResourceTypeImage, &loaders.TextureLoader{})

	if err := am.watchRecursive(root, !watch); err != nil {
		close(am.stopped)
		return err
	}
	if watch {
		go am.start()
	} else {
		close(am.stopped)
	}
	core.LogInfo("indexed %d assets under %s", len(am.assets), root)
	return nil
}

func (am *AssetManager) Root() string {
	return am.root
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// OnChange subscribes fn to writes of any asset of the given type.
func (am *AssetManager) OnChange(assetType metadata.ResourceType, fn OnChangeFn) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.subs[assetType] = append(am.subs[assetType], fn)
}

// Assets lists the indexed assets of the given type.
func (am *AssetManager) Assets(assetType metadata.ResourceType) []AssetInfo {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	var out []AssetInfo
	for _, a := range am.assets {
		if a.Type == assetType {
			out = append(out, a)
		}
	}
	return out
}

// LoadAsset loads the asset at name, relative to the asset root.
func (am *AssetManager) LoadAsset(name string, params interface{}) (*metadata.Resource, error) {
	path := filepath.ToSlash(filepath.Clean(name))

	am.mutex.Lock()
	asset, exists := am.assets[path]
	if exists {
		asset.LastLoaded = time.Now()
		am.assets[path] = asset
	}
	am.mutex.Unlock()
	if !exists {
		return nil, fmt.Errorf("asset not found: %s", path)
	}

	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type: %s", asset.Type)
	}

	return loader.Load(filepath.Join(am.root, path), asset.Type, params)
}

func (am *AssetManager) UnloadAsset(asset *metadata.Resource) error {
	if loader, ok := am.loaders[asset.Type]; ok {
		return loader.Unload(asset)
	}
	return nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (am *AssetManager) Close() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return errClosed
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	if am.root != "" {
		<-am.stopped
	}
	return am.fsnotify.Close()
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
			if err == nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.watchRecursive(e.Name, false); err != nil {
						core.LogWarn("failed to watch %s: %s", e.Name, err)
					}
				}
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				am.handleFileEvent(e.Name, true)
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
			return
		}
	}
}

// watchRecursive indexes every file under path and, unless indexOnly is
// set, watches each directory.
func (am *AssetManager) watchRecursive(path string, indexOnly bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if indexOnly {
				return nil
			}
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath, false)
		return nil
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string, notify bool) {
	assetType, ok := determineAssetType(path)
	if !ok {
		return
	}
	rel, ok := am.relative(path)
	if !ok {
		return
	}

	am.mutex.Lock()
	am.assets[rel] = AssetInfo{
		Path:       rel,
		Type:       assetType,
		LastLoaded: time.Now(),
	}
	subs := append([]OnChangeFn(nil), am.subs[assetType]...)
	am.mutex.Unlock()

	if !notify {
		return
	}
	core.LogDebug("asset changed: %s (%s)", rel, assetType)
	for _, fn := range subs {
		fn(rel)
	}
	core.EventFire(core.EventContext{
		Type: core.EVENT_CODE_ASSET_CHANGED,
		Data: &core.AssetEvent{Path: rel, Kind: assetType.String()},
	})
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	rel, ok := am.relative(path)
	if !ok {
		return
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	delete(am.assets, rel)
}

func (am *AssetManager) relative(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(am.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func determineAssetType(path string) (metadata.ResourceType, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".spv":
		return metadata.ResourceTypeShader, true
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return metadata.ResourceTypeImage, true
	case ".obj":
		return metadata.ResourceTypeMesh, true
	default:
		return metadata.ResourceTypeNone, false
	}
}

func (am *AssetManager) LoadMesh(name string) (*metadata.MeshData, error) {
	res, err := am.LoadAsset(name, nil)
	if err != nil {
		return nil, err
	}
	mesh, ok := res.Data.(*metadata.MeshData)
	if !ok {
		return nil, fmt.Errorf("asset %s is not a mesh", name)
	}
	return mesh, nil
}

func (am *AssetManager) LoadTexture(name string, flipY bool) (*metadata.TextureData, error) {
	res, err := am.LoadAsset(name, &metadata.ImageResourceParams{FlipY: flipY})
	if err != nil {
		return nil, err
	}
	tex, ok := res.Data.(*metadata.TextureData)
	if !ok {
		return nil, fmt.Errorf("asset %s is not a texture", name)
	}
	return tex, nil
}
