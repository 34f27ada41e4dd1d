package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// SystemPaths holds every filesystem location clipcat reads from or writes
// to, resolved once at startup the way a single ConfigPaths value is.
type SystemPaths struct {
	BaseDir      string
	ActiveConfig string
	DataDir      string
	HistoryFile  string
	ImageDir     string
	LogDir       string
	SocketPath   string
	PidFile      string
}

// GetSystemPaths resolves clipcat's platform-specific paths, honouring the
// CLIPCAT_CONFIG_DIR / CLIPCAT_DATA_DIR environment overrides.
func GetSystemPaths() (*SystemPaths, error) {
	baseDir := os.Getenv("CLIPCAT_CONFIG_DIR")
	if baseDir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		baseDir = filepath.Join(configDir, "clipcat")
	}

	dataDir := os.Getenv("CLIPCAT_DATA_DIR")
	if dataDir == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			return nil, err
		}
		dataDir = filepath.Join(cacheDir, "clipcat")
	}

	socketPath := os.Getenv("CLIPCAT_SOCKET_PATH")
	if socketPath == "" {
		socketPath = filepath.Join(runtimeDir(), "clipcatd.sock")
	}

	paths := &SystemPaths{
		BaseDir:      baseDir,
		ActiveConfig: filepath.Join(baseDir, "clipcatd.yaml"),
		DataDir:      dataDir,
		HistoryFile:  filepath.Join(dataDir, "clipcatd-history.data"),
		ImageDir:     filepath.Join(dataDir, "clipcatd-images"),
		LogDir:       filepath.Join(dataDir, "logs"),
		SocketPath:   socketPath,
		PidFile:      filepath.Join(dataDir, "clipcatd.pid"),
	}

	for _, dir := range []string{paths.BaseDir, paths.DataDir, paths.ImageDir, paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	return paths, nil
}

func runtimeDir() string {
	if runtime.GOOS != "windows" {
		if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
			return dir
		}
	}
	return os.TempDir()
}
