package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	MinIO      MinIOConfig      `yaml:"minio"`
	Vision     VisionConfig     `yaml:"vision"`
	Matching   MatchingConfig   `yaml:"matching"`
	Attendance AttendanceConfig `yaml:"attendance"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port int `yaml:"port" default:"8080"`
	// AdminKey guards employee management. Empty disables authentication,
	// which is only allowed when KioskKey is empty too.
	AdminKey string `yaml:"admin_key"`
	// KioskKey is accepted in addition to AdminKey on the recognition endpoints.
	KioskKey     string        `yaml:"kiosk_key"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" default:"60s"`
}

type DatabaseConfig struct {
	// Driver is "memory" or "postgres".
	Driver   string `yaml:"driver" default:"memory"`
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"5432"`
	Name     string `yaml:"name" default:"attendance"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns" default:"20"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// NATSConfig configures the attendance event stream. An empty URL delivers
// events straight to the in-process WebSocket hub.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// MinIOConfig configures the photo archive. An empty endpoint disables it.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket" default:"attendance"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type VisionConfig struct {
	// Detector selects the face detector backend: "haar" or "retinaface".
	Detector           string  `yaml:"detector" default:"haar"`
	CascadePath        string  `yaml:"cascade_path" default:"models/haarcascade_frontalface_default.xml"`
	ModelsDir          string  `yaml:"models_dir" default:"models"`
	ONNXLibrary        string  `yaml:"onnx_library"`
	DetectionThreshold float64 `yaml:"detection_threshold" default:"0.5"`
	ScaleFactor        float64 `yaml:"scale_factor" default:"1.1"`
	MinNeighbors       int     `yaml:"min_neighbors" default:"5"`
	MinFaceSize        int     `yaml:"min_face_size" default:"100"`
	PaddingRatio       float64 `yaml:"padding_ratio" default:"0.1"`
	CropWidth          int     `yaml:"crop_width" default:"128"`
	CropHeight         int     `yaml:"crop_height" default:"128"`
	BlockSize          int     `yaml:"block_size" default:"16"`
	BlockStride        int     `yaml:"block_stride" default:"8"`
	CellSize           int     `yaml:"cell_size" default:"8"`
	Bins               int     `yaml:"bins" default:"9"`
	MaxImageBytes      int     `yaml:"max_image_bytes" default:"10485760"`
	MaxImagePixels     int     `yaml:"max_image_pixels" default:"16777216"`
}

// DescriptorLen is the length of the HOG descriptor produced by this geometry.
func (v VisionConfig) DescriptorLen() int {
	if v.BlockStride <= 0 || v.CellSize <= 0 {
		return 0
	}
	bx := (v.CropWidth-v.BlockSize)/v.BlockStride + 1
	by := (v.CropHeight-v.BlockSize)/v.BlockStride + 1
	cells := (v.BlockSize / v.CellSize) * (v.BlockSize / v.CellSize)
	return bx * by * cells * v.Bins
}

type MatchingConfig struct {
	// Threshold is the maximum Euclidean distance (inclusive) accepted as a match.
	Threshold float64 `yaml:"threshold" default:"1.5"`
	// ParallelMin is the gallery size from which distances are computed concurrently.
	ParallelMin int `yaml:"parallel_min" default:"256"`
}

type AttendanceConfig struct {
	MaxRetries   uint64        `yaml:"max_retries" default:"5"`
	RetryBackoff time.Duration `yaml:"retry_backoff" default:"20ms"`

	// StorePunchPhotos archives the kiosk photo behind every recognized punch.
	StorePunchPhotos bool `yaml:"store_punch_photos"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"json"`
}

// Load reads config from a YAML file, merges a .env file if one exists next to
// the process, applies environment overrides and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	applyEnvOverrides(cfg)
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a config populated only from struct defaults.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Validate rejects settings the detector, extractor or matcher cannot work with.
func (c *Config) Validate() error {
	if c.Server.KioskKey != "" && c.Server.AdminKey == "" {
		return fmt.Errorf("server.kiosk_key requires server.admin_key, otherwise admin routes stay open")
	}

	switch c.Database.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver)
	}

	v := c.Vision
	switch v.Detector {
	case "haar", "retinaface":
	default:
		return fmt.Errorf("vision.detector: unknown backend %q", v.Detector)
	}
	if v.ScaleFactor <= 1 {
		return fmt.Errorf("vision.scale_factor must be > 1, got %v", v.ScaleFactor)
	}
	if v.MinNeighbors < 0 {
		return fmt.Errorf("vision.min_neighbors must be >= 0, got %d", v.MinNeighbors)
	}
	if v.MinFaceSize <= 0 {
		return fmt.Errorf("vision.min_face_size must be > 0, got %d", v.MinFaceSize)
	}
	if v.PaddingRatio < 0 || v.PaddingRatio >= 1 {
		return fmt.Errorf("vision.padding_ratio must be in [0,1), got %v", v.PaddingRatio)
	}
	if v.CellSize <= 0 || v.BlockSize%v.CellSize != 0 || v.BlockStride%v.CellSize != 0 {
		return fmt.Errorf("vision: block_size and block_stride must be multiples of cell_size")
	}
	if v.CropWidth < v.BlockSize || v.CropHeight < v.BlockSize ||
		(v.CropWidth-v.BlockSize)%v.BlockStride != 0 || (v.CropHeight-v.BlockSize)%v.BlockStride != 0 {
		return fmt.Errorf("vision: crop %dx%d does not tile with block %d / stride %d",
			v.CropWidth, v.CropHeight, v.BlockSize, v.BlockStride)
	}
	if v.Bins <= 0 {
		return fmt.Errorf("vision.bins must be > 0, got %d", v.Bins)
	}
	if v.MaxImageBytes <= 0 || v.MaxImagePixels <= 0 {
		return fmt.Errorf("vision: max_image_bytes and max_image_pixels must be > 0")
	}
	if c.Matching.Threshold <= 0 {
		return fmt.Errorf("matching.threshold must be > 0, got %v", c.Matching.Threshold)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FA_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FA_ADMIN_KEY"); v != "" {
		cfg.Server.AdminKey = v
	}
	if v := os.Getenv("FA_KIOSK_KEY"); v != "" {
		cfg.Server.KioskKey = v
	}
	if v := os.Getenv("FA_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("FA_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FA_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FA_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FA_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FA_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FA_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("FA_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("FA_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("FA_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("FA_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("FA_CASCADE_PATH"); v != "" {
		cfg.Vision.CascadePath = v
	}
	if v := os.Getenv("FA_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("FA_STORE_PUNCH_PHOTOS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Attendance.StorePunchPhotos = b
		}
	}
	if v := os.Getenv("FA_MATCH_THRESHOLD"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matching.Threshold = t
		}
	}
}
