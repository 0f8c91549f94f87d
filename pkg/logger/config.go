package logger

import "github.com/rs/zerolog"

const (
	DEBUG = "debug"
	INFO  = "info"
	WARN  = "warn"
	ERROR = "error"
	FATAL = "fatal"
)

// LevelFile routes one level to its own rotated file.
type LevelFile struct {
	Level string
	Path  string
}

type LevelFiles []LevelFile

func (lf LevelFiles) IsEmpty() bool {
	return len(lf) == 0
}

func (lf LevelFiles) Path(level string) (string, bool) {
	for _, entry := range lf {
		if entry.Level == level {
			return entry.Path, true
		}
	}
	return "", false
}

func (lf LevelFiles) Paths() []string {
	paths := make([]string, 0, len(lf))
	for _, entry := range lf {
		paths = append(paths, entry.Path)
	}
	return paths
}

type Config struct {
	LevelFiles LevelFiles
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Level      string
	Compress   bool
	Console    bool
	JSON       bool // write raw json lines to files instead of console format
}

// DefaultConfig writes errors and everything else to separate files under logs/.
func DefaultConfig() Config {
	return Config{
		LevelFiles: LevelFiles{
			{Level: ERROR, Path: "logs/err.log"},
			{Level: INFO, Path: "logs/info.log"},
		},
		MaxSize:    10,
		MaxBackups: 100,
		MaxAge:     5,
		Level:      INFO,
	}
}

type Builder struct {
	config Config
	files  LevelFiles
}

func NewBuilder() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) SetMaxSize(size int) *Builder {
	if size > 0 {
		b.config.MaxSize = size
	}
	return b
}

func (b *Builder) SetMaxBackups(backups int) *Builder {
	if backups > 0 {
		b.config.MaxBackups = backups
	}
	return b
}

func (b *Builder) SetMaxAge(days int) *Builder {
	if days > 0 {
		b.config.MaxAge = days
	}
	return b
}

func (b *Builder) SetLevel(level string) *Builder {
	b.config.Level = level
	return b
}

func (b *Builder) EnableCompression(enable bool) *Builder {
	b.config.Compress = enable
	return b
}

func (b *Builder) EnableConsoleOutput(enable bool) *Builder {
	b.config.Console = enable
	return b
}

func (b *Builder) EnableJSON(enable bool) *Builder {
	b.config.JSON = enable
	return b
}

// AddLevelFile replaces the default file layout on first use.
func (b *Builder) AddLevelFile(level, path string) *Builder {
	b.files = append(b.files, LevelFile{Level: level, Path: path})
	return b
}

func (b *Builder) SetLevelFiles(files LevelFiles) *Builder {
	b.files = files
	return b
}

func (b *Builder) Build() error {
	cfg := b.config
	if !b.files.IsEmpty() {
		cfg.LevelFiles = b.files
	}
	return initLogger(cfg)
}

func parseLevel(name string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
