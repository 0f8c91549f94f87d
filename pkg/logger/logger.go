package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logMu   sync.Mutex
	writers map[string]*lumberjack.Logger
	closed  chan struct{}

	TimeFormat = "2006-01-02 15:04:05"
)

func initLogger(cfg Config) error {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	if cfg.LevelFiles.IsEmpty() {
		cfg.LevelFiles = LevelFiles{{Level: INFO, Path: "logs/info.log"}}
	}
	for _, p := range cfg.LevelFiles.Paths() {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
	}

	logMu.Lock()
	if closed != nil {
		close(closed)
	}
	closed = make(chan struct{})
	done := closed
	logMu.Unlock()

	setWriter(cfg)
	go rotateDaily(done)
	return nil
}

func setWriter(cfg Config) {
	// bitmask of levels that own a dedicated file
	var owned uint8
	for _, entry := range cfg.LevelFiles {
		owned |= 1 << uint8(parseLevel(entry.Level))
	}

	outs := make([]io.Writer, 0, len(cfg.LevelFiles)+1)
	next := make(map[string]*lumberjack.Logger, len(cfg.LevelFiles))
	for _, entry := range cfg.LevelFiles {
		lj := &lumberjack.Logger{
			Filename:   entry.Path,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		next[entry.Level] = lj

		var w io.Writer = lj
		if !cfg.JSON {
			w = &zerolog.ConsoleWriter{Out: lj, TimeFormat: TimeFormat, NoColor: true}
		}
		outs = append(outs, &levelWriter{level: parseLevel(entry.Level), owned: owned, Writer: w})
	}
	if cfg.Console {
		outs = append(outs, &zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: TimeFormat})
	}

	logMu.Lock()
	defer logMu.Unlock()
	closeWriters()
	writers = next
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(outs...)).With().Timestamp().Caller().Logger()
}

// levelWriter accepts its own level. The info file also takes any level
// without a dedicated file, and the error file takes fatal when unowned.
type levelWriter struct {
	level zerolog.Level
	owned uint8
	io.Writer
}

func (w *levelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level == w.level {
		return w.Writer.Write(p)
	}
	unowned := w.owned&(1<<uint8(level)) == 0
	switch {
	case w.level == zerolog.InfoLevel && unowned:
		return w.Writer.Write(p)
	case w.level == zerolog.ErrorLevel && level == zerolog.FatalLevel && unowned:
		return w.Writer.Write(p)
	}
	return len(p), nil
}

func closeWriters() {
	for name, lj := range writers {
		if err := lj.Close(); err != nil {
			log.Logger.Err(err).Str("level", name).Msg("close log file failed")
		}
	}
	writers = nil
}

func rotateDaily(done <-chan struct{}) {
	for {
		now := time.Now()
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
		timer := time.NewTimer(midnight.Sub(now))
		select {
		case <-done:
			timer.Stop()
			return
		case <-timer.C:
			logMu.Lock()
			for name, lj := range writers {
				if err := lj.Rotate(); err != nil {
					log.Logger.Err(err).Str("level", name).Msg("rotate log file failed")
				}
			}
			logMu.Unlock()
		}
	}
}

func L() zerolog.Logger {
	return log.Logger
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

func Info() *zerolog.Event {
	return log.Logger.Info()
}

func Debug() *zerolog.Event {
	return log.Logger.Debug()
}

func Error() *zerolog.Event {
	return log.Logger.Error()
}

func Warn() *zerolog.Event {
	return log.Logger.Warn()
}

func Fatal() *zerolog.Event {
	return log.Logger.Fatal()
}

func Err(err error) *zerolog.Event {
	return log.Logger.Err(err)
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if closed != nil {
		close(closed)
		closed = nil
	}
	closeWriters()
}
