package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivlev/turntable/internal/config"
	"github.com/ivlev/turntable/internal/engine"
	"github.com/ivlev/turntable/internal/logging"
	"github.com/ivlev/turntable/internal/notify"
	"github.com/ivlev/turntable/internal/scene"
	"github.com/ivlev/turntable/internal/source"
	"github.com/ivlev/turntable/internal/system"
	"github.com/ivlev/turntable/internal/video"
	"github.com/ivlev/turntable/internal/watch"
)

var version = "dev"

func main() {
	// Создаем нужные директории, если их нет
	dirs := []string{"input/models", "output"}
	for _, d := range dirs {
		os.MkdirAll(d, 0755)
	}

	configPtr := flag.String("config", "", "Путь к turntable.yaml (необязательно)")
	inputPtr := flag.String("input", "", "Путь к модели .wrl/.stl (по умолчанию: самый свежий файл в input/models/)")
	outputPtr := flag.String("output", "", "Путь к результату (если пусто, генерируется автоматически в output/)")
	speedPtr := flag.Int("speed", 5, "Скорость вращения 1-10")
	directionPtr := flag.String("direction", "left", "Направление вращения: left, right")
	formatPtr := flag.String("format", "webm", "Формат: webm, gif")
	fixColorsPtr := flag.Bool("fix-colors", false, "Исправить цвета материалов платы")
	widthPtr := flag.Int("width", 600, "Ширина")
	heightPtr := flag.Int("height", 600, "Высота")
	fpsPtr := flag.Int("fps", 60, "FPS")
	qualityPtr := flag.Int("quality", 0, "Качество видео (0 - авто, libvpx-vp9: CRF 0-63)")
	workersPtr := flag.Int("workers", runtime.NumCPU(), "Потоки")
	gifScalePtr := flag.Float64("gif-scale", 1, "Масштаб кадров GIF (0-1]")
	materialsPtr := flag.String("materials", "", "YAML с правилами исправления цветов")
	realtimePtr := flag.Bool("realtime", false, "Тикать по настоящим часам вместо фиксированного шага")
	statsPtr := flag.Bool("stats", false, "Показать статистику CPU/памяти")
	reportPtr := flag.String("report", "", "Путь к YAML-отчету о прогоне")
	mqttPtr := flag.String("mqtt-url", "", "MQTT брокер для прогресса, например tcp://localhost:1883")
	watchPtr := flag.Bool("watch", false, "Следить за input/models и рендерить каждую новую модель")
	logLevelPtr := flag.String("log-level", "info", "Уровень логов: debug, info, warn, error")

	flag.Parse()

	cfg, err := config.Load(*configPtr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[!] Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// флаги из командной строки важнее файла и окружения
	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.Animation.ModelPath = *inputPtr
		case "output":
			cfg.OutputPath = *outputPtr
		case "speed":
			cfg.Animation.Speed = *speedPtr
		case "direction":
			d, err := config.ParseDirection(*directionPtr)
			flagErr = errors.Join(flagErr, err)
			cfg.Animation.Direction = d
		case "format":
			fm, err := config.ParseFormat(*formatPtr)
			flagErr = errors.Join(flagErr, err)
			cfg.Animation.Format = fm
		case "fix-colors":
			cfg.Animation.FixColors = *fixColorsPtr
		case "width":
			cfg.Width = *widthPtr
		case "height":
			cfg.Height = *heightPtr
		case "fps":
			cfg.FPS = *fpsPtr
		case "quality":
			cfg.Quality = *qualityPtr
		case "workers":
			cfg.Workers = max(1, *workersPtr)
		case "gif-scale":
			cfg.GIFScale = *gifScalePtr
		case "materials":
			cfg.MaterialsFile = *materialsPtr
		case "realtime":
			cfg.Realtime = *realtimePtr
		case "stats":
			cfg.ShowStats = *statsPtr
		case "report":
			cfg.ReportPath = *reportPtr
		case "mqtt-url":
			cfg.MQTT.URL = *mqttPtr
		case "watch":
			cfg.Watch.Enabled = *watchPtr
		case "log-level":
			cfg.LogLevel = *logLevelPtr
		}
	})
	if flagErr == nil {
		flagErr = cfg.Validate()
	}
	if flagErr != nil {
		fmt.Fprintf(os.Stderr, "[!] Ошибка параметров: %v\n", flagErr)
		os.Exit(2)
	}
	cfg.BuildVersion = version

	logger := logging.Setup(cfg.LogLevel)
	system.InitResourceLimits(logger)

	if cfg.Animation.Format == config.WebM {
		if !system.HasFFmpeg() {
			logger.Fatal().Msg("ffmpeg не найден в PATH, используйте -format gif")
		}
		if cfg.VideoEncoder == "" {
			cfg.VideoEncoder = system.GetBestVP9Encoder()
			if cfg.VideoEncoder != "libvpx-vp9" {
				fmt.Printf("[*] Обнаружено аппаратное ускорение: %s\n", cfg.VideoEncoder)
			}
		}
		if cfg.Quality == 0 {
			cfg.Quality = system.DefaultQuality(cfg.VideoEncoder)
		}
	}

	app, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("инициализация")
	}
	defer app.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Watch.Enabled {
		if err := app.watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("watch")
		}
		return
	}

	modelPath := cfg.Animation.ModelPath
	if modelPath == "" {
		latest, err := system.FindLatest(cfg.Watch.Dir, source.Extensions()...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[!] Ошибка: %v. Положите модель в %s/\n", err, cfg.Watch.Dir)
			os.Exit(1)
		}
		modelPath = latest
		fmt.Printf("[*] Выбран файл: %s\n", modelPath)
	}

	if _, err := app.render(ctx, modelPath, cfg.OutputPath); err != nil {
		stop()
		app.close()
		os.Exit(1)
	}
}

// app holds what every render shares: providers, notifiers and the frame pool.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	provider *source.FileProvider
	notifier notify.Notifier
	fixer    *scene.ColorFixer
	pool     *system.ImagePool
	closers  []func()
}

func newApp(cfg *config.Config, log zerolog.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		log:      log,
		provider: source.NewFileProvider(cfg.STLZUp, logging.Component(log, "source")),
		fixer:    scene.DefaultColorFixer(),
		pool:     system.NewImagePool(),
	}

	if cfg.MaterialsFile != "" {
		fixer, err := scene.LoadColorFixer(cfg.MaterialsFile)
		if err != nil {
			return nil, err
		}
		a.fixer = fixer
	}

	notifiers := notify.Multi{notify.NewConsole(os.Stdout)}
	if cfg.MQTT.URL != "" {
		client, err := notify.Dial(cfg.MQTT)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { client.Disconnect(250) })
		notifiers = append(notifiers, notify.NewMQTT(client, cfg.MQTT.Topic, logging.Component(log, "mqtt")))
		log.Info().Str("broker", cfg.MQTT.URL).Str("topic", cfg.MQTT.Topic).Msg("mqtt connected")
	}
	a.notifier = notifiers
	return a, nil
}

func (a *app) close() {
	for _, c := range a.closers {
		c()
	}
}

// render runs one session for modelPath. An empty output picks
// output/<model>_<timestamp>.<ext>.
func (a *app) render(ctx context.Context, modelPath, output string) (string, error) {
	cfg := *a.cfg
	cfg.Animation.ModelPath = modelPath
	if output == "" {
		output = system.OutputPath("output", modelPath, cfg.Animation.Format.Ext(), time.Now())
	}
	cfg.OutputPath = output

	rec, err := video.NewCapture(video.Options{
		Width:    cfg.Width,
		Height:   cfg.Height,
		FPS:      cfg.FPS,
		Output:   cfg.OutputPath,
		Encoder:  cfg.VideoEncoder,
		Quality:  cfg.Quality,
		Workers:  cfg.Workers,
		GIFScale: cfg.GIFScale,
		Pool:     a.pool,
		Log:      logging.Component(a.log, "recorder"),
	})
	if err != nil {
		return "", err
	}

	session := engine.NewSession(&cfg, a.provider, rec, a.notifier, logging.Component(a.log, "session"))
	session.Fixer = a.fixer

	rep, err := session.Run(ctx)
	if rep != nil && cfg.ShowStats && rep.Stats != nil {
		fmt.Printf("[*] Кадров: %d, время: %.1fs, CPU: %.1f%%, FPS: %.1f, память: %d MB\n",
			rep.Frames, rep.Stats.WallSeconds, rep.Stats.CPUPercent, rep.Stats.EffectiveFPS, rep.Stats.RSSBytes>>20)
	}
	if err != nil {
		return "", err
	}
	return rep.Output, nil
}

func (a *app) watch(ctx context.Context) error {
	w, err := watch.New(a.cfg.Watch.Dir, watch.DefaultSettle, source.Supported)
	if err != nil {
		return fmt.Errorf("watch %s: %w", a.cfg.Watch.Dir, err)
	}
	defer w.Close()

	fmt.Printf("[*] Ожидание моделей в %s/ (Ctrl+C для выхода)\n", a.cfg.Watch.Dir)
	return w.Serve(ctx, logging.Component(a.log, "watch"), func(ctx context.Context, path string) error {
		_, err := a.render(ctx, path, "")
		return err
	})
}
