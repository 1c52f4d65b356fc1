package system

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// InitResourceLimits поднимает лимит открытых файлов: ffmpeg и пул воркеров
// GIF держат много дескрипторов.
func InitResourceLimits(log zerolog.Logger) {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Warn().Err(err).Msg("не удалось получить лимит файлов")
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Warn().Err(err).Msg("не удалось установить лимит файлов")
	} else {
		log.Debug().Uint64("nofile", uint64(rLimit.Cur)).Msg("лимит открытых файлов увеличен")
	}
}

// FindLatest возвращает самый свежий файл в dir с одним из расширений exts.
func FindLatest(dir string, exts ...string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !hasExt(f.Name(), exts) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("в папке %s не найдено файлов %s", dir, strings.Join(exts, ", "))
	}

	return latestFile, nil
}

func hasExt(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// OutputPath строит имя результата вида output/<model>_<timestamp>.<ext>.
func OutputPath(dir, modelPath, ext string, now time.Time) string {
	baseName := filepath.Base(modelPath)
	nameOnly := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	cleanName := strings.ReplaceAll(nameOnly, " ", "_")
	timestamp := now.Format("2006-01-02_15-04-05")
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", cleanName, timestamp, ext))
}

// HasFFmpeg reports whether ffmpeg is on PATH.
func HasFFmpeg() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// GetBestVP9Encoder выбирает энкодер для webm.
// Приоритеты:
// 1. Intel QSV (vp9_qsv)
// 2. VAAPI (vp9_vaapi) - требует -vaapi_device, пока пропускаем
// 3. Software (libvpx-vp9)
func GetBestVP9Encoder() string {
	cmd := exec.Command("ffmpeg", "-hide_banner", "-encoders")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "libvpx-vp9"
	}
	return pickEncoder(string(out))
}

func pickEncoder(encoders string) string {
	for _, name := range []string{"vp9_qsv"} {
		if strings.Contains(encoders, " "+name+" ") {
			return name
		}
	}
	return "libvpx-vp9"
}

// DefaultQuality возвращает разумное качество для энкодера.
func DefaultQuality(encoder string) int {
	switch encoder {
	case "vp9_qsv":
		return 30 // global_quality
	default:
		return 32 // CRF для libvpx-vp9 (0-63)
	}
}
