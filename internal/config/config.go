package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ritmofit/internal/logger"
	"gopkg.in/yaml.v3"
)

// loadEnv читает .env только вне production (в контейнере/prod конфиг только из env).
func loadEnv() {
	if os.Getenv("APP_ENV") == "production" {
		return
	}
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		path := dir + "/.env"
		f, err := os.Open(path)
		if err == nil {
			loadEnvFrom(f)
			f.Close()
			return
		}
		parent := strings.TrimSuffix(dir, "/")
		if idx := strings.LastIndex(parent, "/"); idx <= 0 {
			return
		} else {
			dir = parent[:idx]
			if dir == "" {
				dir = "/"
			}
		}
	}
}

func loadEnvFrom(f *os.File) {
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if key == "" {
			continue
		}
		if len(val) >= 2 && (val[0] == '"' && val[len(val)-1] == '"' || val[0] == '\'' && val[len(val)-1] == '\'') {
			val = val[1 : len(val)-1]
		}
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// PushConfig — Web Push для доставки уведомлений в браузерную оболочку,
// когда она не подключена по WebSocket. Пустые ключи — пуши отключены.
type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subscriber      string `yaml:"subscriber"`
}

// StubConfig — настройки dev-бэкенда (services/gymstub): адрес и Postgres.
// В -dev режиме DatabaseURL выставляется встроенным Postgres.
type StubConfig struct {
	Addr        string `yaml:"addr"`
	DatabaseURL string `yaml:"database_url"`
	DBMaxConns  int    `yaml:"db_max_conns"`
}

// Config содержит настройки агента терминала.
// Приоритет: переменные окружения > YAML-файл > значения по умолчанию.
type Config struct {
	// Локальный API для оболочки. Слушаем loopback: наружу агент не смотрит.
	ServerAddr   string        `yaml:"server_addr"`
	ReadTimeout  time.Duration `yaml:"-"`
	WriteTimeout time.Duration `yaml:"-"`
	IdleTimeout  time.Duration `yaml:"-"`

	// BackendURL — базовый URL бэкенда RitmoFit.
	BackendURL string `yaml:"backend_url"`
	// RequestTimeout — таймаут обычных запросов к бэкенду.
	RequestTimeout time.Duration `yaml:"-"`
	// ProbeTimeout — таймаут пробы связи (GET /).
	ProbeTimeout time.Duration `yaml:"-"`

	// PollInterval — период фонового опроса уведомлений. Планировщик
	// не даёт опускаться ниже минимума (15 минут).
	PollInterval time.Duration `yaml:"-"`

	// DataDir — каталог состояния агента: kv-файлы, кеш sqlite, VAPID-ключи.
	DataDir string `yaml:"data_dir"`

	// StoreURL — необязательный redis:// для общего состояния нескольких
	// терминалов одной sede. Пусто — файловое хранилище.
	StoreURL string `yaml:"store_url"`

	// DeviceName отправляется бэкенду при логине (список сессий участника).
	DeviceName string `yaml:"device_name"`

	// CORS для браузерной оболочки.
	CORSAllowedOrigins string `yaml:"cors_allowed_origins"`

	LogLevel string `yaml:"log_level"`

	Push PushConfig `yaml:"-"`
	Stub StubConfig `yaml:"-"`
}

// yamlConfig — промежуточная структура для парсинга agent YAML.
type yamlConfig struct {
	ServerAddr          string `yaml:"server_addr"`
	ReadTimeout         int    `yaml:"read_timeout"`
	WriteTimeout        int    `yaml:"write_timeout"`
	IdleTimeout         int    `yaml:"idle_timeout"`
	BackendURL          string `yaml:"backend_url"`
	RequestTimeout      int    `yaml:"request_timeout"`
	ProbeTimeout        int    `yaml:"probe_timeout"`
	PollIntervalMinutes int    `yaml:"poll_interval_minutes"`
	DataDir             string `yaml:"data_dir"`
	StoreURL            string `yaml:"store_url"`
	DeviceName          string `yaml:"device_name"`
	CORSAllowedOrigins  string `yaml:"cors_allowed_origins"`
	LogLevel            string     `yaml:"log_level"`
	Push                PushConfig `yaml:"push"`
	Stub                StubConfig `yaml:"stub"`
}

// Load загружает конфигурацию агента.
// Сначала подгружаются переменные из .env (если есть), затем YAML и env (env имеет приоритет).
func Load() *Config {
	loadEnv()
	// Значения по умолчанию
	yc := yamlConfig{
		ServerAddr:          "127.0.0.1:7600",
		ReadTimeout:         15,
		WriteTimeout:        15,
		IdleTimeout:         60,
		BackendURL:          "http://localhost:8080",
		RequestTimeout:      15,
		ProbeTimeout:        2,
		PollIntervalMinutes: 15,
		DataDir:             "./data",
		DeviceName:          "ritmofit-terminal",
		CORSAllowedOrigins:  "*",
		LogLevel:            "info",
	}

	// Загрузка YAML: CONFIG_PATH → config/agent.yaml
	paths := []string{os.Getenv("CONFIG_PATH"), "config/agent.yaml"}
	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &yc); err != nil {
			logger.Errorf("config: ошибка парсинга %s: %v (используются значения по умолчанию)", path, err)
		} else {
			logger.Infof("config: загружен %s", path)
		}
		break
	}

	cfg := &Config{
		ServerAddr:         envStr("SERVER_ADDR", yc.ServerAddr),
		ReadTimeout:        time.Duration(envInt("READ_TIMEOUT", yc.ReadTimeout)) * time.Second,
		WriteTimeout:       time.Duration(envInt("WRITE_TIMEOUT", yc.WriteTimeout)) * time.Second,
		IdleTimeout:        time.Duration(envInt("IDLE_TIMEOUT", yc.IdleTimeout)) * time.Second,
		BackendURL:         strings.TrimSuffix(envStr("BACKEND_URL", yc.BackendURL), "/"),
		RequestTimeout:     time.Duration(envInt("REQUEST_TIMEOUT", yc.RequestTimeout)) * time.Second,
		ProbeTimeout:       time.Duration(envInt("PROBE_TIMEOUT", yc.ProbeTimeout)) * time.Second,
		PollInterval:       time.Duration(envInt("POLL_INTERVAL_MINUTES", yc.PollIntervalMinutes)) * time.Minute,
		DataDir:            envStr("DATA_DIR", yc.DataDir),
		StoreURL:           envStr("STORE_URL", yc.StoreURL),
		DeviceName:         envStr("DEVICE_NAME", yc.DeviceName),
		CORSAllowedOrigins: envStr("CORS_ALLOWED_ORIGINS", yc.CORSAllowedOrigins),
		LogLevel:           envStr("LOG_LEVEL", yc.LogLevel),
		Push: PushConfig{
			VAPIDPublicKey:  envStr("VAPID_PUBLIC_KEY", yc.Push.VAPIDPublicKey),
			VAPIDPrivateKey: envStr("VAPID_PRIVATE_KEY", yc.Push.VAPIDPrivateKey),
			Subscriber:      envStr("PUSH_SUBSCRIBER", yc.Push.Subscriber),
		},
		Stub: StubConfig{
			Addr:        envStr("STUB_ADDR", yc.Stub.Addr),
			DatabaseURL: envStr("DATABASE_URL", yc.Stub.DatabaseURL),
			DBMaxConns:  envInt("DB_MAX_CONNECTIONS", yc.Stub.DBMaxConns),
		},
	}
	if cfg.Stub.Addr == "" {
		cfg.Stub.Addr = ":8080"
	}
	if cfg.Stub.DBMaxConns <= 0 {
		cfg.Stub.DBMaxConns = 8
	}
	if cfg.Push.Subscriber == "" {
		cfg.Push.Subscriber = "ritmofit-agent"
	}

	if os.Getenv("APP_ENV") == "production" {
		if cfg.CORSAllowedOrigins == "" || cfg.CORSAllowedOrigins == "*" {
			logger.Errorf("config: в production задайте CORS_ALLOWED_ORIGINS (явный origin оболочки, не *)")
		}
	}

	return cfg
}

// envStr возвращает значение переменной окружения или fallback.
func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt возвращает числовое значение переменной окружения или fallback.
func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
