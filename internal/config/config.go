package config

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config es la configuración del proceso. Se resuelve una sola vez al arrancar
// (YAML opcional + variables de entorno) y es de sólo lectura después de Init.
type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
		// Epoch en milisegundos, se usa tal cual como cache-bust aguas abajo.
		Epoch int64 `yaml:"epoch"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		// TrustedProxies: IPs o CIDRs del balanceador; vacío ignora X-Forwarded-For.
		TrustedProxies  []string      `yaml:"trusted_proxies"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Database struct {
		URL      string `yaml:"url"`
		MaxConns int32  `yaml:"max_conns"`
		MinConns int32  `yaml:"min_conns"`
		// Migrate aplica las migraciones embebidas al arrancar serve.
		Migrate bool `yaml:"migrate"`
	} `yaml:"database"`

	ObjectStore struct {
		// s3 | gcs
		Provider  string `yaml:"provider"`
		Endpoint  string `yaml:"endpoint"`
		Region    string `yaml:"region"`
		Bucket    string `yaml:"bucket"`
		AccessKey string `yaml:"access_key"`
		Secret    string `yaml:"secret"`
		// UsePathStyle para MinIO / endpoints S3 compatibles.
		UsePathStyle bool `yaml:"use_path_style"`
		// GCSCredentials es el JSON de service account (sólo provider=gcs).
		GCSCredentials string `yaml:"gcs_credentials"`
	} `yaml:"object_store"`

	JWK struct {
		IssuerURL string `yaml:"issuer_url"`
		Audience  string `yaml:"audience"`
		// JWKSURL evita el discovery si está seteado.
		JWKSURL            string        `yaml:"jwks_url"`
		SoftTTL            time.Duration `yaml:"soft_ttl"`
		HardTTL            time.Duration `yaml:"hard_ttl"`
		MinRefreshInterval time.Duration `yaml:"min_refresh_interval"`
	} `yaml:"jwk"`

	Session struct {
		// Secret es LOCAL_TOKEN_SECRET, mínimo 32 bytes.
		Secret          string        `yaml:"secret"`
		CookieDomain    string        `yaml:"cookie_domain"`
		CookieSecure    bool          `yaml:"cookie_secure"`
		VersionCacheTTL time.Duration `yaml:"version_cache_ttl"`
	} `yaml:"session"`

	// ServiceAccounts: nombre -> sha256 base64url del secreto "svc.<...>".
	ServiceAccounts map[string]string `yaml:"service_accounts"`

	Search struct {
		AppID       string        `yaml:"app_id"`
		APIKey      string        `yaml:"api_key"`
		BaseURL     string        `yaml:"base_url"`
		IndexPrefix string        `yaml:"index_prefix"`
		Workers     int           `yaml:"workers"`
		BatchSize   int           `yaml:"batch_size"`
		BatchWait   time.Duration `yaml:"batch_wait"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"search"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			DB       int    `yaml:"db"`
			Password string `yaml:"password"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Rate struct {
		Enabled     bool          `yaml:"enabled"`
		Window      time.Duration `yaml:"window"`
		MaxRequests int           `yaml:"max_requests"`
	} `yaml:"rate"`

	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
		TLS      string `yaml:"tls"` // auto | starttls | ssl | none
	} `yaml:"smtp"`

	Email struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"email"`
}

// Load lee el YAML en path (si path no está vacío), aplica defaults y pisa
// con variables de entorno. No valida; eso lo hace Init.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	c.applyEnvOverrides()
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 20 * time.Second
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 20
	}
	if c.ObjectStore.Provider == "" {
		c.ObjectStore.Provider = "s3"
	}
	if c.JWK.SoftTTL == 0 {
		c.JWK.SoftTTL = time.Hour
	}
	if c.JWK.HardTTL == 0 {
		c.JWK.HardTTL = 24 * time.Hour
	}
	if c.JWK.MinRefreshInterval == 0 {
		c.JWK.MinRefreshInterval = 30 * time.Second
	}
	if c.Session.VersionCacheTTL == 0 {
		c.Session.VersionCacheTTL = 30 * time.Second
	}
	if c.Search.Workers == 0 {
		c.Search.Workers = 2
	}
	if c.Search.BatchSize == 0 {
		c.Search.BatchSize = 100
	}
	if c.Search.BatchWait == 0 {
		c.Search.BatchWait = 500 * time.Millisecond
	}
	if c.Search.Timeout == 0 {
		c.Search.Timeout = 10 * time.Second
	}
	if c.Search.BaseURL == "" && c.Search.AppID != "" {
		c.Search.BaseURL = "https://" + c.Search.AppID + ".algolia.net"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "jig"
	}
	if c.Rate.Window == 0 {
		c.Rate.Window = time.Minute
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 60
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
}

// IsDev reporta si el entorno es de desarrollo.
func (c *Config) IsDev() bool { return c.App.Env == "dev" }

// EpochTime devuelve el epoch como instante.
func (c *Config) EpochTime() time.Time { return time.UnixMilli(c.App.Epoch).UTC() }

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("EPOCH"); ok {
		// inválido queda en 0 y Validate lo reporta
		c.App.Epoch, _ = strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvCSV("TRUSTED_PROXIES"); ok {
		c.Server.TrustedProxies = v
	}

	// DATABASE
	if v, ok := getEnvStr("DATABASE_URL"); ok {
		c.Database.URL = v
	}
	if v, ok := getEnvInt("DATABASE_MAX_CONNS"); ok {
		c.Database.MaxConns = int32(v)
	}
	if v, ok := getEnvInt("DATABASE_MIN_CONNS"); ok {
		c.Database.MinConns = int32(v)
	}
	if v, ok := getEnvBool("DATABASE_MIGRATE"); ok {
		c.Database.Migrate = v
	}

	// OBJECT STORE
	if v, ok := getEnvStr("OBJECT_STORE_PROVIDER"); ok {
		c.ObjectStore.Provider = strings.ToLower(v)
	}
	if v, ok := getEnvStr("OBJECT_STORE_ENDPOINT"); ok {
		c.ObjectStore.Endpoint = v
	}
	if v, ok := getEnvStr("OBJECT_STORE_REGION"); ok {
		c.ObjectStore.Region = v
	}
	if v, ok := getEnvStr("OBJECT_STORE_BUCKET"); ok {
		c.ObjectStore.Bucket = v
	}
	if v, ok := getEnvStr("OBJECT_STORE_ACCESS_KEY"); ok {
		c.ObjectStore.AccessKey = v
	}
	if v, ok := getEnvStr("OBJECT_STORE_SECRET"); ok {
		c.ObjectStore.Secret = v
	}
	if v, ok := getEnvBool("OBJECT_STORE_PATH_STYLE"); ok {
		c.ObjectStore.UsePathStyle = v
	}
	if v, ok := getEnvStr("OBJECT_STORE_GCS_CREDENTIALS"); ok {
		c.ObjectStore.GCSCredentials = v
	}

	// JWK
	if v, ok := getEnvStr("JWK_ISSUER_URL"); ok {
		c.JWK.IssuerURL = strings.TrimRight(v, "/")
	}
	if v, ok := getEnvStr("JWK_AUDIENCE"); ok {
		c.JWK.Audience = v
	}
	if v, ok := getEnvStr("JWK_JWKS_URL"); ok {
		c.JWK.JWKSURL = v
	}
	if v, ok := getEnvDur("JWK_SOFT_TTL"); ok {
		c.JWK.SoftTTL = v
	}
	if v, ok := getEnvDur("JWK_HARD_TTL"); ok {
		c.JWK.HardTTL = v
	}

	// SESSION
	if v, ok := getEnvStr("LOCAL_TOKEN_SECRET"); ok {
		c.Session.Secret = v
	}
	if v, ok := getEnvStr("SESSION_COOKIE_DOMAIN"); ok {
		c.Session.CookieDomain = v
	}
	if v, ok := getEnvBool("SESSION_COOKIE_SECURE"); ok {
		c.Session.CookieSecure = v
	}
	if v, ok := getEnvDur("SESSION_VERSION_CACHE_TTL"); ok {
		c.Session.VersionCacheTTL = v
	}
	if v, ok := getEnvStr("SERVICE_ACCOUNTS"); ok {
		c.ServiceAccounts = parseKVList(v, ",")
	}

	// SEARCH
	if v, ok := getEnvStr("SEARCH_APP_ID"); ok {
		c.Search.AppID = v
	}
	if v, ok := getEnvStr("SEARCH_API_KEY"); ok {
		c.Search.APIKey = v
	}
	if v, ok := getEnvStr("SEARCH_BASE_URL"); ok {
		c.Search.BaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := getEnvStr("SEARCH_INDEX_PREFIX"); ok {
		c.Search.IndexPrefix = v
	}
	if v, ok := getEnvInt("SEARCH_WORKERS"); ok {
		c.Search.Workers = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvDur("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}

	// SMTP / EMAIL
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.SMTP.TLS = v
	}
	if v, ok := getEnvStr("EMAIL_BASE_URL"); ok {
		c.Email.BaseURL = strings.TrimRight(v, "/")
	}
}

// MinSecretLen es el largo mínimo de LOCAL_TOKEN_SECRET.
const MinSecretLen = 32

// Validate reporta todos los valores requeridos faltantes o inválidos en un
// único error.
func (c *Config) Validate() error {
	var errs []error
	missing := func(key string) { errs = append(errs, fmt.Errorf("%s is required", key)) }

	if c.App.Epoch <= 0 {
		errs = append(errs, errors.New("EPOCH must be a positive millisecond integer"))
	}
	if c.Database.URL == "" {
		missing("DATABASE_URL")
	}

	switch c.ObjectStore.Provider {
	case "s3":
		if c.ObjectStore.Region == "" {
			missing("OBJECT_STORE_REGION")
		}
		if c.ObjectStore.AccessKey == "" {
			missing("OBJECT_STORE_ACCESS_KEY")
		}
		if c.ObjectStore.Secret == "" {
			missing("OBJECT_STORE_SECRET")
		}
	case "gcs":
		if c.ObjectStore.GCSCredentials == "" {
			missing("OBJECT_STORE_GCS_CREDENTIALS")
		}
	default:
		errs = append(errs, fmt.Errorf("OBJECT_STORE_PROVIDER %q not supported (s3|gcs)", c.ObjectStore.Provider))
	}
	if c.ObjectStore.Bucket == "" {
		missing("OBJECT_STORE_BUCKET")
	}

	if c.JWK.IssuerURL == "" {
		missing("JWK_ISSUER_URL")
	} else if u, err := url.Parse(c.JWK.IssuerURL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("JWK_ISSUER_URL %q is not a valid URL", c.JWK.IssuerURL))
	} else if u.Scheme != "https" && !(c.IsDev() && u.Scheme == "http") {
		errs = append(errs, fmt.Errorf("JWK_ISSUER_URL must use https"))
	}
	if c.JWK.Audience == "" {
		missing("JWK_AUDIENCE")
	}
	if c.JWK.HardTTL < c.JWK.SoftTTL {
		errs = append(errs, errors.New("JWK_HARD_TTL must be >= JWK_SOFT_TTL"))
	}

	if c.Session.Secret == "" {
		missing("LOCAL_TOKEN_SECRET")
	} else if len(c.Session.Secret) < MinSecretLen {
		errs = append(errs, fmt.Errorf("LOCAL_TOKEN_SECRET must be at least %d bytes", MinSecretLen))
	}

	if c.Search.AppID == "" {
		missing("SEARCH_APP_ID")
	}
	if c.Search.APIKey == "" {
		missing("SEARCH_API_KEY")
	}
	if c.Search.BatchSize > 1000 {
		errs = append(errs, errors.New("search batch_size must be <= 1000"))
	}

	for _, p := range c.Server.TrustedProxies {
		if !validProxy(p) {
			errs = append(errs, fmt.Errorf("TRUSTED_PROXIES entry %q is not an IP or CIDR", p))
		}
	}

	if c.Cache.Kind == "redis" && c.Cache.Redis.Addr == "" {
		missing("REDIS_ADDR")
	}

	return errors.Join(errs...)
}

func validProxy(s string) bool {
	if strings.Contains(s, "/") {
		_, err := netip.ParsePrefix(s)
		return err == nil
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}

// parse env of form "k1=v1<sep>k2=v2" into map
func parseKVList(s, sep string) map[string]string {
	s = strings.TrimSpace(s)
	if s == "" {
		return map[string]string{}
	}
	items := strings.Split(s, sep)
	out := make(map[string]string, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		// split at first '='
		if i := strings.IndexRune(it, '='); i > 0 {
			k := strings.TrimSpace(it[:i])
			v := strings.TrimSpace(it[i+1:])
			if k != "" && v != "" {
				out[k] = v
			}
		}
	}
	return out
}
