// Package config reads the portal's environment once into an immutable
// Config that probes and handlers receive at construction.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openkpi/portal/internal/database"
)

// Namespaces are the Kubernetes namespaces the platform is deployed into.
type Namespaces struct {
	Platform  string
	OpenKPI   string
	Airbyte   string
	Transform string
	Analytics string
	N8N       string
	Tickets   string
}

// Hosts are the external ingress hostnames of the platform applications.
// An empty host means "not published".
type Hosts struct {
	Portal   string
	Airbyte  string
	MinIO    string
	Metabase string
	N8N      string
	Zammad   string
	DBT      string
}

// MinIO holds object store connection settings.
type MinIO struct {
	Service     string
	APIPort     int
	ConsolePort int
	User        string
	Password    string
	Region      string
	UseSSL      bool
}

// Endpoint returns the host:port the S3 API listens on.
func (m MinIO) Endpoint() string {
	if m.Service == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", m.Service, m.APIPort)
}

// EndpointURL returns the S3 endpoint as a URL, for evidence.
func (m MinIO) EndpointURL() string {
	if m.Service == "" {
		return ""
	}
	scheme := "http"
	if m.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + m.Endpoint()
}

// Configured reports whether credentials are present.
func (m MinIO) Configured() bool {
	return m.Service != "" && m.User != "" && m.Password != ""
}

// Credentials holds the optional API credentials of the HTTP applications.
type Credentials struct {
	N8NAPIKey      string
	N8NBasicUser   string
	N8NBasicPass   string
	ZammadAPIToken string
	MetabaseAPIKey string
}

// DBT locates dbt artifacts and catalogs in the object store.
type DBT struct {
	ArtifactBuckets []string
	DocsBucket      string
	DefaultProject  string
}

// Telemetry holds observability settings.
type Telemetry struct {
	Enabled        bool
	OTLPEndpoint   string
	MetricsEnabled bool
}

// Worker holds background sweep settings.
type Worker struct {
	SweepInterval      time.Duration
	PubSubProjectID    string
	PubSubSubscription string
}

// Config is the full portal configuration. It is built once and not mutated.
type Config struct {
	Port       string
	Env        string
	Version    string
	URLScheme  string
	RequireTLS bool

	PortalUIBase  string
	PortalAPIBase string

	Namespaces  Namespaces
	Hosts       Hosts
	Postgres    database.Config
	MinIO       MinIO
	Credentials Credentials
	DBT         DBT

	// AirbyteInternalURL is the in-cluster Airbyte server address.
	AirbyteInternalURL string

	// Kubeconfig is used when not running inside a cluster.
	Kubeconfig string

	// ReachTimeout bounds reachability checks, APITimeout bounds API calls.
	ReachTimeout time.Duration
	APITimeout   time.Duration

	Telemetry Telemetry
	Worker    Worker
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	ns := Namespaces{
		Platform:  getEnvOrDefault("PLATFORM_NS", "platform"),
		OpenKPI:   getEnvOrDefault("OPENKPI_NS", "open-kpi"),
		Airbyte:   getEnvOrDefault("AIRBYTE_NS", "airbyte"),
		Transform: getEnvOrDefault("TRANSFORM_NS", "transform"),
		Analytics: getEnvOrDefault("ANALYTICS_NS", "analytics"),
		N8N:       getEnvOrDefault("N8N_NS", "n8n"),
		Tickets:   getEnvOrDefault("TICKETS_NS", "tickets"),
	}

	return Config{
		Port:       getEnvOrDefault("APP_PORT", "8000"),
		Env:        getEnvOrDefault("APP_ENV", "development"),
		Version:    getEnvOrDefault("APP_VERSION", "dev"),
		URLScheme:  SchemeForTLSMode(os.Getenv("TLS_MODE")),
		RequireTLS: getBool("REQUIRE_TLS", false),

		PortalUIBase:  strings.TrimRight(os.Getenv("PORTAL_UI_BASE"), "/"),
		PortalAPIBase: strings.TrimRight(os.Getenv("PORTAL_API_BASE"), "/"),

		Namespaces: ns,
		Hosts: Hosts{
			Portal:   os.Getenv("PORTAL_HOST"),
			Airbyte:  os.Getenv("AIRBYTE_HOST"),
			MinIO:    os.Getenv("MINIO_HOST"),
			Metabase: os.Getenv("METABASE_HOST"),
			N8N:      os.Getenv("N8N_HOST"),
			Zammad:   os.Getenv("ZAMMAD_HOST"),
			DBT:      os.Getenv("DBT_HOST"),
		},
		Postgres: database.ConfigFromEnv(),
		MinIO: MinIO{
			Service:     getEnvOrDefault("MINIO_SERVICE", "openkpi-minio.open-kpi.svc.cluster.local"),
			APIPort:     getInt("MINIO_API_PORT", 9000),
			ConsolePort: getInt("MINIO_CONSOLE_PORT", 9001),
			User:        os.Getenv("MINIO_ROOT_USER"),
			Password:    os.Getenv("MINIO_ROOT_PASSWORD"),
			Region:      getEnvOrDefault("AIRBYTE_S3_REGION", "us-east-1"),
			UseSSL:      getBool("MINIO_USE_SSL", false),
		},
		Credentials: Credentials{
			N8NAPIKey:      os.Getenv("N8N_API_KEY"),
			N8NBasicUser:   os.Getenv("N8N_BASIC_USER"),
			N8NBasicPass:   os.Getenv("N8N_BASIC_PASS"),
			ZammadAPIToken: os.Getenv("ZAMMAD_API_TOKEN"),
			MetabaseAPIKey: os.Getenv("METABASE_API_KEY"),
		},
		DBT: DBT{
			ArtifactBuckets: []string{"dbt", "dbt-docs"},
			DocsBucket:      getEnvOrDefault("DBT_DOCS_BUCKET", "dbt-docs"),
			DefaultProject:  getEnvOrDefault("DBT_DEFAULT_PROJECT", "his_dmo"),
		},
		AirbyteInternalURL: getEnvOrDefault("AIRBYTE_INTERNAL_URL",
			fmt.Sprintf("http://airbyte-server.%s.svc.cluster.local:8001", ns.Airbyte)),
		Kubeconfig:   os.Getenv("KUBECONFIG"),
		ReachTimeout: getDuration("PROBE_REACH_TIMEOUT", 3*time.Second),
		APITimeout:   getDuration("PROBE_API_TIMEOUT", 5*time.Second),
		Telemetry: Telemetry{
			Enabled:        os.Getenv("OTEL_ENABLED") == "true",
			OTLPEndpoint:   getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			MetricsEnabled: getBool("METRICS_ENABLED", true),
		},
		Worker: Worker{
			SweepInterval:      getDuration("SWEEP_INTERVAL", 60*time.Second),
			PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
			PubSubSubscription: os.Getenv("PUBSUB_SUBSCRIPTION"),
		},
	}
}

// SchemeForTLSMode maps TLS_MODE to the scheme used for external links.
// Anything other than an explicit "off" value means https.
func SchemeForTLSMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "off", "disabled", "false", "0":
		return "http"
	default:
		return "https"
	}
}

// HostURL turns a bare hostname into an absolute URL. Empty in, empty out.
func (c Config) HostURL(host string) string {
	if host == "" {
		return ""
	}
	return c.URLScheme + "://" + host
}

// PortalUIURL prefers PORTAL_UI_BASE over PORTAL_HOST.
func (c Config) PortalUIURL() string {
	if c.PortalUIBase != "" {
		return c.PortalUIBase
	}
	return c.HostURL(c.Hosts.Portal)
}

// PortalAPIURL prefers PORTAL_API_BASE, then the UI URL plus /api.
func (c Config) PortalAPIURL() string {
	if c.PortalAPIBase != "" {
		return c.PortalAPIBase
	}
	if ui := c.PortalUIURL(); ui != "" {
		return ui + "/api"
	}
	return ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}
