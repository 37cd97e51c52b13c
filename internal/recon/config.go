package recon

import (
	stderrors "errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/anstrom/reconnoiter/internal/errors"
)

// Defaults.
const (
	DefaultTimeout          = 3 * time.Second
	DefaultMaxWorkers       = 50
	DefaultRateLimit        = 10.0
	DefaultSubdomainWorkers = 20
	DefaultSweepWorkers     = 50
	DefaultPingTimeout      = 3 * time.Second
	DefaultBannerSize       = 1024
	DefaultWebBodyLimit     = 1 << 20
)

// Liveness probe methods.
const (
	LivenessExec = "exec"
	LivenessICMP = "icmp"
	LivenessTCP  = "tcp"
	LivenessNmap = "nmap"
)

// Config configures a Scanner. Zero values are not filled in; start from
// DefaultConfig.
type Config struct {
	// Timeout bounds each connect, banner read and HTTP request.
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
	// MaxWorkers bounds port scan and per-port probe concurrency.
	MaxWorkers int `yaml:"max_workers" json:"max_workers" validate:"gt=0"`
	// RateLimit is the instance-wide probe ceiling in probes per second.
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit" validate:"gt=0"`
	// Ports replaces the well-known port list when non-empty.
	Ports []int `yaml:"ports,omitempty" json:"ports,omitempty" validate:"dive,min=1,max=65535"`
	// InsecureTLS disables certificate verification during web fingerprinting.
	InsecureTLS bool `yaml:"insecure_tls" json:"insecure_tls"`
	// BannerSize caps the bytes read from a service.
	BannerSize int `yaml:"banner_size" json:"banner_size" validate:"gt=0"`
	// WebBodyLimit caps the bytes of response body inspected per request.
	WebBodyLimit int64 `yaml:"web_body_limit" json:"web_body_limit" validate:"gt=0"`

	// DNSServer, when set, sends lookups to this host:port instead of the
	// system resolver.
	DNSServer string `yaml:"dns_server" json:"dns_server" validate:"omitempty,hostname_port"`

	SubdomainWorkers int      `yaml:"subdomain_workers" json:"subdomain_workers" validate:"gt=0"`
	Wordlist         []string `yaml:"wordlist,omitempty" json:"wordlist,omitempty" validate:"dive,required"`

	SweepWorkers   int           `yaml:"sweep_workers" json:"sweep_workers" validate:"gt=0"`
	PingTimeout    time.Duration `yaml:"ping_timeout" json:"ping_timeout" validate:"gt=0"`
	LivenessMethod string        `yaml:"liveness_method" json:"liveness_method" validate:"oneof=exec icmp tcp nmap"`
	// ICMPPrivileged uses raw sockets instead of unprivileged datagram ICMP.
	ICMPPrivileged bool  `yaml:"icmp_privileged" json:"icmp_privileged"`
	TCPPingPorts   []int `yaml:"tcp_ping_ports" json:"tcp_ping_ports" validate:"dive,min=1,max=65535"`
}

// DefaultConfig returns the stock scanner configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:          DefaultTimeout,
		MaxWorkers:       DefaultMaxWorkers,
		RateLimit:        DefaultRateLimit,
		BannerSize:       DefaultBannerSize,
		WebBodyLimit:     DefaultWebBodyLimit,
		SubdomainWorkers: DefaultSubdomainWorkers,
		SweepWorkers:     DefaultSweepWorkers,
		PingTimeout:      DefaultPingTimeout,
		LivenessMethod:   LivenessExec,
		TCPPingPorts:     []int{80, 443, 22},
	}
}

var configValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the configuration and reports the first bad field as a
// ConfigError.
func (c Config) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		cfgErr := errors.ErrConfigInvalid(fe.Field(), fe.Value())
		cfgErr.Message = "Invalid configuration value: failed " + fe.Tag() + " check"
		cfgErr.Cause = err
		return cfgErr
	}
	return errors.WrapConfigError(errors.CodeConfiguration, "Invalid scanner configuration", err)
}
