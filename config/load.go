package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads the configuration file at path (when non-empty) and the VIGIL_*
// environment on top of the defaults. A VIGIL_* variable overrides only a key
// that the file sets; keys absent from the file are not read from the
// environment. When path is empty and no vigil.yaml is found in the search
// paths, the defaults are returned without error; a file named by path must
// exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("/etc/vigil")
		v.AddConfigPath(".")
		v.SetConfigName("vigil")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("VIGIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, err
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Generate renders the effective configuration in the file format Load
// accepts. Served by the agent.conf endpoint.
func (c *Config) Generate() string {
	var b strings.Builder

	b.WriteString("# vigil agent web server configuration\n")
	b.WriteString("web:\n")
	writeKV(&b, "root_dir", c.Web.RootDir)
	writeKV(&b, "enable_gzip", c.Web.EnableGzip)
	writeKV(&b, "gzip_level", c.Web.GzipLevel)
	writeKV(&b, "gzip_strategy", string(c.Web.GzipStrategy))
	writeKV(&b, "respect_do_not_track", c.Web.RespectDoNotTrack)
	writeKV(&b, "x_frame_options", c.Web.XFrameOptions)
	writeKV(&b, "timeout", c.Web.Timeout)
	writeKV(&b, "max_request_size", c.Web.MaxRequestSize)
	b.WriteString("net:\n")
	writeKV(&b, "read_buffer_size", c.NET.ReadBufferSize)
	writeKV(&b, "max_connections", c.NET.MaxConnections)
	writeKV(&b, "idle_timeout", c.NET.IdleTimeout)
	b.WriteString("tls:\n")
	writeKV(&b, "force", c.TLS.Force)
	writeKV(&b, "cert", c.TLS.Cert)
	writeKV(&b, "key", c.TLS.Key)
	writeKV(&b, "autocert_dir", c.TLS.AutocertDir)

	return b.String()
}

func writeKV(b *strings.Builder, key string, value any) {
	fmt.Fprintf(b, "  %s: %v\n", key, value)
}
