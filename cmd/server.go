package cmd

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vigil-switch/vigil/internal/server"
)

// Constants for Viper keys and Flag names
const (
	alertURLsKey         = "alert-urls"
	apiTokenKey          = "api-token"
	autoTLSKey           = "auto-tls"
	briarTokenKey        = "briar-token"
	briarURLKey          = "briar-url"
	demoModeKey          = "demo-mode"
	demoResetIntervalKey = "demo-reset-interval"
	domainsKey           = "domains"
	logFormatKey         = "log-format"
	logLevelKey          = "log-level"
	metricsKey           = "metrics"
	portKey              = "port"
	storageDirKey        = "storage-dir"
	tlsCertificateKey    = "tls-certificate"
	tlsKeyKey            = "tls-key"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: fmt.Sprintf("Start the %s server", project),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Build server configuration using the constants
		cfg := &server.Config{
			APIToken:          viper.GetString(apiTokenKey),
			AlertURLs:         viper.GetStringSlice(alertURLsKey),
			AutoTLS:           viper.GetBool(autoTLSKey),
			BriarToken:        viper.GetString(briarTokenKey),
			BriarURL:          viper.GetString(briarURLKey),
			DemoMode:          viper.GetBool(demoModeKey),
			DemoResetInterval: viper.GetDuration(demoResetIntervalKey),
			Domains:           viper.GetStringSlice(domainsKey),
			LogFormat:         viper.GetString(logFormatKey),
			LogLevel:          viper.GetString(logLevelKey),
			Metrics:           viper.GetBool(metricsKey),
			Port:              viper.GetInt(portKey),
			StorageDir:        viper.GetString(storageDirKey),
			TLSCert:           viper.GetString(tlsCertificateKey),
			TLSKey:            viper.GetString(tlsKeyKey),
			Validation:        true,
		}

		server, err := server.New(cfg)
		if err != nil {
			return err
		}

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		go func() {
			err := server.Start()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("server error: %v", err)
			}
		}()

		<-stop
		server.Stop()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverFlags := []flagDef{
		{Name: alertURLsKey, Type: "stringArray", Default: []string{}, Usage: "Shoutrrr URLs to alert operators when message delivery fails.", ViperKey: alertURLsKey},
		{Name: apiTokenKey, Type: "string", Default: "", Usage: "Static bearer token required on API requests. Empty disables authentication.", ViperKey: apiTokenKey},
		{Name: autoTLSKey, Shorthand: "a", Type: "bool", Default: false, Usage: "Enable automatic TLS via Let's Encrypt. Requires port 80/443 open to the internet for domain validation.", ViperKey: autoTLSKey},
		{Name: briarTokenKey, Type: "string", Default: "", Usage: "Bearer token for the Briar headless API.", ViperKey: briarTokenKey},
		{Name: briarURLKey, Shorthand: "b", Type: "string", Default: "http://localhost:7000", Usage: "Base URL of the Briar headless API.", ViperKey: briarURLKey},
		{Name: demoModeKey, Shorthand: "", Type: "bool", Default: false, Usage: "Enable demo mode which creates sample messages on startup and resets the store periodically.", ViperKey: demoModeKey},
		{Name: demoResetIntervalKey, Shorthand: "", Type: "duration", Default: 1 * time.Hour, Usage: "How often to reset the store with fresh sample messages when in demo mode.", ViperKey: demoResetIntervalKey},
		{Name: domainsKey, Shorthand: "d", Type: "stringArray", Default: []string{}, Usage: "Domains to issue certificate for. Must be used with --auto-tls.", ViperKey: domainsKey},
		{Name: logFormatKey, Shorthand: "f", Type: "string", Default: "text", Usage: "Server logging format. Supported values are 'text' and 'json'.", ViperKey: logFormatKey},
		{Name: logLevelKey, Shorthand: "l", Type: "string", Default: "info", Usage: "Server logging level.", ViperKey: logLevelKey},
		{Name: metricsKey, Shorthand: "m", Type: "bool", Default: false, Usage: "Enable Prometheus metrics instrumentation.", ViperKey: metricsKey},
		{Name: portKey, Shorthand: "p", Type: "int", Default: 8080, Usage: "Port to listen on. Cannot be used in conjunction with --auto-tls since that will require listening on 80 and 443.", ViperKey: portKey},
		{Name: storageDirKey, Shorthand: "s", Type: "string", Default: "./data", Usage: "Storage directory for the scheduled message file.", ViperKey: storageDirKey},
		{Name: tlsCertificateKey, Shorthand: "", Type: "string", Default: "", Usage: "Path to custom TLS certificate. Cannot be used with --auto-tls.", ViperKey: tlsCertificateKey},
		{Name: tlsKeyKey, Shorthand: "", Type: "string", Default: "", Usage: "Path to custom TLS key. Cannot be used with --auto-tls.", ViperKey: tlsKeyKey},
	}

	registerFlagTypes(serverCmd, serverFlags)

	viper.SetEnvPrefix(strings.ToUpper(envVarPrefix))
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	for _, d := range serverFlags {
		_ = viper.BindPFlag(d.ViperKey, serverCmd.Flags().Lookup(d.Name))
	}

	serverCmd.Flags().VisitAll(func(f *pflag.Flag) {
		env := strings.ToUpper(envVarPrefix) + "_" + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		if !strings.Contains(f.Usage, "env:") {
			f.Usage = fmt.Sprintf("%s (env: %s)", f.Usage, env)
		}
	})
}
