package server

import (
	"reflect"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		server    *Server
		expectErr bool
	}{
		{
			// Invalid log format
			server: &Server{
				Config: Config{
					LogFormat: "fake",
				},
			},
			expectErr: true,
		},
		{
			// Auto TLS and custom cert set (conflict)
			server: &Server{
				Config: Config{
					AutoTLS: true,
					TLSCert: "cert",
				},
			},
			expectErr: true,
		},
		{
			// Auto TLS and custom key set (conflict)
			server: &Server{
				Config: Config{
					AutoTLS: true,
					TLSKey:  "key",
				},
			},
			expectErr: true,
		},
		{
			// Auto TLS and no domains
			server: &Server{
				Config: Config{
					AutoTLS: true,
				},
			},
			expectErr: true,
		},
		{
			// Cert set without key
			server: &Server{
				Config: Config{
					TLSCert: "cert",
				},
			},
			expectErr: true,
		},
		{
			// Key set without cert
			server: &Server{
				Config: Config{
					TLSKey: "key",
				},
			},
			expectErr: true,
		},
		{
			// Invalid log level
			server: &Server{
				Config: Config{
					LogLevel: "shouty",
				},
			},
			expectErr: true,
		},
		{
			// Valid AutoTLS config
			server: &Server{
				Config: Config{
					AutoTLS: true,
					Domains: []string{"domain"},
				},
			},
		},
		{
			// Valid custom cert/key config
			server: &Server{
				Config: Config{
					TLSCert: "cert",
					TLSKey:  "key",
				},
			},
		},
	}

	for _, test := range tests {
		test.server.Validation = true
		err := test.server.validate()
		if (err != nil) != test.expectErr {
			t.Errorf("unexpected validation result: got error=%v wantErr=%v, err=%v", err != nil, test.expectErr, err)
		}
	}
}

func TestGetLogFormatter(t *testing.T) {
	tests := []struct {
		input    string
		expected log.Formatter
	}{
		{
			input:    "json",
			expected: log.JSONFormatter,
		},
		{
			input:    "text",
			expected: log.TextFormatter,
		},
		{
			input:    "fake",
			expected: log.TextFormatter,
		},
	}
	for _, test := range tests {
		actual := getLogFormatter(test.input)
		if test.expected != actual {
			t.Errorf("getLogFormatter returned unexpected log formatter: got %v want %v", actual, test.expected)
		}
	}
}

func TestServerConfigOpts(t *testing.T) {
	outputStr := "got: %v, want: %v"

	newServer := func(t *testing.T, cfg *Config) *Server {
		t.Helper()
		cfg.StorageDir = t.TempDir()
		s, err := New(cfg)
		if err != nil {
			t.Fatalf("received unexpected err: %s", err.Error())
		}
		t.Cleanup(s.Stop)
		return s
	}

	t.Run("AutoTLS", func(t *testing.T) {
		s := newServer(t, &Config{
			AutoTLS: true,
			Domains: []string{"d"},
		})
		if !s.AutoTLS {
			t.Errorf(outputStr, s.AutoTLS, true)
		}
	})

	t.Run("DemoMode", func(t *testing.T) {
		s := newServer(t, &Config{
			DemoMode: true,
		})
		if !s.DemoMode {
			t.Errorf(outputStr, s.DemoMode, true)
		}

		// Demo mode seeds sample messages on startup.
		messages, err := s.Scheduler.ListPending()
		if err != nil {
			t.Fatalf("failed to list pending: %v", err)
		}
		if len(messages) == 0 {
			t.Error("expected demo messages to be seeded")
		}
	})

	t.Run("DemoResetInterval", func(t *testing.T) {
		v := 10 * time.Second
		s := newServer(t, &Config{
			DemoResetInterval: v,
		})
		if s.DemoResetInterval != v {
			t.Errorf(outputStr, s.DemoResetInterval, v)
		}
	})

	t.Run("Domains", func(t *testing.T) {
		v := []string{"lemon"}
		s := newServer(t, &Config{
			Domains: v,
		})
		if !reflect.DeepEqual(s.Domains, v) {
			t.Errorf(outputStr, s.Domains, v)
		}
	})

	t.Run("BriarURLDefault", func(t *testing.T) {
		s := newServer(t, &Config{})
		if s.BriarURL != "http://localhost:7000" {
			t.Errorf(outputStr, s.BriarURL, "http://localhost:7000")
		}
	})

	t.Run("APIToken", func(t *testing.T) {
		v := "secret"
		s := newServer(t, &Config{
			APIToken: v,
		})
		if s.APIToken != v {
			t.Errorf(outputStr, s.APIToken, v)
		}
	})
}
