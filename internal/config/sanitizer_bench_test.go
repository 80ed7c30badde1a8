package config

import "testing"

func BenchmarkDefaultConfigSanitizer_Sanitize(b *testing.B) {
	sanitizer := NewDefaultConfigSanitizer()
	cfg := &Config{
		LiveMetrics: LiveMetricsConfig{
			InstrumentationKey: "sk-1234567890",
			Endpoint:           "https://rt.services.visualstudio.com",
		},
		Server: ServerConfig{
			Port: 8081,
			Host: "localhost",
		},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = sanitizer.Sanitize(cfg)
	}
}
