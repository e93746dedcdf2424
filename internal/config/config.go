package config

import (
	"encoding/json"
	"os"
)

// NewConfig returns a config populated with usable defaults; Read overlays
// values from a JSON file on top.
func NewConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 120,
		},
		Upload: UploadConfig{
			MaxRequestBodyMB:     512,
			MaxMultipartMemoryMB: 64,
		},
		Jobs: JobsConfig{
			Backend:       "memory",
			MaxConcurrent: 8,
			ReapInterval:  60,
			Retention:     3600,
		},
	}
}

// Read loads a configuration file in JSON format.
func (c *Config) Read(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, c)
}
