// generate-config writes the default server configuration as YAML
//
//	go run ./cmd/generate-config > config.yaml
package main

import (
	"os"

	"flip7-server/internal/config"

	"gopkg.in/yaml.v2"
)

func main() {
	if err := yaml.NewEncoder(os.Stdout).Encode(config.DefaultConfig()); err != nil {
		panic(err)
	}
}
