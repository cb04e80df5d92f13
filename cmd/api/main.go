package main

import (
	"context"
	"log"
	"os"

	"github.com/psdstocks-cloud/creo-cache/internal/app/bootstrap"
)

func main() {
	r, err := bootstrap.NewRuntime(context.Background(), configPath())
	if err != nil {
		log.Fatalf("bootstrap runtime: %v", err)
	}
	if err := r.RunAPI(context.Background()); err != nil {
		log.Fatalf("run api: %v", err)
	}
}

// configPath lets deployments mount the YAML file elsewhere.
func configPath() string {
	if p := os.Getenv("CACHE_CONFIG"); p != "" {
		return p
	}
	return "configs/default.yaml"
}
