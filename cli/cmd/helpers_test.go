package cmd

import (
	"strconv"

	"github.com/justapithecus/aetheric/cli/config"
)

func itoa(n int) string { return strconv.Itoa(n) }

func configAdapter(typ, url string) config.AdapterConfig {
	return config.AdapterConfig{Type: typ, URL: url}
}

func configArchive(backend, path string) config.ArchiveConfig {
	return config.ArchiveConfig{Backend: backend, Path: path}
}
