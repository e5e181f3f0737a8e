// SPDX-License-Identifier: Apache-2.0

package config

import (
	"flag"
	"time"
)

// ParseFlags reads command-line flags into a StructuredConfig. Unset
// flags leave their field at the zero value so later merge sources are
// free to fill them in.
func ParseFlags() *StructuredConfig {
	var serverAddress string
	var dsn string
	var jsonConfigPath string
	var requestTimeout time.Duration
	var syncInterval time.Duration
	var pageSize int

	flag.StringVar(&serverAddress, "server-address", "", "Remote sync server address host:port")
	flag.StringVar(&dsn, "dsn", "", "Local storage DSN")
	flag.StringVar(&jsonConfigPath, "c", "", "Path to JSON config file")
	flag.StringVar(&jsonConfigPath, "config", "", "Path to JSON config file")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "HTTP request timeout")
	flag.DurationVar(&syncInterval, "sync-interval", 0, "Background sync interval")
	flag.IntVar(&pageSize, "page-size", 0, "Sync pagination page size")

	if !flag.Parsed() {
		flag.Parse()
	}

	return &StructuredConfig{
		Transport: Transport{
			ServerAddress:  serverAddress,
			RequestTimeout: requestTimeout,
		},
		Storage: Storage{DSN: dsn},
		Sync: Sync{
			Interval: syncInterval,
			PageSize: pageSize,
		},
		JSONFilePath: jsonConfigPath,
	}
}
