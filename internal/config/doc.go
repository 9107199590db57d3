// Package config defines configuration structures for the wildfire CLI.
//
// Configuration can be provided via:
//   - YAML configuration file
//   - Environment variables (WILDFIRE_ prefix)
//   - Command-line flags (applied by the CLI on top)
//
// # Example file
//
//	store: /data/wildfire
//	keys:
//	  - key: abcdefg-thisistheecmwfkey
//	    email: someone@example.com
//	workers_per_key: 4
//	api:
//	  url: https://api.ecmwf.int/v1
//	  retry:
//	    attempts: 5
//	    backoff: 1s
//	    max_backoff: 30s
//	log:
//	  format: text
//	  level: info
package config
