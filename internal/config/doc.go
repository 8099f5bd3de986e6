// Package config loads the YAML configuration and builds the logger.
//
// Lookup order is the --config flag, then $AUDEN_CONFIG, then config.yaml
// in the data directory ($AUDEN_DATA_DIR or ~/.auden). A missing file
// yields DefaultConfig. AUDEN_* environment variables override the file.
//
//	data_dir: /home/me/.auden
//	embedding:
//	  provider: openai
//	  model: text-embedding-3-small
//	  requests_per_second: 5
//	pipeline:
//	  workers: 8
//	  queue_size: 256
//	  batch_size: 10
//	  call_timeout: 30s
//	crawler:
//	  excludes: ["**/.git", "**/node_modules"]
//	search:
//	  max_results: 100
//	logging:
//	  level: info
//	  format: text
package config
