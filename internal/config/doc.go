// Package config loads the Fusion BI configuration.
//
// # Configuration Sources
//
// Values are resolved in order of precedence:
//
//  1. Environment variables (highest priority)
//  2. YAML file: FUSION_CONFIG_FILE, config.yaml or configs/config.yaml
//  3. Default values (lowest priority)
//
// # Environment Variables
//
// Variables follow the section layout under the FUSION prefix:
//
//	FUSION_SERVER_PORT=8050
//	FUSION_DATABASE_DRIVER=sqlserver
//	FUSION_DATABASE_SERVER=sql01.internal
//	FUSION_DATABASE_CORE_DATABASE=CORE_DB
//	FUSION_SECURITY_SESSION_SECRET=...
//	FUSION_REPORTING_MONTH_CACHE_CAPACITY=24
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Tests and tools that need no environment use config.Default().
package config
