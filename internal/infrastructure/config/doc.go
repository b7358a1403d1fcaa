// Package config handles loading and validating the Gray Logic routines configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The fallback device token and JWT secret should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - The vault key file lives under data/ and is created with mode 0600
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.Name)
package config
