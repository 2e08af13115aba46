// Package config handles loading and validating the Hi-Kumo bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files, with an optional local overlay
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Vendor and broker passwords should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml", "configs/local.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.Topics.StatePrefix)
package config
