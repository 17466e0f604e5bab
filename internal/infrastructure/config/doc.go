// Package config handles loading and validating gateway configuration.
//
// This package manages:
//   - Loading configuration from an optional YAML file
//   - Overriding with GW_* environment variables
//   - Validation of all sections, reporting every problem at once
//   - Default value handling
//
// Command-line flags are applied by the caller on top of the loaded Config,
// after which Validate should be called again.
//
// Security Considerations:
//   - The MQTT password should be set via GW_MQTT_PASSWORD
//   - MQTTAuthConfig masks the password in String and MarshalJSON output
//
// Usage:
//
//	cfg, err := config.Load(os.Getenv("GW_CONFIG"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Poll.Topic)
package config
