// Package config provides configuration parsing for the teddy CLI.
//
// The configuration is stored in teddy.json, teddy.yaml or teddy.yml. JSON
// is a subset of YAML so every file goes through the YAML decoder.
//
// # Configuration File Structure
//
//	{
//	  "space": "shop",
//	  "name": "cart",
//	  "server": {"address": ":8080"},
//	  "storage": {"driver": "badger", "dir": "./data"},
//	  "cache": {"enabled": true, "debounce": "250ms", "reload": true},
//	  "history": {"enabled": true, "limit": 50},
//	  "sync": {"enabled": true}
//	}
//
// TEDDY_ADDRESS and TEDDY_STORAGE_DRIVER override server.address and
// storage.driver.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config
