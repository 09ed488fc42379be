// Package config loads and validates the inlet configuration.
//
// A configuration is built in layers:
//
//  1. Default() supplies every value, including the acquisition defaults
//     (256 frames per pull, gain 1.0, 64 channels max, 500ms stop wait).
//  2. Each JSON file layer is checked against the embedded JSON schema and
//     deep-merged over the result so far. Only keys present in the file
//     override; arrays replace.
//  3. LSLINLET_* environment variables override individual fields.
//  4. Validate checks the semantic rules the schema cannot express, such as
//     "a NATS source requires nats.enabled".
//
// Durations are written as Go duration strings:
//
//	{
//	  "inlet": {
//	    "source": "nats",
//	    "stream": {"name": "EEG-1", "type": "EEG", "channel_count": 32, "nominal_rate": 1000},
//	    "frames_per_pull": 256,
//	    "pull_timeout": "100ms",
//	    "mapping_file": "mappings/markers.yaml"
//	  },
//	  "nats": {"enabled": true, "urls": ["nats://localhost:4222"]}
//	}
//
// Loading:
//
//	loader := config.NewLoader()
//	loader.EnableValidation(true)
//	cfg, err := loader.LoadFile("configs/lslinlet.json")
//
// SafeConfig wraps a Config for concurrent readers; Get returns a deep copy.
//
// Files are read through ReadFileSafely, which enforces an extension allow
// list, a 10MB size cap and rejects relative paths that leave the working
// directory.
package config
