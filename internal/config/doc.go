// Package config defines the moonlink client configuration.
//
// Files:
//
//   - spec.go: configuration structure (koanf tags)
//   - default.go: default values
//   - verify.go: validation
//   - load.go: layered loading via confloader
package config
