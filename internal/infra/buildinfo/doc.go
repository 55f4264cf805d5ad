// Package buildinfo exposes build information injected via ldflags.
//
//	go build -ldflags "-X github.com/yndnr/moonlink/internal/infra/buildinfo.Version=v0.3.0 \
//	  -X github.com/yndnr/moonlink/internal/infra/buildinfo.Commit=abc123"
package buildinfo
