// Package mocks contains generated mocks for the pipeline collaborators.
//
// To regenerate, run from the repository root:
//
//	go generate ./internal/mocks/...
package mocks

// Uploader mock
//
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=uploader_mock.go github.com/joseph-ayodele/classdocs/internal/ports Uploader

// Registrar mock
//
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=registrar_mock.go github.com/joseph-ayodele/classdocs/internal/ports Registrar
