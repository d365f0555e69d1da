// Package server hosts the Fiber HTTP service and request middleware chain
// for the temporary download link service. It wires the landing page, the
// link generation endpoint, and artifact retrieval into a single application.
// The package focuses on a single binary that bootstraps Fiber, attaches
// logging and error middlewares, and exposes router constructors that other
// packages (cmd entrypoint, download handlers) can reuse. Future phases may
// extend this package with TLS, metrics endpoints, or admin surfaces, so keep
// exports narrow and accept explicit dependencies.
package server
