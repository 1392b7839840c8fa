// Package app provides the composition layer for the winddown service.
//
// # Architecture Role
//
// The app package sits above the platform layer and below cmd/. It wires
// stores, services and lifecycle management into a single Application value.
// It carries no business logic of its own; business rules live in
// internal/app/services/.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── routine/        # Routines and their ordered steps
//	│   └── sleeplog/       # Sleep session records
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # RoutineStore and SleepLogStore
//	│   ├── memory/         # In-memory implementation for tests and dev
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/           # Business logic (routines, sleeplogs)
//	├── httpapi/            # REST handlers, routing, audit log
//	├── system/             # Service lifecycle management
//	├── runtime/            # Config loading and server assembly
//	└── metrics/            # Prometheus collectors and sampler
//
// # Dependency Direction
//
// cmd/ depends on runtime, runtime composes app, app composes services over
// storage interfaces. Nothing below app imports app.
//
// # Adding a New Domain
//
//  1. Create models in internal/app/domain/<name>/
//  2. Add a store interface to internal/app/storage/interfaces.go
//  3. Implement it in storage/postgres/ and storage/memory/
//  4. Create the service in internal/app/services/<name>/
//  5. Wire the service in application.go
//  6. Add handlers in internal/app/httpapi/
package app
