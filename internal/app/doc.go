// Package app composes the Sous Chef services into a running application.
//
// # Architecture Role
//
// The app package sits above storage and the feature services and wires them
// together from a config.Config. It holds no business rules; those live in
// internal/app/services.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring and lifecycle
//	├── domain/             # Data models (account, recipe, logbook, ...)
//	├── storage/            # Store interfaces and implementations
//	│   ├── memory/         # In-process maps, used by tests and demos
//	│   ├── sqlstore/       # SQLite and PostgreSQL via sqlx
//	│   └── remote/         # Supabase document backend
//	├── services/           # One service per feature area
//	├── mirror/             # List diffing and local/remote sync
//	├── watch/              # Change fan-out to live subscribers
//	├── httpapi/            # HTTP routes and the live websocket
//	├── system/             # Lifecycle manager
//	└── metrics/            # Prometheus collectors
//
// # Store Selection
//
// The local store is chosen by database.driver. When remote.enabled is set
// the Supabase backend is built as well; with remote.serve the services use
// it directly, otherwise the mirror syncer keeps the two in step on the
// sync.schedule.
//
// # Dependency Direction
//
//	cmd/souschef/
//	      │
//	      ▼
//	internal/app/ (composition)
//	      │
//	      ├──► internal/app/httpapi
//	      ├──► internal/app/services ──► internal/app/storage
//	      └──► internal/app/mirror   ──► internal/app/storage/remote
package app
