// Package app provides the application composition layer for the user board.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/user/        # User model, sort columns, validation, grid changesets
//	├── storage/            # Store interfaces and implementations
//	│   ├── interfaces.go   # UserStore
//	│   ├── memory/         # In-memory implementation for tests and local runs
//	│   └── postgres/       # PostgreSQL implementation (sqlx)
//	├── services/users/     # Board operations: register, page, edit, delete, login
//	├── httpapi/            # gorilla/mux routes
//	├── auth/               # JWT issuing, refresh sessions, password hashing
//	├── system/             # Lifecycle manager and cron maintenance
//	├── runtime/            # Server process wiring from config
//	└── metrics/            # Prometheus collectors
//
// # Dependency Direction
//
//	cmd/userboard/
//	      │
//	      ▼
//	internal/app/runtime ──► internal/app/httpapi ──► internal/app (composition)
//	                                                        │
//	                                                        ├──► services/users
//	                                                        ├──► auth
//	                                                        └──► storage
package app
