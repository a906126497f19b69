/*
Package ports defines the driven ports (interfaces) of Aqueduct.

These interfaces decouple the workspace from external implementations, so the
same code runs against in-memory adapters in tests and Redis in production.

# Key Interfaces

  - SnapshotStore: persists and loads workspace graphs.
  - ResponseCache: remembers raw backend answers by request fingerprint.
  - DistributedLocker: serializes commits to one workspace across replicas.

Each interface ships with a Run*Contract suite that adapters run in their tests.
*/
package ports
