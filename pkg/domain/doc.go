/*
Package domain contains the core domain model of the Aqueduct network editor.

It defines the typed graph of a utility network, the scalar property values
carried by its components, and the error taxonomy shared by every layer. The
package is kept pure and free of I/O, following Hexagonal Architecture
principles.

# Key Entities

  - Node: a typed component (pump station, tank, river...) with ordered properties.
  - Edge: a directed connection between two nodes.
  - Value: a closed Text | Number scalar; nothing else can be stored in properties.
  - Snapshot: a self-contained copy of a graph, checked by Validate.
  - ValidatedProposal: a replacement graph plus suggestions from a reasoning backend.
*/
package domain
