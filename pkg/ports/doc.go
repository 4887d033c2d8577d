/*
Package ports defines the driven ports (interfaces) used by the input generators.

These interfaces decouple the generation pipeline from the workflow engine that
will eventually consume the builders, and from the storage holding data nodes.

# Key Interfaces

  - Builder: minimal mapping contract (get/set/delete/contains) of a process builder.
  - NodeLoader: resolves an identifier (UUID or label) to a stored node.
  - NodeStore: persists nodes, making them immutable.
*/
package ports
