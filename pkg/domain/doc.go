/*
Package domain contains the data model shared by the input generators.

It defines the enumerations used to describe a calculation (relax, spin and
electronic types) and the data nodes that travel through a builder. Nodes are
opaque values with an identity (UUID) and a stored flag: once a node has been
persisted by a NodeStore it is immutable and must be cloned before being changed.

# Key Entities

  - Node: common contract of every data value (UUID, label, stored flag, Clone).
  - Dict: a mapping of parameters (the most common port value).
  - Structure: a periodic cell with atomic sites grouped in kinds.
  - Kpoints: a Monkhorst-Pack mesh, optionally derived from a k-point density.
  - Code: an installed executable advertising the plugin it can run (capability tag).
  - Group: a labelled collection, used for pseudopotential families.
  - ProcessNode: a completed workflow whose inputs/outputs can seed new inputs.
*/
package domain
