/*
Package domain contains the core domain models of the pathflow engine.

It defines the entities of an action pipeline run: the mutable Context threaded
through every action, the Path value an action returns to select a branch, and
the sequence tree (Signal, Sequence, Step, Action) the executor walks. This
package is kept pure and free of external dependencies like I/O or persistence,
following Hexagonal Architecture principles.

# Key Entities

  - Context: Ordered, mutable key/value state shared by all actions of one run.
  - Action: A named function with an optional set of declared outputs.
  - Path: The value produced by an output continuation; names the branch and carries the payload.
  - Step / Sequence: The tree. A Step wires each output name to a sub-sequence.
  - Result: The outcome handed back to whoever triggered the signal.
*/
package domain
