// Package models defines the core domain models shared by the agents.
//
// # Models
//
//   - UserInfo: the cached identity of the logged-in user (owned by the
//     identity backend; agents only hold a copy)
//   - Inventory: a named collection of Items with an owner and access lists
//   - Item: a single inventoried object belonging to exactly one Inventory
//
// # Design principles
//
//  1. **Snapshots over shared handles**: agents hand out deep copies, never
//     live pointers into their internal state. Every model has a Clone method.
//  2. **Avoid circular references**: Items carry their parent's UUID instead
//     of a pointer back to the Inventory.
//  3. **Stable wire format**: JSON tags match the historical snapshot layout,
//     so data persisted by earlier versions loads unchanged.
package models
