// Package changesource provides the value types shared by the change-source
// ownership ledger.
//
// This package contains type definitions only. The store, manager and cli
// packages import changesource; changesource imports nothing internal.
//
// Key constraints:
//   - An ID is assigned once by the store and never reused
//   - A View with an empty Owner is unowned (inactive)
//   - Filter is a closed set of variants; combinations of criteria are folded
//     into a single variant by NewFilter before reaching the store
//   - ClaimResult is the only way a claim reports contention
//
// # Migrating from map-style access
//
// Older change-source records could be read as dictionaries, e.g.
// cs["name"] or cs["masterid"]. That accessor is not carried over. View is a
// plain struct; read View.Name and View.Owner directly. Code still using the
// map-style form does not compile.
package changesource
