// Package manager supervises the change sources a single master operates.
//
// A Manager turns a configured list of change-source names into running
// pollers, but only for sources this master has claimed in the ledger:
//
//  1. Reconfigure resolves each name to an ID (find-or-create).
//  2. Reconcile claims every desired source not yet running. A Claimed
//     result starts a poller; AlreadyClaimed leaves the source to whichever
//     master owns it.
//  3. Run repeats Reconcile on a ticker, so sources released elsewhere are
//     picked up. Ownership changes are only observed by re-querying.
//  4. Stop halts every poller and releases this master's claims.
//
// Store failures are retried here with exponential backoff; the ledger itself
// never retries. AlreadyClaimed is never retried.
package manager
