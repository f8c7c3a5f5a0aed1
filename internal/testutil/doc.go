// Package testutil holds helpers shared by tests that need a ledger database.
package testutil
