package finance

import "github.com/oklog/ulid/v2"

// TransactionIDPrefix prefixes every generated transaction id
const TransactionIDPrefix = "TXN-"

// TransactionIDGenerator produces unique, externally visible payment transaction ids
type TransactionIDGenerator interface {
	NewTransactionID() string
}

// TransactionIDFunc adapts a function to TransactionIDGenerator
type TransactionIDFunc func() string

// NewTransactionID calls f
func (f TransactionIDFunc) NewTransactionID() string {
	return f()
}

// ULIDTransactionIDs generates TXN-<ulid> ids, sortable by creation time
var ULIDTransactionIDs TransactionIDGenerator = TransactionIDFunc(func() string {
	return TransactionIDPrefix + ulid.Make().String()
})
