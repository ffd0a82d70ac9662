package txn

import "errors"

// ErrAlreadyCommitted is returned when trying to add actions or commit
// after the Transaction has already been committed.
var ErrAlreadyCommitted = errors.New("transaction already committed")
